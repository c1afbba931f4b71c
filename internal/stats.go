package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/centrifugal/centrifuge"
	"github.com/ogero/stremio-autoarabic/internal/common"
	"github.com/ogero/stremio-autoarabic/internal/loki"
)

// Stats represents statistical data including search and download counts in the last 24 hours and instant title information.
type Stats struct {
	// SearchesCount24 represents the number of searches performed in the last 24 hours.
	SearchesCount24 int `json:"searchesCount24"`
	// DownloadsCount24 represents the number of translated subtitles served within the last 24 hours.
	DownloadsCount24 int `json:"downloadsCount24"`
	// TitleInstant holds the last searched title.
	TitleInstant string `json:"titleInstant"`
	// LangInstant holds the target language of the last served subtitle.
	LangInstant string `json:"langInstant,omitempty"`
}

// StatsHub publishes activity counters to websocket subscribers.
type StatsHub interface {
	// Handler handles incoming HTTP requests via a websocket handler
	http.Handler
	// BroadcastStats updates and publishes statistical data to the stats channel.
	// Accepts a function to modify stats and returns an error if updating or publishing fails.
	BroadcastStats(statsUpdater func(stats *Stats) error) error
	// Snapshot returns a copy of the current stats.
	Snapshot() Stats
	// StartPollingStats periodically replaces the counters with the Loki 24h counts until ctx is done.
	StartPollingStats(ctx context.Context, loki loki.Loki, interval time.Duration)
	// Shutdown stops the underlying node.
	Shutdown(ctx context.Context) error
}

type statsHub struct {
	channel string

	node             *centrifuge.Node
	websocketHandler *centrifuge.WebsocketHandler
	statsMutex       *sync.Mutex
	stats            Stats
}

// NewStatsHub creates and runs a centrifuge node serving the stats channel.
func NewStatsHub(channel string) (StatsHub, error) {
	hub := &statsHub{
		channel:    channel,
		statsMutex: &sync.Mutex{},
	}

	node, err := centrifuge.New(centrifuge.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to centrifuge.New: %w", err)
	}
	hub.node = node

	node.OnConnecting(func(ctx context.Context, e centrifuge.ConnectEvent) (centrifuge.ConnectReply, error) {
		return centrifuge.ConnectReply{}, nil
	})

	node.OnConnect(func(client *centrifuge.Client) {
		client.OnSubscribe(func(e centrifuge.SubscribeEvent, cb centrifuge.SubscribeCallback) {
			cb(hub.subscribeReply(e.Channel))
		})
	})

	if err := node.Run(); err != nil {
		return nil, fmt.Errorf("failed to centrifuge.Node.Run: %w", err)
	}

	hub.websocketHandler = centrifuge.NewWebsocketHandler(node, centrifuge.WebsocketConfig{
		ReadBufferSize:     1024,
		UseWriteBufferPool: true,
	})

	return hub, nil
}

// subscribeReply accepts subscriptions to the stats channel only, and hands the current stats to the new
// subscriber.
func (h *statsHub) subscribeReply(channel string) (centrifuge.SubscribeReply, error) {
	if channel != h.channel {
		return centrifuge.SubscribeReply{}, centrifuge.ErrorPermissionDenied
	}

	data, err := json.Marshal(h.Snapshot())
	if err != nil {
		return centrifuge.SubscribeReply{}, fmt.Errorf("failed to json.Marshal: %w", err)
	}

	return centrifuge.SubscribeReply{
		Options: centrifuge.SubscribeOptions{Data: data},
	}, nil
}

// BroadcastStats updates and publishes statistical data to the stats channel.
func (h *statsHub) BroadcastStats(statsUpdater func(stats *Stats) error) error {
	stats, err := func() (Stats, error) {
		h.statsMutex.Lock()
		defer h.statsMutex.Unlock()
		err := statsUpdater(&h.stats)
		if err != nil {
			return Stats{}, err
		}
		return h.stats, nil
	}()
	if err != nil {
		return fmt.Errorf("failed to statsUpdater: %w", err)
	}

	b, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to json.Marshal: %w", err)
	}

	_, err = h.node.Publish(h.channel, b)
	if err != nil {
		return fmt.Errorf("failed to centrifuge.Node.Publish: %w", err)
	}

	return nil
}

// Snapshot returns a copy of the current stats.
func (h *statsHub) Snapshot() Stats {
	h.statsMutex.Lock()
	defer h.statsMutex.Unlock()
	return h.stats
}

// StartPollingStats periodically replaces the counters with the Loki 24h counts until ctx is done.
func (h *statsHub) StartPollingStats(ctx context.Context, l loki.Loki, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		searches, err := l.GetSearches24(ctx)
		if err != nil {
			common.Log.WarnContext(ctx, "Failed to loki.Loki.GetSearches24", "err", err)
		}
		downloads, err := l.GetDownloads24(ctx)
		if err != nil {
			common.Log.WarnContext(ctx, "Failed to loki.Loki.GetDownloads24", "err", err)
		}
		err = h.BroadcastStats(func(stats *Stats) error {
			if searches != 0 {
				stats.SearchesCount24 = searches
			}
			if downloads != 0 {
				stats.DownloadsCount24 = downloads
			}
			return nil
		})
		if err != nil {
			common.Log.WarnContext(ctx, "Failed to internal.StatsHub.BroadcastStats", "err", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ServeHTTP handles incoming HTTP requests via a websocket handler
func (h *statsHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	newCtx := centrifuge.SetCredentials(ctx, &centrifuge.Credentials{})
	r = r.WithContext(newCtx)

	h.websocketHandler.ServeHTTP(w, r)
}

// Shutdown stops the underlying node.
func (h *statsHub) Shutdown(ctx context.Context) error {
	return h.node.Shutdown(ctx)
}
