package internal

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/centrifugal/centrifuge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoki struct {
	searches  int
	downloads int
	err       error
}

func (l *fakeLoki) GetSearches24(context.Context) (int, error) {
	return l.searches, l.err
}

func (l *fakeLoki) GetDownloads24(context.Context) (int, error) {
	return l.downloads, l.err
}

func newTestStatsHub(t *testing.T) *statsHub {
	t.Helper()
	hub, err := NewStatsHub("stats")
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = hub.Shutdown(ctx)
	})
	return hub.(*statsHub)
}

func TestStatsHub_BroadcastStats(t *testing.T) {
	hub := newTestStatsHub(t)

	err := hub.BroadcastStats(func(stats *Stats) error {
		stats.SearchesCount24++
		stats.TitleInstant = "The Matrix (1999)"
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, Stats{SearchesCount24: 1, TitleInstant: "The Matrix (1999)"}, hub.Snapshot())

	errUpdate := errors.New("update failed")
	err = hub.BroadcastStats(func(*Stats) error { return errUpdate })
	assert.ErrorIs(t, err, errUpdate)
	assert.Equal(t, 1, hub.Snapshot().SearchesCount24)
}

func TestStatsHub_StartPollingStats(t *testing.T) {
	tests := []struct {
		name string
		loki *fakeLoki
		want Stats
	}{
		{"replaces counters", &fakeLoki{searches: 42, downloads: 7}, Stats{SearchesCount24: 42, DownloadsCount24: 7, TitleInstant: "seed"}},
		{"keeps counters on failure", &fakeLoki{err: errUpstream}, Stats{SearchesCount24: 3, DownloadsCount24: 2, TitleInstant: "seed"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := newTestStatsHub(t)
			require.NoError(t, hub.BroadcastStats(func(stats *Stats) error {
				*stats = Stats{SearchesCount24: 3, DownloadsCount24: 2, TitleInstant: "seed"}
				return nil
			}))

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			// A cancelled context polls once and returns.
			hub.StartPollingStats(ctx, tt.loki, time.Hour)

			assert.Equal(t, tt.want, hub.Snapshot())
		})
	}
}

func TestStatsHub_SubscribeReply(t *testing.T) {
	hub := newTestStatsHub(t)
	require.NoError(t, hub.BroadcastStats(func(stats *Stats) error {
		stats.DownloadsCount24 = 5
		stats.LangInstant = "ar"
		return nil
	}))

	reply, err := hub.subscribeReply("stats")
	require.NoError(t, err)

	var got Stats
	require.NoError(t, json.Unmarshal(reply.Options.Data, &got))
	assert.Equal(t, Stats{DownloadsCount24: 5, LangInstant: "ar"}, got)

	_, err = hub.subscribeReply("other")
	assert.ErrorIs(t, err, centrifuge.ErrorPermissionDenied)
}
