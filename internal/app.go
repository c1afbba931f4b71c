package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ogero/stremio-autoarabic/internal/common"
	"github.com/ogero/stremio-autoarabic/pkg/srt"
	"github.com/ogero/stremio-autoarabic/pkg/stremio"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// AddonName is shown in Stremio and reported by the health endpoint.
	AddonName = "Auto Arabic"
	// AddonVersion is the manifest version.
	AddonVersion = "1.1.0"

	subripContentType = "application/x-subrip"
	plainContentType  = "text/plain; charset=utf-8"
)

var manifest = stremio.Manifest{
	ID:          "org.stremio.auto-arabic",
	Version:     AddonVersion,
	Name:        AddonName,
	Description: "Translates English subtitles to Arabic on-the-fly. Android TV compatible.",
	Types:       []string{"movie", "series"},
	Catalogs:    []stremio.CatalogItem{},
	IDPrefixes:  []string{"tt"},
	Resources:   []string{"subtitles"},
	BehaviorHints: stremio.BehaviorHints{
		Configurable:          true,
		ConfigurationRequired: false,
	},
}

// testSubtitle is a one cue subtitle players can load without any upstream, to check the addon is reachable.
var testSubtitle = stremio.Subtitle{
	ID:   "test-connection-ok",
	URL:  "data:application/x-subrip;base64,MQowMDowMDowMSwwMDAgLS0+IDAwOjAwOjA1LDAwMApbVGVzdF0gQXV0by1BcmFiaWMgQ29ubmVjdGlvbiBPSy4KQ29ubmVjdGVkIFN1Y2Nlc3NmdWxseSEKCg==",
	Lang: "ara",
	Name: "✅ [Test] Auto-Arabic Connection OK",
}

// App represents the main application structure that holds the addon service and addon host information.
type App struct {
	AddonService AddonService
	StatsHub     StatsHub
	AddonHost    string
	TestSubtitle bool

	manifestJSON []byte
}

/*
NewApp creates a new instance of the App struct.

Parameters:
  - addonService: The service fetching and translating subtitles.
  - statsHub: The live stats websocket hub, optional.
  - addonHost: The public base URL of the addon, used in subtitle links.
  - testSubtitle: Whether search results start with a connection test subtitle.

Returns:
  - A pointer to the newly created App instance.
*/
func NewApp(addonService AddonService, statsHub StatsHub, addonHost string, testSubtitle bool) (*App, error) {
	b, err := json.Marshal(manifestFor(stremio.DefaultUserConfig(), addonHost, false))
	if err != nil {
		return nil, fmt.Errorf("failed to json.Marshal: %w", err)
	}

	return &App{
		AddonService: addonService,
		StatsHub:     statsHub,
		AddonHost:    addonHost,
		TestSubtitle: testSubtitle,
		manifestJSON: b,
	}, nil
}

// manifestFor derives the manifest of a configured install. The default install keeps the base name.
func manifestFor(cfg stremio.UserConfig, addonHost string, configured bool) stremio.Manifest {
	m := manifest
	m.Types = append([]string(nil), manifest.Types...)
	m.IDPrefixes = append([]string(nil), manifest.IDPrefixes...)
	m.Resources = append([]string(nil), manifest.Resources...)
	m.BehaviorHints.ConfigurationLocation = addonHost + "/configure"

	if configured {
		lang := cfg.Language()
		m.Name = fmt.Sprintf("Auto Translate - %s", lang.Native)
		m.Description = fmt.Sprintf("Translates English subtitles to %s on-the-fly.", lang.Name)
		if cfg.Android {
			m.Description += " Android TV compatible."
		}
	}

	return m
}

// userConfig decodes the optional {config} path segment, falling back to defaults.
func userConfig(r *http.Request) (stremio.UserConfig, bool) {
	raw := chi.URLParam(r, "config")
	if raw == "" {
		return stremio.DefaultUserConfig(), false
	}

	cfg, err := stremio.DecodeUserConfig(raw)
	if err != nil {
		common.Log.WarnContext(r.Context(), "Failed to stremio.DecodeUserConfig", "err", err)
		trace.SpanFromContext(r.Context()).RecordError(err)
	}

	return cfg, true
}

/*
ManifestHandler serves the manifest for the addon.

The unconfigured manifest is marshaled once, so every call writes the same bytes.
*/
func (a *App) ManifestHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)

	common.Log.DebugContext(ctx, "ManifestHandler")

	b := a.manifestJSON
	if cfg, configured := userConfig(r); configured {
		span.SetAttributes(attribute.String("config.lang", cfg.Lang))
		var err error
		b, err = json.Marshal(manifestFor(cfg, a.AddonHost, true))
		if err != nil {
			common.Log.ErrorContext(ctx, "Failed to json.Marshal", "err", err)
			span.RecordError(err)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")

	_, err := w.Write(b)
	if err != nil {
		common.Log.ErrorContext(ctx, "Failed to write response", "err", err)
		span.RecordError(err)
		return
	}
}

/*
SubtitlesHandler handles requests for subtitles.

This method validates the request parameters, checks that an English subtitle exists and answers with a single
entry pointing at the translated stream. Missing subtitles and unreachable providers both answer an empty list.
*/
func (a *App) SubtitlesHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)

	common.Log.DebugContext(ctx, "SubtitlesHandler")

	paramsType := chi.URLParam(r, "type")
	if err := common.ValidateSubtitleType(paramsType); err != nil {
		common.Log.WarnContext(ctx, "Failed to common.ValidateSubtitleType", "err", err)
		span.RecordError(err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("params.type", paramsType))

	paramsID := chi.URLParam(r, "id")
	videoID, err := stremio.ParseVideoID(paramsID)
	if err != nil {
		common.Log.WarnContext(ctx, "Failed to stremio.ParseVideoID", "err", err)
		span.RecordError(err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("params.id", videoID.String()))

	cfg, configured := userConfig(r)
	lang := cfg.Language()

	result, err := a.AddonService.SearchSubtitles(ctx, videoID)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		common.Log.ErrorContext(ctx, "Failed to AddonService.SearchSubtitles", "err", err)
		span.RecordError(err)
		result = &SearchResult{}
	}

	response := stremio.Subtitles{
		Subtitles: make([]stremio.Subtitle, 0, 2),
	}
	if a.TestSubtitle {
		response.Subtitles = append(response.Subtitles, testSubtitle)
	}
	if result.Found {
		streamURL := fmt.Sprintf("%s/subtitle/%s/%s/arabic.srt", a.AddonHost, paramsType, videoID.String())
		if configured {
			streamURL = fmt.Sprintf("%s/%s/subtitle/%s/%s/translated.srt", a.AddonHost, chi.URLParam(r, "config"), paramsType, videoID.String())
		}
		response.Subtitles = append(response.Subtitles, stremio.Subtitle{
			ID:   fmt.Sprintf("auto-%s-%s", lang.Code, videoID.IMDBID),
			URL:  streamURL,
			Lang: lang.ISO6392,
			Name: fmt.Sprintf("%s %s (Auto-Translated)", lang.Flag, lang.Name),
		})
	}

	if result.Found && result.Title != nil && result.Title.IsSettled(time.Now()) {
		w.Header().Set("CDN-Cache-Control", "public, max-age=1296000")
		w.Header().Set("Cache-Control", "public, max-age=1296000")
	} else {
		w.Header().Set("CDN-Cache-Control", "public, max-age=120")
		w.Header().Set("Cache-Control", "public, max-age=120")
	}

	w.Header().Set("Content-Type", "application/json")

	err = json.NewEncoder(w).Encode(response)
	if err != nil {
		common.Log.ErrorContext(ctx, "Failed to write response", "err", err)
		span.RecordError(err)
		return
	}
}

/*
SubtitleHandler serves the translated subtitle document.

The body is always written directly with status 200, never redirected. In compatibility mode, the default, the
body starts with a UTF-8 byte order mark and the content type is exactly application/x-subrip. When no English
subtitle exists or the providers fail, a one cue placeholder is served instead of an error status.
*/
func (a *App) SubtitleHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)

	common.Log.DebugContext(ctx, "SubtitleHandler")

	paramsType := chi.URLParam(r, "type")
	if err := common.ValidateSubtitleType(paramsType); err != nil {
		common.Log.WarnContext(ctx, "Failed to common.ValidateSubtitleType", "err", err)
		span.RecordError(err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	videoID, err := stremio.ParseVideoID(chi.URLParam(r, "id"))
	if err != nil {
		common.Log.WarnContext(ctx, "Failed to stremio.ParseVideoID", "err", err)
		span.RecordError(err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.String("params.id", videoID.String()))

	cfg, _ := userConfig(r)
	lang := cfg.Language()
	span.SetAttributes(attribute.String("config.lang", lang.Code), attribute.Bool("config.android", cfg.Android))

	subtitle, err := a.AddonService.GetTranslatedSubtitle(ctx, videoID, lang)
	switch {
	case err == nil:
		writeSubtitle(w, r, cfg, subtitle.Data, "public, max-age=3600")
	case errors.Is(err, context.Canceled):
		return
	case errors.Is(err, ErrSubtitleNotFound):
		common.Log.InfoContext(ctx, "No English subtitle found", "id", videoID.String())
		writeSubtitle(w, r, cfg, placeholderSubtitle("No English subtitles found for translation.", "IMDB: "+videoID.IMDBID), "no-store")
	default:
		common.Log.ErrorContext(ctx, "Failed to AddonService.GetTranslatedSubtitle", "err", err)
		span.RecordError(err)
		writeSubtitle(w, r, cfg, placeholderSubtitle("Subtitle sources not available.", "Please try again later."), "no-store")
	}
}

// placeholderSubtitle is a one cue document shown in place of a missing subtitle, so players do not treat
// the track as broken.
func placeholderSubtitle(lines ...string) []byte {
	doc := &srt.Document{Cues: []srt.Cue{{
		Index: 1,
		Start: time.Second,
		End:   5 * time.Second,
		Text:  strings.Join(lines, "\n"),
	}}}
	return doc.Bytes()
}

// writeSubtitle writes body with status 200 and the presentation headers of cfg.
func writeSubtitle(w http.ResponseWriter, r *http.Request, cfg stremio.UserConfig, body []byte, cacheControl string) {
	ctx := r.Context()

	if cfg.Android {
		body = srt.WithBOM(body)
		w.Header().Set("Content-Type", subripContentType)
	} else {
		w.Header().Set("Content-Type", plainContentType)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("Content-Disposition", `inline; filename="subtitle.srt"`)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", cacheControl)
	w.WriteHeader(http.StatusOK)

	_, err := w.Write(body)
	if err != nil {
		common.Log.ErrorContext(ctx, "Failed to write response", "err", err)
		trace.SpanFromContext(ctx).RecordError(err)
	}
}

// HealthHandler reports liveness. It succeeds while the process is running.
func (a *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	err := json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"addon":   AddonName,
		"version": AddonVersion,
	})
	if err != nil {
		common.Log.ErrorContext(ctx, "Failed to write response", "err", err)
		trace.SpanFromContext(ctx).RecordError(err)
	}
}

// WebsocketHandler handles WebSocket connections
func (a *App) WebsocketHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	common.Log.DebugContext(ctx, "WebsocketHandler")

	if a.StatsHub == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	a.StatsHub.ServeHTTP(w, r)
}
