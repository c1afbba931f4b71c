package internal

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ogero/stremio-autoarabic/internal/common"
	slogchi "github.com/samber/slog-chi"
)

// Router returns the addon routes. Every route is available unprefixed, with the default configuration,
// and under a /{config} prefix carrying an encoded stremio.UserConfig.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(slogchi.NewWithConfig(common.Log, slogchi.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		WithUserAgent:    true,
		WithSpanID:       true,
		WithTraceID:      true,
	}))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{
			"Content-Type",
			"Authorization",
			"X-Requested-With",
			"Accept",
			"Accept-Language",
			"Accept-Encoding",
			"Content-Language",
			"Origin",
		},
		ExposedHeaders: []string{"Content-Type", "Content-Length", "Content-Disposition"},
		MaxAge:         86400,
	}))
	r.Use(allowAnyOrigin)
	r.Use(middleware.GetHead)

	r.Get("/", a.ConfigureHandler)
	r.Get("/configure", a.ConfigureHandler)
	r.Get("/health", a.HealthHandler)
	r.Get("/connection/websocket", a.WebsocketHandler)
	a.addonRoutes(r, "arabic.srt")

	r.Route("/{config}", func(r chi.Router) {
		r.Get("/configure", a.ConfigureHandler)
		a.addonRoutes(r, "translated.srt")
	})

	return r
}

func (a *App) addonRoutes(r chi.Router, streamFile string) {
	r.Get("/manifest.json", a.ManifestHandler)
	r.Get("/subtitles/{type}/{id}.json", a.SubtitlesHandler)
	r.Get("/subtitles/{type}/{id}/*", a.SubtitlesHandler)
	r.Get("/subtitle/{type}/{id}/"+streamFile, a.SubtitleHandler)
}

// allowAnyOrigin sets the wildcard origin on every response. Player subtitle clients often send no Origin
// header, and the cors middleware only answers requests that carry one.
func allowAnyOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}
