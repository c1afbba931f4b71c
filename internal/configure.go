package internal

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/ogero/stremio-autoarabic/internal/common"
	"github.com/ogero/stremio-autoarabic/pkg/stremio"
	"go.opentelemetry.io/otel/trace"
)

//go:embed templates/configure.html
var configureHTML string

var configureTemplate = template.Must(template.New("configure").Parse(configureHTML))

type configurePage struct {
	AddonName   string
	Version     string
	AddonHost   string
	Languages   []stremio.Language
	Config      stremio.UserConfig
	ManifestURL string
	StremioURL  template.URL
}

/*
ConfigureHandler serves the configuration page.

The page is a plain form: submitting it reloads the page with the chosen language and mode, and the install
links are computed on the server from the encoded configuration.
*/
func (a *App) ConfigureHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)

	common.Log.DebugContext(ctx, "ConfigureHandler")

	cfg, _ := userConfig(r)
	q := r.URL.Query()
	if lang := q.Get("lang"); lang != "" {
		if l, ok := stremio.LookupLanguage(lang); ok {
			cfg.Lang = l.Code
		}
	}
	if q.Get("submitted") != "" {
		cfg.Android = q.Get("android") == "on"
	}

	manifestURL := a.AddonHost + "/" + cfg.Encode() + "/manifest.json"
	page := configurePage{
		AddonName:   AddonName,
		Version:     AddonVersion,
		AddonHost:   a.AddonHost,
		Languages:   stremio.Languages(),
		Config:      cfg,
		ManifestURL: manifestURL,
		// html/template rejects unknown schemes unless marked safe.
		StremioURL: template.URL("stremio://" + strings.TrimPrefix(strings.TrimPrefix(manifestURL, "https://"), "http://")),
	}

	buf := new(bytes.Buffer)
	if err := configureTemplate.Execute(buf, page); err != nil {
		common.Log.ErrorContext(ctx, "Failed to template.Template.Execute", "err", err)
		span.RecordError(err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		common.Log.ErrorContext(ctx, "Failed to write response", "err", err)
		span.RecordError(err)
	}
}
