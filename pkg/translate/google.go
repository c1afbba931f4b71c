package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ogero/stremio-autoarabic/pkg/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultGoogleBaseURL = "https://translate.googleapis.com"

// Engine sends a single block of text to a machine-translation service.
// Line breaks in text must be preserved in the returned translation.
type Engine interface {
	TranslateText(ctx context.Context, text, source, target string) (string, error)
}

type google struct {
	httpClient *http.Client
	baseURL    string
}

// NewGoogle creates an Engine backed by the public Google Translate web endpoint.
func NewGoogle(baseURL string) Engine {
	if baseURL == "" {
		baseURL = defaultGoogleBaseURL
	}
	return &google{
		httpClient: transport.NewHTTPClient(20*time.Second,
			transport.WithUserAgent(transport.BrowserUserAgent),
		),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// TranslateText translates text from source to target language.
func (g *google) TranslateText(ctx context.Context, text, source, target string) (string, error) {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "translate.Engine.TranslateText")
	defer span.End()
	span.SetAttributes(
		attribute.String("translate.source", source),
		attribute.String("translate.target", target),
		attribute.Int("translate.chars", len(text)),
	)

	params := url.Values{}
	params.Set("client", "gtx")
	params.Set("sl", source)
	params.Set("tl", target)
	params.Set("dt", "t")

	form := url.Values{}
	form.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/translate_a/single?"+params.Encode(), strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")

	res, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to http.Client.Do: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return "", fmt.Errorf("invalid status code: %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	// [[["translated","original",...],...],null,"en",...]
	var payload []json.RawMessage
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to json.NewDecoder.Decode: %w", err)
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("empty translation response")
	}

	var sentences [][]any
	if err := json.Unmarshal(payload[0], &sentences); err != nil {
		return "", fmt.Errorf("failed to json.Unmarshal sentences: %w", err)
	}

	var b strings.Builder
	for _, sentence := range sentences {
		if len(sentence) == 0 {
			continue
		}
		if s, ok := sentence[0].(string); ok {
			b.WriteString(s)
		}
	}

	return b.String(), nil
}
