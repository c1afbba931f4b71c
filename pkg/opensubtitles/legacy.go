package opensubtitles

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ogero/stremio-autoarabic/pkg/archive"
	"github.com/ogero/stremio-autoarabic/pkg/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultLegacyBaseURL   = "https://rest.opensubtitles.org"
	defaultLegacyUserAgent = "TemporaryUserAgent"
)

// legacy639 maps ISO 639-1 codes to the three letter ids the legacy API expects.
var legacy639 = map[string]string{
	"en": "eng",
}

type legacyREST struct {
	httpClient *http.Client
	baseURL    string
}

// NewLegacyOpenSubtitles creates a client for the keyless rest.opensubtitles.org search API.
func NewLegacyOpenSubtitles() OpenSubtitles {
	return &legacyREST{
		httpClient: transport.NewHTTPClient(15*time.Second,
			transport.WithUserAgent(defaultLegacyUserAgent),
		),
		baseURL: defaultLegacyBaseURL,
	}
}

// Search returns subtitle candidates in the order the API ranks them.
func (c *legacyREST) Search(ctx context.Context, sr SearchRequest) ([]Subtitle, error) {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "opensubtitles.LegacyOpenSubtitles.Search")
	defer span.End()
	span.SetAttributes(attribute.String("imdb.id", sr.IMDBID))

	imdbNumber, err := sanitizeIMDBID(sr.IMDBID)
	if err != nil {
		return nil, err
	}

	lang, ok := legacy639[languageOrDefault(sr.Language)]
	if !ok {
		return nil, fmt.Errorf("unsupported language %q", sr.Language)
	}

	segments := []string{c.baseURL, "search", "imdbid-" + imdbNumber}
	if sr.Season > 0 && sr.Episode > 0 {
		segments = append(segments, fmt.Sprintf("season-%d", sr.Season), fmt.Sprintf("episode-%d", sr.Episode))
	}
	segments = append(segments, "sublanguageid-"+lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.Join(segments, "/"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to http.NewRequestWithContext: %w", err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to http.Client.Do: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, statusError(res)
	}

	var payload []struct {
		IDSubtitleFile   string `json:"IDSubtitleFile"`
		SubFileName      string `json:"SubFileName"`
		SubFormat        string `json:"SubFormat"`
		SubLanguageID    string `json:"SubLanguageID"`
		SubRating        string `json:"SubRating"`
		SubDownloadsCnt  string `json:"SubDownloadsCnt"`
		SubDownloadLink  string `json:"SubDownloadLink"`
		MovieReleaseName string `json:"MovieReleaseName"`
	}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to json.NewDecoder.Decode: %w", err)
	}

	subtitles := make([]Subtitle, 0, len(payload))
	for _, entry := range payload {
		if entry.SubDownloadLink == "" {
			continue
		}
		if entry.SubFormat != "" && !strings.EqualFold(entry.SubFormat, "srt") {
			continue
		}
		fileID, _ := strconv.ParseInt(entry.IDSubtitleFile, 10, 64)
		rating, _ := strconv.ParseFloat(entry.SubRating, 64)
		downloads, _ := strconv.Atoi(entry.SubDownloadsCnt)
		subtitles = append(subtitles, Subtitle{
			ID:          entry.IDSubtitleFile,
			FileID:      fileID,
			FileName:    entry.SubFileName,
			Language:    languageOrDefault(sr.Language),
			Release:     entry.MovieReleaseName,
			Downloads:   downloads,
			Rating:      rating,
			DownloadURL: entry.SubDownloadLink,
		})
	}
	span.SetAttributes(attribute.Int("opensubtitles.results", len(subtitles)))

	return subtitles, nil
}

// Download retrieves the gzipped subtitle behind the candidate download link.
func (c *legacyREST) Download(ctx context.Context, sub Subtitle) (*archive.File, error) {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "opensubtitles.LegacyOpenSubtitles.Download")
	defer span.End()
	span.SetAttributes(attribute.String("opensubtitles.id", sub.ID))

	if sub.DownloadURL == "" {
		return nil, fmt.Errorf("subtitle %s has no download link", sub.ID)
	}

	return fetchFile(ctx, c.httpClient, sub.DownloadURL, sub.FileName)
}
