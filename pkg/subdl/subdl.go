package subdl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ogero/stremio-autoarabic/pkg/archive"
	"github.com/ogero/stremio-autoarabic/pkg/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultAPIURL      = "https://api.subdl.com/api/v1"
	defaultDownloadURL = "https://dl.subdl.com"
	pageSize           = 10
)

// SearchRequest describes a subtitle lookup by IMDB title, optionally narrowed to an episode.
type SearchRequest struct {
	IMDBID   string
	Season   int
	Episode  int
	Language string
}

// Subtitle is a SubDL subtitle entry. URL is the archive path relative to the download host.
type Subtitle struct {
	Name            string
	ReleaseName     string
	Language        string
	URL             string
	Season          int
	Episode         int
	HearingImpaired bool
}

// SubDL defines the methods to interact with the SubDL service.
type SubDL interface {
	// Search returns the subtitles listed for a title.
	Search(ctx context.Context, req SearchRequest) ([]Subtitle, error)
	// Download retrieves the subtitle archive and extracts its SRT file.
	Download(ctx context.Context, sub Subtitle) (*archive.File, error)
}

type subdl struct {
	httpClient  *http.Client
	apiKey      string
	apiURL      string
	downloadURL string
}

// NewSubDL creates a new instance of the SubDL service.
func NewSubDL(apiKey string) (SubDL, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("subdl api key is required")
	}

	return &subdl{
		httpClient: transport.NewHTTPClient(15*time.Second,
			transport.WithUserAgent(transport.BrowserUserAgent),
		),
		apiKey:      strings.TrimSpace(apiKey),
		apiURL:      defaultAPIURL,
		downloadURL: defaultDownloadURL,
	}, nil
}

// Search returns the subtitles listed for a title.
func (s *subdl) Search(ctx context.Context, sr SearchRequest) ([]Subtitle, error) {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "subdl.SubDL.Search")
	defer span.End()
	span.SetAttributes(attribute.String("imdb.id", sr.IMDBID))

	lang := strings.ToUpper(sr.Language)
	if lang == "" {
		lang = "EN"
	}

	params := url.Values{}
	params.Set("api_key", s.apiKey)
	params.Set("imdb_id", sr.IMDBID)
	params.Set("languages", lang)
	params.Set("subs_per_page", strconv.Itoa(pageSize))
	if sr.Season > 0 && sr.Episode > 0 {
		params.Set("type", "tv")
		params.Set("season_number", strconv.Itoa(sr.Season))
		params.Set("episode_number", strconv.Itoa(sr.Episode))
	} else {
		params.Set("type", "movie")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.apiURL+"/subtitles?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to http.NewRequestWithContext: %w", err)
	}

	res, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to http.Client.Do: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("invalid status code: %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}

	payload := struct {
		Status    bool   `json:"status"`
		Error     string `json:"error"`
		Subtitles []struct {
			Name        string `json:"name"`
			ReleaseName string `json:"release_name"`
			Lang        string `json:"lang"`
			Language    string `json:"language"`
			URL         string `json:"url"`
			Season      int    `json:"season"`
			Episode     int    `json:"episode"`
			HI          bool   `json:"hi"`
		} `json:"subtitles"`
	}{}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to json.NewDecoder.Decode: %w", err)
	}

	// SubDL answers unknown titles with status false and an error message.
	if !payload.Status {
		span.SetAttributes(attribute.String("subdl.error", payload.Error))
		return nil, nil
	}

	subtitles := make([]Subtitle, 0, len(payload.Subtitles))
	for _, entry := range payload.Subtitles {
		if entry.URL == "" {
			continue
		}
		if sr.Episode > 0 && entry.Episode > 0 && entry.Episode != sr.Episode {
			continue
		}
		sub := Subtitle{
			Name:            entry.Name,
			ReleaseName:     entry.ReleaseName,
			Language:        strings.ToLower(entry.Language),
			URL:             entry.URL,
			Season:          entry.Season,
			Episode:         entry.Episode,
			HearingImpaired: entry.HI,
		}
		// Season packs list no episode; keep the requested one so Download picks its file.
		if sub.Episode == 0 && sr.Episode > 0 {
			sub.Season = sr.Season
			sub.Episode = sr.Episode
		}
		subtitles = append(subtitles, sub)
	}
	span.SetAttributes(attribute.Int("subdl.results", len(subtitles)))

	return subtitles, nil
}

// Download retrieves the subtitle archive and extracts its SRT file.
func (s *subdl) Download(ctx context.Context, sub Subtitle) (*archive.File, error) {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "subdl.SubDL.Download")
	defer span.End()
	span.SetAttributes(attribute.String("subdl.url", sub.URL))

	if sub.URL == "" {
		return nil, errors.New("subtitle has no download url")
	}

	link := sub.URL
	if !strings.HasPrefix(link, "http://") && !strings.HasPrefix(link, "https://") {
		link = s.downloadURL + "/" + strings.TrimPrefix(link, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to http.NewRequestWithContext: %w", err)
	}

	res, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to http.Client.Do: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("invalid status code: %d", res.StatusCode)
	}

	data, err := archive.ReadAllLimited(res.Body, archive.MaxSubtitleSize)
	if err != nil {
		return nil, fmt.Errorf("failed to archive.ReadAllLimited: %w", err)
	}

	file, err := archive.ExtractEpisodeSubtitle(sub.Name, data, sub.Season, sub.Episode)
	if err != nil {
		return nil, fmt.Errorf("failed to archive.ExtractEpisodeSubtitle: %w", err)
	}

	return file, nil
}
