package opensubtitles

import (
	"bytes"
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

const defaultBaseURL = "https://api.opensubtitles.com/api/v1"

// SearchRequest describes a subtitle lookup by IMDB title, optionally narrowed to an episode.
type SearchRequest struct {
	IMDBID   string
	Season   int
	Episode  int
	Language string
}

// Subtitle is a subtitle candidate returned by a search.
type Subtitle struct {
	ID          string
	FileID      int64
	FileName    string
	Language    string
	Release     string
	Downloads   int
	Rating      float64
	DownloadURL string
}

// OpenSubtitles defines the methods to interact with the OpenSubtitles service.
type OpenSubtitles interface {
	// Search returns subtitle candidates, most downloaded first.
	Search(ctx context.Context, req SearchRequest) ([]Subtitle, error)
	// Download retrieves the subtitle file of a candidate.
	Download(ctx context.Context, sub Subtitle) (*archive.File, error)
}

type restV1 struct {
	httpClient *http.Client
	baseURL    string
}

// NewOpenSubtitles creates a client for the OpenSubtitles REST API v1, which requires an API key.
func NewOpenSubtitles(apiKey, userAgent string) (OpenSubtitles, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("opensubtitles api key is required")
	}

	return &restV1{
		httpClient: transport.NewHTTPClient(15*time.Second,
			transport.WithHeader("Api-Key", strings.TrimSpace(apiKey)),
			transport.WithUserAgent(userAgent),
			transport.WithHeader("Accept", "application/json"),
		),
		baseURL: defaultBaseURL,
	}, nil
}

// Search returns subtitle candidates, most downloaded first.
func (c *restV1) Search(ctx context.Context, sr SearchRequest) ([]Subtitle, error) {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "opensubtitles.OpenSubtitles.Search")
	defer span.End()
	span.SetAttributes(attribute.String("imdb.id", sr.IMDBID))

	imdbNumber, err := sanitizeIMDBID(sr.IMDBID)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("imdb_id", imdbNumber)
	params.Set("languages", languageOrDefault(sr.Language))
	if sr.Season > 0 && sr.Episode > 0 {
		params.Set("season_number", strconv.Itoa(sr.Season))
		params.Set("episode_number", strconv.Itoa(sr.Episode))
		params.Set("type", "episode")
	} else {
		params.Set("type", "movie")
	}
	params.Set("order_by", "download_count")
	params.Set("order_direction", "desc")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/subtitles?"+params.Encode(), nil)
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

	payload := struct {
		Data []struct {
			ID         string `json:"id"`
			Attributes struct {
				Language      string  `json:"language"`
				Release       string  `json:"release"`
				DownloadCount int     `json:"download_count"`
				Ratings       float64 `json:"ratings"`
				Files         []struct {
					FileID   int64  `json:"file_id"`
					FileName string `json:"file_name"`
				} `json:"files"`
			} `json:"attributes"`
		} `json:"data"`
	}{}
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to json.NewDecoder.Decode: %w", err)
	}

	subtitles := make([]Subtitle, 0, len(payload.Data))
	for _, entry := range payload.Data {
		if len(entry.Attributes.Files) == 0 || entry.Attributes.Files[0].FileID == 0 {
			continue
		}
		subtitles = append(subtitles, Subtitle{
			ID:        entry.ID,
			FileID:    entry.Attributes.Files[0].FileID,
			FileName:  entry.Attributes.Files[0].FileName,
			Language:  entry.Attributes.Language,
			Release:   entry.Attributes.Release,
			Downloads: entry.Attributes.DownloadCount,
			Rating:    entry.Attributes.Ratings,
		})
	}
	span.SetAttributes(attribute.Int("opensubtitles.results", len(subtitles)))

	return subtitles, nil
}

// Download negotiates a download link for the candidate file and retrieves it.
func (c *restV1) Download(ctx context.Context, sub Subtitle) (*archive.File, error) {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "opensubtitles.OpenSubtitles.Download")
	defer span.End()
	span.SetAttributes(attribute.Int64("opensubtitles.file_id", sub.FileID))

	if sub.FileID <= 0 {
		return nil, errors.New("invalid file id")
	}

	body, err := json.Marshal(map[string]any{
		"file_id":    sub.FileID,
		"sub_format": "srt",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to json.Marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/download", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to http.NewRequestWithContext: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to http.Client.Do: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, statusError(res)
	}

	link := struct {
		Link     string `json:"link"`
		FileName string `json:"file_name"`
	}{}
	if err := json.NewDecoder(res.Body).Decode(&link); err != nil {
		return nil, fmt.Errorf("failed to json.NewDecoder.Decode: %w", err)
	}
	if link.Link == "" {
		return nil, errors.New("download response missing link")
	}

	name := link.FileName
	if name == "" {
		name = sub.FileName
	}

	return fetchFile(ctx, c.httpClient, link.Link, name)
}

// fetchFile downloads url and extracts the subtitle it holds.
func fetchFile(ctx context.Context, httpClient *http.Client, url, name string) (*archive.File, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to http.NewRequestWithContext: %w", err)
	}

	res, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to http.Client.Do: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, statusError(res)
	}

	data, err := archive.ReadAllLimited(res.Body, archive.MaxSubtitleSize)
	if err != nil {
		return nil, fmt.Errorf("failed to archive.ReadAllLimited: %w", err)
	}

	file, err := archive.ExtractSubtitle(name, data)
	if err != nil {
		return nil, fmt.Errorf("failed to archive.ExtractSubtitle: %w", err)
	}

	return file, nil
}

func statusError(res *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
	return fmt.Errorf("invalid status code: %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
}

func sanitizeIMDBID(id string) (string, error) {
	n := strings.TrimPrefix(strings.TrimSpace(id), "tt")
	if _, err := strconv.ParseInt(n, 10, 64); err != nil {
		return "", fmt.Errorf("invalid imdb id %q", id)
	}
	return n, nil
}

func languageOrDefault(lang string) string {
	if lang == "" {
		return "en"
	}
	return lang
}
