package loki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ogero/stremio-autoarabic/pkg/transport"
)

// Log messages counted by the 24h queries. The addon service logs them once per search and per served subtitle.
const (
	SearchLogMessage   = "Subtitles searched"
	DownloadLogMessage = "Subtitle translated"
)

// Loki represents an interface for retrieving search and download statistics.
type Loki interface {
	// GetSearches24 retrieves the total number of searches performed in the last 24 hours.
	GetSearches24(ctx context.Context) (int, error)
	// GetDownloads24 retrieves the total number of translated subtitles served in the last 24 hours.
	GetDownloads24(ctx context.Context) (int, error)
}

type autoArabicLoki struct {
	httpClient  *http.Client
	lokiHost    string
	serviceName string
}

// NewLoki creates a Loki client querying the logs of serviceName.
func NewLoki(lokiHost, serviceName string) Loki {
	return &autoArabicLoki{
		httpClient:  transport.NewHTTPClient(30 * time.Second),
		lokiHost:    strings.TrimRight(lokiHost, "/"),
		serviceName: serviceName,
	}
}

// GetSearches24 retrieves the total number of searches performed in the last 24 hours.
func (s *autoArabicLoki) GetSearches24(ctx context.Context) (int, error) {
	return s.countLokiLogs(ctx, SearchLogMessage)
}

// GetDownloads24 retrieves the total number of translated subtitles served in the last 24 hours.
func (s *autoArabicLoki) GetDownloads24(ctx context.Context) (int, error) {
	return s.countLokiLogs(ctx, DownloadLogMessage)
}

func (s *autoArabicLoki) countLokiLogs(ctx context.Context, search string) (int, error) {
	query := fmt.Sprintf("sum(count_over_time({service_name=%q} |= `%s` [24h]))", s.serviceName, search)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.lokiHost+"/loki/api/v1/query?"+url.Values{"query": {query}}.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to http.NewRequestWithContext: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to http.Client.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("invalid status code: %d", resp.StatusCode)
	}

	var lokiResp Response
	if err := json.NewDecoder(resp.Body).Decode(&lokiResp); err != nil {
		return 0, fmt.Errorf("failed to json.Decoder.Decode: %w", err)
	}

	if lokiResp.Status != "success" {
		return 0, fmt.Errorf("loki response status: %s", lokiResp.Status)
	}

	if lokiResp.Data.ResultType != "vector" {
		return 0, fmt.Errorf("loki response data result type: %s", lokiResp.Data.ResultType)
	}

	// No matching lines yields an empty vector.
	if len(lokiResp.Data.Result) == 0 {
		return 0, nil
	}

	if len(lokiResp.Data.Result[0].Value) != 2 {
		return 0, fmt.Errorf("loki response data result value length: %d", len(lokiResp.Data.Result[0].Value))
	}

	value, ok := (lokiResp.Data.Result[0].Value[1]).(string)
	if !ok {
		return 0, fmt.Errorf("failed to assert value to string: %v", lokiResp.Data.Result[0].Value[1])
	}

	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("failed to strconv.Atoi: %w", err)
	}

	return i, nil
}

// Response is the body of a Loki instant query.
type Response struct {
	Status string `json:"status"`
	Data   struct {
		ResultType string `json:"resultType"`
		Result     []struct {
			Metric map[string]string `json:"metric"`
			Value  []interface{}     `json:"value"`
		} `json:"result"`
	} `json:"data"`
}
