package loki

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoki_Counts(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		want    int
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name:    "vector",
			body:    `{"status":"success","data":{"resultType":"vector","result":[{"metric":{},"value":[1700000000,"42"]}]}}`,
			status:  http.StatusOK,
			want:    42,
			wantErr: assert.NoError,
		},
		{
			name:    "empty vector",
			body:    `{"status":"success","data":{"resultType":"vector","result":[]}}`,
			status:  http.StatusOK,
			want:    0,
			wantErr: assert.NoError,
		},
		{
			name:    "matrix",
			body:    `{"status":"success","data":{"resultType":"matrix","result":[]}}`,
			status:  http.StatusOK,
			wantErr: assert.Error,
		},
		{
			name:    "not a number",
			body:    `{"status":"success","data":{"resultType":"vector","result":[{"value":[1700000000,"x"]}]}}`,
			status:  http.StatusOK,
			wantErr: assert.Error,
		},
		{
			name:    "bad status",
			body:    `parse error`,
			status:  http.StatusBadRequest,
			wantErr: assert.Error,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/loki/api/v1/query", r.URL.Path)
				q := r.URL.Query().Get("query")
				assert.Contains(t, q, `service_name="stremio-autoarabic"`)
				assert.Contains(t, q, SearchLogMessage)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			got, err := NewLoki(srv.URL+"/", "stremio-autoarabic").GetSearches24(context.Background())
			tt.wantErr(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoki_Downloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("query"), DownloadLogMessage)
		_, _ = io.WriteString(w, `{"status":"success","data":{"resultType":"vector","result":[{"value":[1,"7"]}]}}`)
	}))
	defer srv.Close()

	got, err := NewLoki(srv.URL, "stremio-autoarabic").GetDownloads24(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, got)
}
