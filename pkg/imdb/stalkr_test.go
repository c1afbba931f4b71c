package imdb

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/StalkR/imdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStalkrIMDB_GetTitle(t *testing.T) {

	s := &stalkrIMDB{
		httpClient: &http.Client{},
		getTitle: func(c *http.Client, id string) (*imdb.Title, error) {
			if id == "tt0133093" {
				return &imdb.Title{
					Name: "The Matrix",
					Year: 1999,
					Type: "Movie",
				}, nil
			}
			return nil, fmt.Errorf("expected id tt0133093, got %s", id)
		},
	}

	title, err := s.GetTitle(context.Background(), "tt0133093")
	require.NoError(t, err)

	assert.Equal(t, "The Matrix", title.Name)
	assert.Equal(t, 1999, title.Year)
	assert.Equal(t, "Movie", title.Type)

	_, err = s.GetTitle(context.Background(), "tt1")
	assert.Error(t, err)
}

func TestTitle(t *testing.T) {
	now := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		title       Title
		wantString  string
		wantSettled bool
	}{
		{Title{Name: "The Matrix", Year: 1999}, "The Matrix (1999)", true},
		{Title{Name: "New Show", Year: 2026}, "New Show (2026)", false},
		{Title{Name: "Last Year", Year: 2025}, "Last Year (2025)", false},
		{Title{Name: "Unknown"}, "Unknown", false},
	}
	for _, tt := range tests {
		t.Run(tt.wantString, func(t *testing.T) {
			assert.Equal(t, tt.wantString, tt.title.String())
			assert.Equal(t, tt.wantSettled, tt.title.IsSettled(now))
		})
	}
}
