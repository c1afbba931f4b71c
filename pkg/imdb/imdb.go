package imdb

import (
	"context"
	"fmt"
	"time"
)

// Title represents a movie or series title with its name and release year.
type Title struct {
	Name string
	Year int
	Type string
}

// String returns "Name (Year)", or just the name when the year is unknown.
func (t Title) String() string {
	if t.Year <= 0 {
		return t.Name
	}
	return fmt.Sprintf("%s (%d)", t.Name, t.Year)
}

// IsSettled reports whether the title was released before last year, so its subtitles rarely change.
func (t Title) IsSettled(now time.Time) bool {
	return t.Year > 0 && t.Year < now.Year()-1
}

// IMDB defines the methods to interact with the IMDB service.
type IMDB interface {
	// GetTitle gets a Title by its ID.
	GetTitle(ctx context.Context, imdbID string) (*Title, error)
}
