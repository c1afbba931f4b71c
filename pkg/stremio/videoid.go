package stremio

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var imdbTitleIDRE = regexp.MustCompile(`^tt\d+$`)

// VideoID is a Stremio video identifier: an IMDB title plus season and episode for series.
type VideoID struct {
	IMDBID  string
	Season  int
	Episode int
}

// IsEpisode reports whether the id points to a single series episode.
func (v VideoID) IsEpisode() bool {
	return v.Season > 0 && v.Episode > 0
}

// String returns the id in Stremio notation.
func (v VideoID) String() string {
	if v.IsEpisode() {
		return fmt.Sprintf("%s:%d:%d", v.IMDBID, v.Season, v.Episode)
	}
	return v.IMDBID
}

// ParseVideoID parses ids like "tt0133093", "tt0944947:1:2" and their path escaped
// or ".json" suffixed variants. Non numeric season or episode parts are ignored.
func ParseVideoID(s string) (VideoID, error) {
	unescaped, err := url.PathUnescape(s)
	if err != nil {
		return VideoID{}, fmt.Errorf("failed to url.PathUnescape: %w", err)
	}
	unescaped = strings.TrimSpace(strings.TrimSuffix(unescaped, ".json"))

	parts := strings.Split(unescaped, ":")
	v := VideoID{IMDBID: parts[0]}
	if !imdbTitleIDRE.MatchString(v.IMDBID) {
		return VideoID{}, fmt.Errorf("invalid IMDB title %q", v.IMDBID)
	}

	if len(parts) >= 3 {
		season, serr := strconv.Atoi(parts[1])
		episode, eerr := strconv.Atoi(parts[2])
		if serr == nil && eerr == nil && season > 0 && episode > 0 {
			v.Season = season
			v.Episode = episode
		}
	}

	return v, nil
}
