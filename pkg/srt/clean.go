package srt

import (
	"regexp"
	"strings"
)

var adPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)opensubtitles`),
	regexp.MustCompile(`(?i)subtitles? by`),
	regexp.MustCompile(`(?i)synced? (and|&) corrected`),
	regexp.MustCompile(`(?i)advertise (your|yours?) product`),
	regexp.MustCompile(`(?i)http(s)?://`),
	regexp.MustCompile(`(?i)\bwww\.`),
	regexp.MustCompile(`(?i)\bsubdl\b`),
	regexp.MustCompile(`(?i)\byts\b`),
	regexp.MustCompile(`(?i)\byify\b`),
}

// CleanAds returns a copy of d without advertisement cues, and how many cues were removed.
// A document made only of advertisements is returned unchanged.
func CleanAds(d *Document) (*Document, int) {
	cues := make([]Cue, 0, len(d.Cues))
	for _, cue := range d.Cues {
		if isAdvertisement(cue.Text) {
			continue
		}
		cues = append(cues, cue)
	}
	if len(cues) == 0 {
		return d, 0
	}
	return &Document{Cues: cues}, len(d.Cues) - len(cues)
}

func isAdvertisement(text string) bool {
	payload := strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	if payload == "" {
		return false
	}
	for _, pattern := range adPatterns {
		if pattern.MatchString(payload) {
			return true
		}
	}
	return false
}
