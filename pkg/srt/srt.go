// Package srt parses and serializes SubRip subtitle documents.
package srt

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrNoCues is returned when a payload contains no usable cue.
	ErrNoCues = errors.New("subtitle has no cues")
	// ErrCueCountMismatch is returned when replacement texts do not align with the document cues.
	ErrCueCountMismatch = errors.New("texts count does not match cues count")
)

var timingRE = regexp.MustCompile(`(\d+):(\d{1,2}):(\d{1,2})[,.](\d{1,3})\s*-->\s*(\d+):(\d{1,2}):(\d{1,2})[,.](\d{1,3})`)

// Cue is a single timed subtitle entry.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Text  string
}

// Document is an ordered sequence of cues.
type Document struct {
	Cues []Cue
}

// Parse reads SRT content. It tolerates CRLF line endings, missing or non-numeric indexes and a dot as
// milliseconds separator. Blocks without a timing line or without text are dropped, and the remaining
// cues are sorted by start time.
func Parse(content string) (*Document, error) {
	content = strings.TrimPrefix(content, bom)
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	var cues []Cue
	var block []string
	flush := func() {
		if cue, ok := parseBlock(block); ok {
			cues = append(cues, cue)
		}
		block = block[:0]
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, " \t")
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		// A second timing line means the blank separator was missing.
		if timingRE.MatchString(line) && hasTiming(block) {
			var carry []string
			if last := block[len(block)-1]; isIndex(last) {
				carry = []string{last}
				block = block[:len(block)-1]
			}
			flush()
			block = append(block, carry...)
		}
		block = append(block, line)
	}
	flush()

	if len(cues) == 0 {
		return nil, ErrNoCues
	}

	sort.SliceStable(cues, func(i, j int) bool {
		return cues[i].Start < cues[j].Start
	})
	for i := range cues {
		cues[i].Index = i + 1
	}

	return &Document{Cues: cues}, nil
}

func hasTiming(lines []string) bool {
	for _, l := range lines {
		if timingRE.MatchString(l) {
			return true
		}
	}
	return false
}

func isIndex(line string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(line))
	return err == nil
}

func parseBlock(lines []string) (Cue, bool) {
	timingAt := -1
	for i := 0; i < len(lines) && i < 2; i++ {
		if timingRE.MatchString(lines[i]) {
			timingAt = i
			break
		}
	}
	if timingAt < 0 {
		return Cue{}, false
	}

	start, end, err := ParseTiming(lines[timingAt])
	if err != nil {
		return Cue{}, false
	}

	textLines := make([]string, 0, len(lines)-timingAt-1)
	for _, l := range lines[timingAt+1:] {
		textLines = append(textLines, strings.TrimSpace(l))
	}
	text := strings.TrimSpace(strings.Join(textLines, "\n"))
	if text == "" {
		return Cue{}, false
	}

	return Cue{Start: start, End: end, Text: text}, true
}

// ParseTiming parses a "00:02:16,612 --> 00:02:19,376" line.
func ParseTiming(line string) (time.Duration, time.Duration, error) {
	m := timingRE.FindStringSubmatch(line)
	if len(m) != 9 {
		return 0, 0, fmt.Errorf("invalid time format: %s", line)
	}
	return toDuration(m[1], m[2], m[3], m[4]), toDuration(m[5], m[6], m[7], m[8]), nil
}

func toDuration(hours, minutes, seconds, millis string) time.Duration {
	h, _ := strconv.Atoi(hours)
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)
	// "5" is half a second, not five milliseconds
	ms, _ := strconv.Atoi((millis + "00")[:3])

	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(ms)*time.Millisecond
}

// FormatDuration formats d as an SRT timestamp.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	milliseconds := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, milliseconds)
}

// Texts returns the cue texts, in cue order.
func (d *Document) Texts() []string {
	texts := make([]string, len(d.Cues))
	for i, cue := range d.Cues {
		texts[i] = cue.Text
	}
	return texts
}

// WithTexts returns a copy of the document where cue i carries texts[i]. Timings are kept as is.
func (d *Document) WithTexts(texts []string) (*Document, error) {
	if len(texts) != len(d.Cues) {
		return nil, fmt.Errorf("%w: %d texts for %d cues", ErrCueCountMismatch, len(texts), len(d.Cues))
	}

	cues := make([]Cue, len(d.Cues))
	for i, cue := range d.Cues {
		cue.Text = strings.TrimSpace(texts[i])
		if cue.Text == "" {
			cue.Text = d.Cues[i].Text
		}
		cues[i] = cue
	}

	return &Document{Cues: cues}, nil
}

// Bytes serializes the document with cues renumbered from 1.
func (d *Document) Bytes() []byte {
	var b strings.Builder
	for i, cue := range d.Cues {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n", i+1, FormatDuration(cue.Start), FormatDuration(cue.End), cue.Text)
	}
	return []byte(b.String())
}
