// Package archive unpacks the subtitle payloads returned by subtitle databases.
package archive

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/gen2brain/go-unarr"
)

// MaxSubtitleSize bounds both downloaded archives and the extracted subtitle file.
const MaxSubtitleSize = 2 * 1024 * 1024

// ErrNoSubtitleInArchive is returned when an archive holds no .srt entry.
var ErrNoSubtitleInArchive = errors.New("no SRT file found in archive")

// File is a subtitle file extracted from a downloaded payload.
type File struct {
	Name string
	Data []byte
}

// Format identifies the container of a downloaded payload.
type Format string

const (
	FormatZip   Format = "zip"
	FormatRar   Format = "rar"
	Format7z    Format = "7z"
	FormatGzip  Format = "gzip"
	FormatPlain Format = "plain"
)

// Detect checks the payload magic bytes.
func Detect(data []byte) Format {
	switch {
	// standard ZIP signature
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return FormatZip
	// RAR 1.5-4.0 and RAR 5.0
	case bytes.HasPrefix(data, []byte("Rar!\x1A\x07\x00")),
		bytes.HasPrefix(data, []byte("Rar!\x1A\x07\x01\x00")):
		return FormatRar
	case bytes.HasPrefix(data, []byte("7z\xBC\xAF\x27\x1C")):
		return Format7z
	case bytes.HasPrefix(data, []byte("\x1F\x8B")):
		return FormatGzip
	default:
		return FormatPlain
	}
}

// ExtractSubtitle returns the first SRT file found in data. Plain payloads are returned as is.
func ExtractSubtitle(name string, data []byte) (*File, error) {
	return ExtractEpisodeSubtitle(name, data, 0, 0)
}

// ExtractEpisodeSubtitle is like ExtractSubtitle, but archives holding several episodes return the SRT file
// whose name carries the SxxEyy tag of season and episode. It falls back to the first SRT file.
func ExtractEpisodeSubtitle(name string, data []byte, season, episode int) (*File, error) {
	if len(data) == 0 {
		return nil, errors.New("empty payload")
	}

	match := episodeMatcher(season, episode)

	switch Detect(data) {
	case FormatZip:
		return extractZip(data, match)
	case FormatRar, Format7z:
		return extractUnarr(data, match)
	case FormatGzip:
		return extractGzip(name, data)
	default:
		return &File{Name: name, Data: data}, nil
	}
}

func isSubtitle(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".srt")
}

// episodeMatcher reports whether a file name is tagged with season and episode, as in "Show.S01E02.srt".
// Without an episode every name matches.
func episodeMatcher(season, episode int) func(filename string) bool {
	if season <= 0 || episode <= 0 {
		return func(string) bool { return true }
	}
	re := regexp.MustCompile(fmt.Sprintf(`(?i)s0*%d[ ._-]?e0*%d(?:\D|$)`, season, episode))
	return func(filename string) bool {
		return re.MatchString(path.Base(filename))
	}
}

func extractZip(data []byte, match func(string) bool) (*File, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid ZIP: %w", err)
	}

	var srtFile *zip.File
	for _, file := range zr.File {
		if !isSubtitle(file.Name) {
			continue
		}
		if srtFile == nil {
			srtFile = file
		}
		if match(file.Name) {
			srtFile = file
			break
		}
	}
	if srtFile == nil {
		return nil, ErrNoSubtitleInArchive
	}

	rc, err := srtFile.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open SRT in ZIP: %w", err)
	}
	defer rc.Close()

	b, err := ReadAllLimited(rc, MaxSubtitleSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read SRT in ZIP: %w", err)
	}

	return &File{Name: path.Base(srtFile.Name), Data: b}, nil
}

func extractUnarr(data []byte, match func(string) bool) (*File, error) {
	a, err := unarr.NewArchiveFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unarr.NewArchiveFromMemory: %w", err)
	}
	defer a.Close()

	var first *File
	for {
		err := a.Entry()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to unarr.Archive.Entry: %w", err)
		}
		if !isSubtitle(a.Name()) {
			continue
		}
		matched := match(a.Name())
		if first != nil && !matched {
			continue
		}
		if a.Size() > MaxSubtitleSize {
			return nil, ErrReadBeyondLimit
		}

		b, err := a.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("failed to unarr.Archive.ReadAll: %w", err)
		}

		file := &File{Name: path.Base(a.Name()), Data: b}
		if matched {
			return file, nil
		}
		first = file
	}

	if first == nil {
		return nil, ErrNoSubtitleInArchive
	}
	return first, nil
}

func extractGzip(name string, data []byte) (*File, error) {
	gzr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("invalid GZIP: %w", err)
	}
	defer gzr.Close()

	b, err := ReadAllLimited(gzr, MaxSubtitleSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read GZIP: %w", err)
	}

	if gzr.Name != "" {
		name = gzr.Name
	}

	return &File{Name: strings.TrimSuffix(name, ".gz"), Data: b}, nil
}
