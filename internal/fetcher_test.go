package internal

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ogero/stremio-autoarabic/pkg/archive"
	"github.com/ogero/stremio-autoarabic/pkg/stremio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var matrix = stremio.VideoID{IMDBID: "tt0133093"}

func TestSubtitleFetcher_Fetch(t *testing.T) {
	broken := &fakeProvider{name: "broken", searchErr: errUpstream}
	empty := &fakeProvider{name: "empty"}
	good := &fakeProvider{name: "good", files: []*archive.File{
		fixtureFile("tiny.srt", "1\n00:00:01,000 --> 00:00:02,000\nHi\n"),
		fixtureFile("japanese.srt", japaneseFixture),
		fixtureFile("english.srt", englishFixture),
	}}

	sub, err := NewSubtitleFetcher(broken, empty, good).Fetch(context.Background(), matrix)
	require.NoError(t, err)

	assert.Equal(t, "good", sub.Provider)
	assert.Equal(t, "english.srt", sub.FileName)
	assert.Len(t, sub.Document.Cues, 5)
	assert.Equal(t, 3, good.downloads)
}

func TestSubtitleFetcher_Fetch_CandidateLimit(t *testing.T) {
	files := make([]*archive.File, 0, 8)
	for i := 0; i < 8; i++ {
		files = append(files, fixtureFile("tiny.srt", "tiny"))
	}
	first := &fakeProvider{name: "first", files: files[:3]}
	second := &fakeProvider{name: "second", files: files[3:]}

	_, err := NewSubtitleFetcher(first, second).Fetch(context.Background(), matrix)
	assert.ErrorIs(t, err, ErrSubtitleNotFound)
	assert.Equal(t, 3, first.downloads)
	assert.Equal(t, maxCandidates-3, second.downloads)
}

func TestSubtitleFetcher_Fetch_Errors(t *testing.T) {
	tests := []struct {
		name         string
		providers    []SubtitleProvider
		wantNotFound bool
	}{
		{
			name:         "no providers",
			providers:    nil,
			wantNotFound: true,
		},
		{
			name:         "no candidates",
			providers:    []SubtitleProvider{&fakeProvider{name: "a"}, &fakeProvider{name: "b"}},
			wantNotFound: true,
		},
		{
			name:         "one provider down, other empty",
			providers:    []SubtitleProvider{&fakeProvider{name: "a", searchErr: errUpstream}, &fakeProvider{name: "b"}},
			wantNotFound: true,
		},
		{
			name:         "all providers down",
			providers:    []SubtitleProvider{&fakeProvider{name: "a", searchErr: errUpstream}},
			wantNotFound: false,
		},
		{
			name: "downloads failing",
			providers: []SubtitleProvider{&fakeProvider{name: "a", dlErr: errUpstream, files: []*archive.File{
				fixtureFile("english.srt", englishFixture),
			}}},
			wantNotFound: false,
		},
		{
			name: "only rejected candidates",
			providers: []SubtitleProvider{&fakeProvider{name: "a", files: []*archive.File{
				fixtureFile("japanese.srt", japaneseFixture),
			}}},
			wantNotFound: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSubtitleFetcher(tt.providers...).Fetch(context.Background(), matrix)
			require.Error(t, err)
			assert.Equal(t, tt.wantNotFound, errors.Is(err, ErrSubtitleNotFound), err.Error())
		})
	}
}

func TestSubtitleFetcher_Search(t *testing.T) {
	good := &fakeProvider{name: "good", files: []*archive.File{
		fixtureFile("a.srt", englishFixture),
		fixtureFile("b.srt", englishFixture),
	}}
	unused := &fakeProvider{name: "unused", files: []*archive.File{fixtureFile("c.srt", englishFixture)}}

	count, err := NewSubtitleFetcher(&fakeProvider{name: "empty"}, good, unused).Search(context.Background(), matrix)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Zero(t, good.downloads)
	assert.Zero(t, unused.searches)

	_, err = NewSubtitleFetcher(&fakeProvider{name: "empty"}).Search(context.Background(), matrix)
	assert.ErrorIs(t, err, ErrSubtitleNotFound)

	_, err = NewSubtitleFetcher(&fakeProvider{name: "down", searchErr: errUpstream}).Search(context.Background(), matrix)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSubtitleNotFound)
}

func TestAcceptSubtitle(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		wantReason string
	}{
		{"english", englishFixture, ""},
		{"too small", "1\n00:00:01,000 --> 00:00:02,000\nHi\n", "too small"},
		{"not srt", strings.Repeat("lorem ipsum dolor sit amet ", 10), "no cues"},
		{"japanese", japaneseFixture, "not english"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, reason := acceptSubtitle(fixtureFile("x.srt", tt.data))
			if tt.wantReason == "" {
				assert.NotNil(t, doc)
				return
			}
			assert.Nil(t, doc)
			assert.Contains(t, reason, tt.wantReason)
		})
	}
}
