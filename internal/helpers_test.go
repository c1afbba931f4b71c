package internal

import (
	"context"
	"errors"
	"strings"

	"github.com/ogero/stremio-autoarabic/pkg/archive"
	"github.com/ogero/stremio-autoarabic/pkg/stremio"
	"github.com/ogero/stremio-autoarabic/pkg/translate"
)

const englishFixture = "1\r\n" +
	"00:00:01,000 --> 00:00:03,500\r\n" +
	"Hello there, how are you doing today?\r\n" +
	"\r\n" +
	"2\r\n" +
	"00:00:04,000 --> 00:00:06,000\r\n" +
	"I am fine, thank you very much for asking.\r\n" +
	"\r\n" +
	"3\r\n" +
	"00:00:06,500 --> 00:00:09,250\r\n" +
	"We should leave before the storm arrives.\r\n" +
	"Take your coat with you.\r\n" +
	"\r\n" +
	"4\r\n" +
	"00:01:10,000 --> 00:01:12,000\r\n" +
	"♪ ♪\r\n" +
	"\r\n" +
	"5\r\n" +
	"00:01:13,000 --> 00:01:15,500\r\n" +
	"Where did you put the keys of the house?\r\n"

const japaneseFixture = "1\n00:00:01,000 --> 00:00:03,000\nわたしは げんきです。 ありがとう ございます。\n\n" +
	"2\n00:00:04,000 --> 00:00:06,000\nあなたは どこに いきますか。 あしたは あめが ふります。\n\n" +
	"3\n00:00:07,000 --> 00:00:09,000\nこれは わたしの ほんです。 それは あなたの かさですか。\n"

var errUpstream = errors.New("upstream unreachable")

// fakeProvider serves fixed candidates and records downloads.
type fakeProvider struct {
	name      string
	files     []*archive.File
	searchErr error
	dlErr     error
	downloads int
	searches  int
}

func (p *fakeProvider) Name() string {
	return p.name
}

func (p *fakeProvider) Candidates(_ context.Context, _ stremio.VideoID) ([]Candidate, error) {
	p.searches++
	if p.searchErr != nil {
		return nil, p.searchErr
	}
	out := make([]Candidate, 0, len(p.files))
	for _, f := range p.files {
		out = append(out, Candidate{
			Provider: p.name,
			Label:    f.Name,
			Download: func(context.Context) (*archive.File, error) {
				p.downloads++
				if p.dlErr != nil {
					return nil, p.dlErr
				}
				return f, nil
			},
		})
	}
	return out, nil
}

func fixtureFile(name, content string) *archive.File {
	return &archive.File{Name: name, Data: []byte(content)}
}

// engineFunc adapts a function to translate.Engine.
type engineFunc func(ctx context.Context, text, source, target string) (string, error)

func (f engineFunc) TranslateText(ctx context.Context, text, source, target string) (string, error) {
	return f(ctx, text, source, target)
}

// prefixEngine translates every line by prefixing it, keeping line alignment.
func prefixEngine(prefix string) translate.Engine {
	return engineFunc(func(_ context.Context, text, _, _ string) (string, error) {
		lines := strings.Split(text, "\n")
		for i := range lines {
			lines[i] = prefix + lines[i]
		}
		return strings.Join(lines, "\n"), nil
	})
}

func failingEngine() translate.Engine {
	return engineFunc(func(context.Context, string, string, string) (string, error) {
		return "", errUpstream
	})
}
