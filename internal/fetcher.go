package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/ogero/stremio-autoarabic/internal/common"
	"github.com/ogero/stremio-autoarabic/pkg/archive"
	"github.com/ogero/stremio-autoarabic/pkg/opensubtitles"
	"github.com/ogero/stremio-autoarabic/pkg/srt"
	"github.com/ogero/stremio-autoarabic/pkg/stremio"
	"github.com/ogero/stremio-autoarabic/pkg/subdl"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// maxCandidates bounds how many downloads a single fetch may attempt across all providers.
	maxCandidates = 5
	// minSubtitleSize is the smallest payload considered a real subtitle.
	minSubtitleSize = 100
	// languageSampleCues is how many cues feed the language detection.
	languageSampleCues = 200
)

// ErrSubtitleNotFound is returned when no provider has a usable English subtitle.
var ErrSubtitleNotFound = errors.New("subtitle not found")

// Candidate is a downloadable subtitle offered by a provider.
type Candidate struct {
	Provider string
	Label    string
	Download func(ctx context.Context) (*archive.File, error)
}

// SubtitleProvider lists English subtitle candidates for a video.
type SubtitleProvider interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	// Candidates returns downloadable subtitles, best first.
	Candidates(ctx context.Context, id stremio.VideoID) ([]Candidate, error)
}

// SourceSubtitle is a downloaded and parsed English subtitle.
type SourceSubtitle struct {
	Provider string
	FileName string
	Document *srt.Document
}

// SubtitleFetcher finds and downloads English subtitles from the configured providers, in order.
type SubtitleFetcher interface {
	// Search returns how many candidates the first provider with results offers, without downloading them.
	Search(ctx context.Context, id stremio.VideoID) (int, error)
	// Fetch downloads the first usable English subtitle.
	Fetch(ctx context.Context, id stremio.VideoID) (*SourceSubtitle, error)
}

type subtitleFetcher struct {
	providers []SubtitleProvider
}

// NewSubtitleFetcher creates a fetcher trying providers in the given order.
func NewSubtitleFetcher(providers ...SubtitleProvider) SubtitleFetcher {
	return &subtitleFetcher{providers: providers}
}

// Search returns how many candidates the first provider with results offers, without downloading them.
func (f *subtitleFetcher) Search(ctx context.Context, id stremio.VideoID) (int, error) {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "internal.SubtitleFetcher.Search")
	defer span.End()

	var errs []error
	for _, p := range f.providers {
		candidates, err := p.Candidates(ctx, id)
		if err != nil {
			common.Log.WarnContext(ctx, "Failed to SubtitleProvider.Candidates", "provider", p.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		if len(candidates) > 0 {
			span.SetAttributes(attribute.String("provider", p.Name()), attribute.Int("candidates", len(candidates)))
			return len(candidates), nil
		}
	}

	if len(errs) > 0 && len(errs) == len(f.providers) {
		return 0, fmt.Errorf("failed to search subtitles: %w", errors.Join(errs...))
	}

	return 0, ErrSubtitleNotFound
}

// Fetch downloads the first usable English subtitle.
// Payloads that are tiny, unparsable or detected as another language are skipped.
func (f *subtitleFetcher) Fetch(ctx context.Context, id stremio.VideoID) (*SourceSubtitle, error) {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "internal.SubtitleFetcher.Fetch")
	defer span.End()

	var errs []error
	attempts, rejected, failedProviders := 0, 0, 0

	for _, p := range f.providers {
		candidates, err := p.Candidates(ctx, id)
		if err != nil {
			common.Log.WarnContext(ctx, "Failed to SubtitleProvider.Candidates", "provider", p.Name(), "err", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			failedProviders++
			continue
		}

		for _, c := range candidates {
			if attempts >= maxCandidates {
				break
			}
			attempts++

			file, err := c.Download(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				common.Log.WarnContext(ctx, "Failed to Candidate.Download", "provider", c.Provider, "candidate", c.Label, "err", err)
				errs = append(errs, fmt.Errorf("%s %s: %w", c.Provider, c.Label, err))
				continue
			}

			doc, reason := acceptSubtitle(file)
			if doc == nil {
				common.Log.InfoContext(ctx, "Skipped subtitle candidate", "provider", c.Provider, "candidate", c.Label, "reason", reason)
				rejected++
				continue
			}

			span.SetAttributes(
				attribute.String("provider", c.Provider),
				attribute.String("file.name", file.Name),
				attribute.Int("attempts", attempts),
			)

			return &SourceSubtitle{
				Provider: c.Provider,
				FileName: file.Name,
				Document: doc,
			}, nil
		}
	}
	span.SetAttributes(attribute.Int("attempts", attempts), attribute.Int("rejected", rejected))

	// Only upstream failures, nothing that could be judged: report the outage instead of a miss.
	if len(errs) > 0 && rejected == 0 && (attempts > 0 || failedProviders == len(f.providers)) {
		return nil, fmt.Errorf("failed to fetch subtitle: %w", errors.Join(errs...))
	}

	return nil, ErrSubtitleNotFound
}

// acceptSubtitle decodes and parses a downloaded file, returning nil and a reason when it is unusable.
func acceptSubtitle(file *archive.File) (*srt.Document, string) {
	if len(file.Data) < minSubtitleSize {
		return nil, "too small"
	}

	doc, err := srt.Parse(srt.Decode(file.Data))
	if err != nil {
		return nil, err.Error()
	}

	if !isEnglish(doc) {
		return nil, "not english"
	}

	return doc, ""
}

// isEnglish rejects a document only when another language is reliably detected.
func isEnglish(doc *srt.Document) bool {
	texts := doc.Texts()
	if len(texts) > languageSampleCues {
		texts = texts[:languageSampleCues]
	}

	info := whatlanggo.Detect(strings.Join(texts, "\n"))
	return info.Lang == whatlanggo.Eng || !info.IsReliable()
}

type openSubtitlesProvider struct {
	name   string
	client opensubtitles.OpenSubtitles
}

// NewOpenSubtitlesProvider adapts an OpenSubtitles client to the fetcher.
func NewOpenSubtitlesProvider(name string, client opensubtitles.OpenSubtitles) SubtitleProvider {
	return &openSubtitlesProvider{name: name, client: client}
}

func (p *openSubtitlesProvider) Name() string {
	return p.name
}

func (p *openSubtitlesProvider) Candidates(ctx context.Context, id stremio.VideoID) ([]Candidate, error) {
	subs, err := p.client.Search(ctx, opensubtitles.SearchRequest{
		IMDBID:   id.IMDBID,
		Season:   id.Season,
		Episode:  id.Episode,
		Language: "en",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to opensubtitles.OpenSubtitles.Search: %w", err)
	}

	candidates := make([]Candidate, 0, len(subs))
	for _, sub := range subs {
		candidates = append(candidates, Candidate{
			Provider: p.name,
			Label:    sub.FileName,
			Download: func(ctx context.Context) (*archive.File, error) {
				return p.client.Download(ctx, sub)
			},
		})
	}

	return candidates, nil
}

type subdlProvider struct {
	client subdl.SubDL
}

// NewSubDLProvider adapts a SubDL client to the fetcher.
func NewSubDLProvider(client subdl.SubDL) SubtitleProvider {
	return &subdlProvider{client: client}
}

func (p *subdlProvider) Name() string {
	return "subdl"
}

func (p *subdlProvider) Candidates(ctx context.Context, id stremio.VideoID) ([]Candidate, error) {
	subs, err := p.client.Search(ctx, subdl.SearchRequest{
		IMDBID:   id.IMDBID,
		Season:   id.Season,
		Episode:  id.Episode,
		Language: "en",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subdl.SubDL.Search: %w", err)
	}

	candidates := make([]Candidate, 0, len(subs))
	for _, sub := range subs {
		candidates = append(candidates, Candidate{
			Provider: p.Name(),
			Label:    sub.ReleaseName,
			Download: func(ctx context.Context) (*archive.File, error) {
				return p.client.Download(ctx, sub)
			},
		})
	}

	return candidates, nil
}
