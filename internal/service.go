package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ogero/stremio-autoarabic/internal/cache"
	"github.com/ogero/stremio-autoarabic/internal/common"
	"github.com/ogero/stremio-autoarabic/internal/loki"
	"github.com/ogero/stremio-autoarabic/pkg/imdb"
	"github.com/ogero/stremio-autoarabic/pkg/srt"
	"github.com/ogero/stremio-autoarabic/pkg/stremio"
	"github.com/ogero/stremio-autoarabic/pkg/translate"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// sourceLanguage is the language subtitles are fetched in and translated from.
const sourceLanguage = "en"

// SearchResult tells whether a video has an English subtitle to translate.
type SearchResult struct {
	// Found is true when at least one provider lists a candidate.
	Found bool
	// Candidates is the number of candidates of the first provider with results.
	Candidates int
	// Title is the IMDB title, nil when the lookup failed.
	Title *imdb.Title
}

// TranslatedSubtitle is a translated SRT document ready to be served.
type TranslatedSubtitle struct {
	// Provider is the subtitle database the English source came from.
	Provider string
	// FileName is the source file name.
	FileName string
	// Data is the serialized SRT, UTF-8 without byte order mark.
	Data []byte
	// Cues is the number of cues in Data.
	Cues int
	// Translated and Failed count the lines the engine translated and the lines kept in English.
	Translated int
	Failed     int
}

// AddonService defines the operations behind the addon routes.
type AddonService interface {
	// SearchSubtitles reports whether an English subtitle exists for id. It never downloads nor translates.
	SearchSubtitles(ctx context.Context, id stremio.VideoID) (*SearchResult, error)
	// GetTranslatedSubtitle fetches the English subtitle of id and translates it to lang.
	GetTranslatedSubtitle(ctx context.Context, id stremio.VideoID, lang stremio.Language) (*TranslatedSubtitle, error)
}

type addonService struct {
	fetcher    SubtitleFetcher
	translator *translate.Translator
	imdb       imdb.IMDB
	cache      *cache.Cache
	stats      StatsHub
	stripAds   bool
}

// NewAddonService creates a new instance of AddonService. imdb, cache and stats are optional.
func NewAddonService(fetcher SubtitleFetcher, translator *translate.Translator, imdb imdb.IMDB, cache *cache.Cache, stats StatsHub, stripAds bool) AddonService {
	return &addonService{
		fetcher:    fetcher,
		translator: translator,
		imdb:       imdb,
		cache:      cache,
		stats:      stats,
		stripAds:   stripAds,
	}
}

// SearchSubtitles reports whether an English subtitle exists for id. It never downloads nor translates.
// An unknown title and an unreachable provider both end up as not found.
func (s *addonService) SearchSubtitles(ctx context.Context, id stremio.VideoID) (*SearchResult, error) {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "internal.AddonService.SearchSubtitles")
	defer span.End()
	span.SetAttributes(attribute.String("imdb.id", id.IMDBID))
	span.SetAttributes(attribute.Int("imdb.season", id.Season))
	span.SetAttributes(attribute.Int("imdb.episode", id.Episode))

	// The title only decorates logs and cache headers, so it is looked up alongside the provider search.
	titleCh := make(chan *imdb.Title, 1)
	go func() {
		titleCh <- s.getTitle(ctx, id.IMDBID)
	}()

	result := &SearchResult{}

	count, err := s.fetcher.Search(ctx, id)
	switch {
	case errors.Is(err, ErrSubtitleNotFound):
		common.SubtitlesSearchesTotalIncr(ctx, "not_found")
	case err != nil:
		common.SubtitlesSearchesTotalIncr(ctx, "error")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		common.Log.WarnContext(ctx, "Failed to SubtitleFetcher.Search", "id", id.String(), "err", err)
		span.RecordError(err)
	default:
		common.SubtitlesSearchesTotalIncr(ctx, "found")
		result.Found = true
		result.Candidates = count
	}
	span.SetAttributes(attribute.Bool("found", result.Found))

	result.Title = <-titleCh

	titleName := id.String()
	if result.Title != nil {
		titleName = result.Title.String()
	}
	common.Log.InfoContext(ctx, loki.SearchLogMessage, "id", id.String(), "title", titleName, "found", result.Found)

	s.broadcast(ctx, func(stats *Stats) error {
		stats.SearchesCount24++
		stats.TitleInstant = titleName
		return nil
	})

	return result, nil
}

// GetTranslatedSubtitle fetches the English subtitle of id and translates it to lang.
// Translation failures never fail the call: affected lines keep their English text.
func (s *addonService) GetTranslatedSubtitle(ctx context.Context, id stremio.VideoID, lang stremio.Language) (*TranslatedSubtitle, error) {

	ctx, span := trace.SpanFromContext(ctx).TracerProvider().Tracer("").Start(ctx, "internal.AddonService.GetTranslatedSubtitle")
	defer span.End()
	span.SetAttributes(attribute.String("imdb.id", id.IMDBID))
	span.SetAttributes(attribute.String("lang", lang.Code))

	cacheKey := fmt.Sprintf("subtitle.translated : %s : %s", lang.Code, id.String())
	subtitle, hit, err := cache.Memoize(s.cache, cacheKey, 24*time.Hour, func() (*TranslatedSubtitle, error) {
		return s.translate(ctx, id, lang)
	})
	if s.cache.Enabled() {
		cacheResult := "miss"
		if hit {
			cacheResult = "hit"
		}
		span.SetAttributes(attribute.String("cache.subtitle.translated.result", cacheResult))
		common.CacheGetsTotalIncr(ctx, "subtitle.translated", cacheResult)
	}
	if err != nil {
		return nil, err
	}

	common.SubtitlesDownloadsTotalIncr(ctx, subtitle.Provider, lang.Code)
	common.Log.InfoContext(ctx, loki.DownloadLogMessage,
		"id", id.String(),
		"lang", lang.Code,
		"provider", subtitle.Provider,
		"cues", subtitle.Cues,
		"translated", subtitle.Translated,
		"failed", subtitle.Failed,
	)

	s.broadcast(ctx, func(stats *Stats) error {
		stats.DownloadsCount24++
		stats.LangInstant = lang.Name
		return nil
	})

	return subtitle, nil
}

func (s *addonService) translate(ctx context.Context, id stremio.VideoID, lang stremio.Language) (*TranslatedSubtitle, error) {
	source, err := s.fetcher.Fetch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to internal.SubtitleFetcher.Fetch: %w", err)
	}
	common.Log.WithGroup("file").InfoContext(ctx, "Got SRT", "name", source.FileName, "provider", source.Provider, "cues", len(source.Document.Cues))

	doc := source.Document
	if s.stripAds {
		var removed int
		doc, removed = srt.CleanAds(doc)
		if removed > 0 {
			common.Log.InfoContext(ctx, "Removed advertisement cues", "count", removed)
		}
	}

	result, err := s.translator.Translate(ctx, doc.Texts(), sourceLanguage, lang.Code)
	if err != nil {
		return nil, fmt.Errorf("failed to translate.Translator.Translate: %w", err)
	}
	common.TranslatedLinesTotalAdd(ctx, "translated", result.Translated)
	common.TranslatedLinesTotalAdd(ctx, "failed", result.Failed)
	if result.Failed > 0 {
		common.Log.WarnContext(ctx, "Some lines were kept in English", "failed", result.Failed, "translated", result.Translated)
	}

	translated, err := doc.WithTexts(result.Texts)
	if err != nil {
		return nil, fmt.Errorf("failed to srt.Document.WithTexts: %w", err)
	}

	return &TranslatedSubtitle{
		Provider:   source.Provider,
		FileName:   source.FileName,
		Data:       translated.Bytes(),
		Cues:       len(translated.Cues),
		Translated: result.Translated,
		Failed:     result.Failed,
	}, nil
}

// getTitle returns the memoized IMDB title, or nil when it cannot be resolved.
func (s *addonService) getTitle(ctx context.Context, imdbID string) *imdb.Title {
	if s.imdb == nil {
		return nil
	}

	cacheKey := fmt.Sprintf("imdb.title : %s", imdbID)
	title, hit, err := cache.Memoize(s.cache, cacheKey, 48*time.Hour, func() (*imdb.Title, error) {
		title, err := s.imdb.GetTitle(ctx, imdbID)
		if err != nil {
			return nil, fmt.Errorf("failed to imdb.IMDB.GetTitle: %w", err)
		}
		return title, nil
	})
	if s.cache.Enabled() {
		cacheResult := "miss"
		if hit {
			cacheResult = "hit"
		}
		common.CacheGetsTotalIncr(ctx, "imdb.title", cacheResult)
	}
	if err != nil {
		common.Log.WarnContext(ctx, "Failed to get IMDB title", "imdb.id", imdbID, "err", err)
		return nil
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.String("imdb.title", title.Name))

	return title
}

func (s *addonService) broadcast(ctx context.Context, update func(stats *Stats) error) {
	if s.stats == nil {
		return
	}
	go func() {
		if err := s.stats.BroadcastStats(update); err != nil {
			common.Log.WarnContext(ctx, "Failed to internal.StatsHub.BroadcastStats", "err", err)
		}
	}()
}
