// Package translate machine-translates subtitle texts while keeping them aligned with their cues.
package translate

import (
	"context"
	"strings"
	"sync/atomic"
	"unicode"

	"golang.org/x/sync/errgroup"
)

const (
	defaultBatchLines  = 20
	defaultBatchChars  = 4000
	defaultConcurrency = 4
	minLatinLetters    = 3
)

// Options tunes batching. Zero values select defaults.
type Options struct {
	BatchLines  int
	BatchChars  int
	Concurrency int
}

// Result holds translated texts, aligned with the input texts.
type Result struct {
	Texts []string
	// Translated counts the lines returned by the engine.
	Translated int
	// Failed counts the lines kept in the source language because the engine failed on them.
	Failed int
}

// Translator translates subtitle texts in batches through an Engine.
type Translator struct {
	engine Engine
	opts   Options
}

// New creates a Translator.
func New(engine Engine, opts Options) *Translator {
	if opts.BatchLines <= 0 {
		opts.BatchLines = defaultBatchLines
	}
	if opts.BatchChars <= 0 {
		opts.BatchChars = defaultBatchChars
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	return &Translator{engine: engine, opts: opts}
}

type slot struct {
	text int
	line int
}

// Translate returns one translation per input text: Result.Texts[i] always corresponds to texts[i].
// Multi-line texts are translated line by line and reassembled. Lines without enough latin letters
// are not sent upstream. Lines the engine fails on keep their source text. The only error returned is
// the context error.
func (t *Translator) Translate(ctx context.Context, texts []string, source, target string) (*Result, error) {
	lines := make([][]string, len(texts))
	var pending []string
	var slots []slot
	for i, text := range texts {
		lines[i] = strings.Split(text, "\n")
		for j, line := range lines[i] {
			if !translatable(line) {
				continue
			}
			pending = append(pending, strings.TrimSpace(line))
			slots = append(slots, slot{text: i, line: j})
		}
	}

	translated := make([]string, len(pending))
	var failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.opts.Concurrency)
	for _, b := range t.batches(pending) {
		g.Go(func() error {
			t.translateBatch(gctx, pending[b.from:b.to], translated[b.from:b.to], source, target, &failed)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for k, s := range slots {
		lines[s.text][s.line] = translated[k]
	}

	result := &Result{
		Texts:      make([]string, len(texts)),
		Failed:     int(failed.Load()),
		Translated: len(pending) - int(failed.Load()),
	}
	for i := range lines {
		result.Texts[i] = strings.Join(lines[i], "\n")
	}

	return result, nil
}

type batch struct {
	from, to int
}

func (t *Translator) batches(pending []string) []batch {
	var out []batch
	from, chars := 0, 0
	for i, line := range pending {
		if i > from && (i-from >= t.opts.BatchLines || chars+len(line) > t.opts.BatchChars) {
			out = append(out, batch{from: from, to: i})
			from, chars = i, 0
		}
		chars += len(line) + 1
	}
	if from < len(pending) {
		out = append(out, batch{from: from, to: len(pending)})
	}
	return out
}

// translateBatch fills dst with translations of src. Failed or misaligned batches are split in halves
// until single lines remain. A single line that still fails keeps its source text.
func (t *Translator) translateBatch(ctx context.Context, src, dst []string, source, target string, failed *atomic.Int64) {
	if len(src) == 0 {
		return
	}
	if ctx.Err() != nil {
		copy(dst, src)
		failed.Add(int64(len(src)))
		return
	}

	res, err := t.engine.TranslateText(ctx, strings.Join(src, "\n"), source, target)
	if err == nil {
		out := strings.Split(strings.TrimSpace(res), "\n")
		if len(src) == 1 {
			dst[0] = strings.Join(strings.Fields(strings.Join(out, " ")), " ")
			if dst[0] == "" {
				dst[0] = src[0]
			}
			return
		}
		if len(out) == len(src) {
			for i := range out {
				dst[i] = strings.TrimSpace(out[i])
				if dst[i] == "" {
					dst[i] = src[i]
				}
			}
			return
		}
	}

	if len(src) == 1 {
		dst[0] = src[0]
		failed.Add(1)
		return
	}

	half := len(src) / 2
	t.translateBatch(ctx, src[:half], dst[:half], source, target, failed)
	t.translateBatch(ctx, src[half:], dst[half:], source, target, failed)
}

// translatable reports whether line has enough latin letters to be worth translating.
func translatable(line string) bool {
	n := 0
	for _, r := range line {
		if r < unicode.MaxASCII && unicode.IsLetter(r) {
			n++
			if n >= minLatinLetters {
				return true
			}
		}
	}
	return false
}
