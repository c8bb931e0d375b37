package translator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"
)

// grammar returns the cached grammar file for sentence, extracting a new
// one on a miss. Extraction serializes through the shared extractor lock.
// The caller holds the context's ordered lock.
//
// Insertion is FIFO-bounded: when the cache is full, the oldest entry in
// insertion order is evicted and its file removed — unless learn already
// invalidated it, in which case only the order slot is reclaimed.
func (t *Translator) grammar(ctx context.Context, c *Context, sentence string) (string, error) {
	if path, ok := c.grammars[sentence]; ok {
		t.metrics.RecordGrammarLookup(ctx, true)
		slog.Debug("grammar cache hit", "ctx", c.name)
		return path, nil
	}
	t.metrics.RecordGrammarLookup(ctx, false)

	f, err := os.CreateTemp(c.dec.dir, "grammar.")
	if err != nil {
		return "", fmt.Errorf("translator: create grammar file: %w", err)
	}
	path := f.Name()
	f.Close()

	start := time.Now()
	t.extractorMu.Lock()
	err = t.deps.Extractor.Grammar(ctx, sentence, c.name, path)
	t.extractorMu.Unlock()
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("translator: extract grammar in %q: %w", c.name, err)
	}
	t.metrics.ExtractDuration.Record(ctx, time.Since(start).Seconds())

	if len(c.order) == t.cfg.Model.CacheSize {
		oldest := c.order[0]
		c.order = c.order[1:]
		if old, ok := c.grammars[oldest]; ok {
			delete(c.grammars, oldest)
			if err := os.Remove(old); err != nil {
				slog.Warn("failed to remove evicted grammar", "ctx", c.name, "file", old, "err", err)
			}
			t.metrics.GrammarEvictions.Add(ctx, 1)
		}
	}
	c.order = append(c.order, sentence)
	c.grammars[sentence] = path
	return path, nil
}
