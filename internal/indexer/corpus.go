package indexer

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/tokkyo/internal/models"
)

// corpusBatchSize bounds how many abstracts are ingested per batch so cache
// refreshes happen incrementally during large corpus loads.
const corpusBatchSize = 32

// CorpusReport summarizes a corpus load.
type CorpusReport struct {
	Added  int
	Failed int
}

// LoadCorpus ingests a newline-separated patent abstracts file. Blank lines
// are skipped; per-line failures are logged and counted, never abort the
// load. Returns a report and the first fatal (file-level) error.
func (in *Indexer) LoadCorpus(ctx context.Context, path string) (*CorpusReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	report := &CorpusReport{}
	batch := make([]*models.DocumentInput, 0, corpusBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		for _, res := range in.AddDocuments(ctx, batch) {
			if res.OK() {
				report.Added++
			} else {
				report.Failed++
				if in.logger != nil {
					in.logger.Warn("corpus line rejected", zap.String("reason", res.Error))
				}
			}
		}
		batch = batch[:0]
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			flush()
			return report, err
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		batch = append(batch, &models.DocumentInput{
			Text:     line,
			Metadata: map[string]any{"source": "corpus", "source_path": path},
		})
		if len(batch) == corpusBatchSize {
			flush()
		}
	}
	if err := scanner.Err(); err != nil {
		flush()
		return report, fmt.Errorf("read corpus: %w", err)
	}
	flush()
	if in.logger != nil {
		in.logger.Info("corpus loaded",
			zap.String("path", path),
			zap.Int("added", report.Added),
			zap.Int("failed", report.Failed),
		)
	}
	return report, nil
}
