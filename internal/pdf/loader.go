// Package pdf extracts indexable elements from PDF files.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	lpdf "github.com/ledongthuc/pdf"
	"go.uber.org/zap"
	rscpdf "rsc.io/pdf"

	"github.com/katakuxiko/docqa/internal/config"
	"github.com/katakuxiko/docqa/internal/model"
)

// ErrUnknownStrategy is returned for an extraction strategy the loader does not implement.
var ErrUnknownStrategy = errors.New("unknown extraction strategy")

// US Letter, used when a page carries no usable MediaBox.
const (
	defaultPageWidth  = 612
	defaultPageHeight = 792
)

// Loader turns a PDF file into document chunks.
type Loader struct {
	strategy     string
	chunkSize    int
	chunkOverlap int
	log          *zap.Logger
}

func NewLoader(cfg config.IngestConfig, log *zap.Logger) (*Loader, error) {
	switch cfg.Strategy {
	case config.StrategyHiRes, config.StrategyFast:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Strategy)
	}
	return &Loader{
		strategy:     cfg.Strategy,
		chunkSize:    cfg.ChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
		log:          log,
	}, nil
}

// Load extracts the chunks of the PDF at path using the configured strategy.
func (l *Loader) Load(ctx context.Context, path string) ([]model.Chunk, error) {
	var (
		chunks []model.Chunk
		err    error
	)
	if l.strategy == config.StrategyFast {
		chunks, err = l.loadFast(ctx, path)
	} else {
		chunks, err = l.loadHiRes(ctx, path)
	}
	if err != nil {
		return nil, err
	}
	l.log.Debug("pdf loaded",
		zap.String("path", path),
		zap.String("strategy", l.strategy),
		zap.Int("elements", len(chunks)))
	return chunks, nil
}

// loadHiRes emits one element per text block, with layout coordinates.
func (l *Loader) loadHiRes(ctx context.Context, path string) (chunks []model.Chunk, err error) {
	defer recoverParse(path, &chunks, &err)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat pdf: %w", err)
	}
	r, err := rscpdf.NewReader(f, fi.Size())
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	// Opened on the first page whose fonts carry no glyph widths.
	var glyphs *lpdf.Reader

	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		runs := rscRuns(page.Content().Text)
		if hasStalledPen(runs) {
			// rsc.io/pdf drops space glyphs, so word breaks come from ledongthuc.
			if glyphs == nil {
				if glyphs, err = lpdf.NewReader(f, fi.Size()); err != nil {
					return nil, fmt.Errorf("read pdf: %w", err)
				}
			}
			runs = advancePen(lpdfRuns(glyphs.Page(i).Content().Text))
			l.log.Debug("estimating glyph advances", zap.String("path", path), zap.Int("page", i))
		}
		width, height := pageSize(page)
		body := bodySize(runs)
		for _, b := range groupBlocks(groupLines(runs)) {
			md := baseMetadata(path, i, len(chunks))
			md["category"] = category(b, body)
			md["coordinates"] = coordinates(b, width, height)
			chunks = append(chunks, model.Chunk{ID: md["element_id"].(string), Text: b.text, Metadata: md})
		}
	}
	return chunks, nil
}

// loadFast extracts plain page text and splits it into overlapping word windows.
func (l *Loader) loadFast(ctx context.Context, path string) (chunks []model.Chunk, err error) {
	defer recoverParse(path, &chunks, &err)

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	r, err := lpdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		for _, part := range ChunkByWords(Sanitize(text), l.chunkSize, l.chunkOverlap) {
			md := baseMetadata(path, i, len(chunks))
			md["category"] = "NarrativeText"
			chunks = append(chunks, model.Chunk{ID: md["element_id"].(string), Text: part, Metadata: md})
		}
	}
	return chunks, nil
}

// recoverParse turns a parser panic into an error. Both PDF readers report
// malformed trailers and content streams by panicking.
func recoverParse(path string, chunks *[]model.Chunk, err *error) {
	if p := recover(); p != nil {
		*chunks, *err = nil, fmt.Errorf("parse pdf %s: %v", filepath.Base(path), p)
	}
}

func rscRuns(texts []rscpdf.Text) []run {
	runs := make([]run, 0, len(texts))
	for _, t := range texts {
		runs = append(runs, run{s: t.S, x: t.X, y: t.Y, w: t.W, size: t.FontSize})
	}
	return runs
}

func lpdfRuns(texts []lpdf.Text) []run {
	runs := make([]run, 0, len(texts))
	for _, t := range texts {
		runs = append(runs, run{s: t.S, x: t.X, y: t.Y, w: t.W, size: t.FontSize})
	}
	return runs
}

func baseMetadata(path string, page, seq int) map[string]any {
	name := filepath.Base(path)
	id := uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "%s#%d#%d", name, page, seq))
	return map[string]any{
		"source":         path,
		"filename":       name,
		"file_directory": filepath.Dir(path),
		"filetype":       "application/pdf",
		"page_number":    page,
		"element_id":     id.String(),
	}
}

func pageSize(p rscpdf.Page) (float64, float64) {
	box := p.V.Key("MediaBox")
	if box.Len() != 4 {
		return defaultPageWidth, defaultPageHeight
	}
	w := box.Index(2).Float64() - box.Index(0).Float64()
	h := box.Index(3).Float64() - box.Index(1).Float64()
	if w <= 0 || h <= 0 {
		return defaultPageWidth, defaultPageHeight
	}
	return w, h
}
