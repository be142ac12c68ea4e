package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/katakuxiko/docqa/internal/config"
	"github.com/katakuxiko/docqa/internal/model"
)

func TestNewLoader_UnknownStrategy(t *testing.T) {
	_, err := NewLoader(config.IngestConfig{Strategy: "ocr"}, zap.NewNop())
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	notPDF := filepath.Join(dir, "notes.pdf")
	require.NoError(t, os.WriteFile(notPDF, []byte("plain text, not a pdf"), 0600))

	for _, strategy := range []string{config.StrategyHiRes, config.StrategyFast} {
		t.Run(strategy, func(t *testing.T) {
			l, err := NewLoader(config.IngestConfig{Strategy: strategy, ChunkSize: 50}, zap.NewNop())
			require.NoError(t, err)

			_, err = l.Load(context.Background(), filepath.Join(dir, "missing.pdf"))
			assert.Error(t, err)

			_, err = l.Load(context.Background(), notPDF)
			assert.Error(t, err)
		})
	}
}

func TestBaseMetadata(t *testing.T) {
	md := baseMetadata("/tmp/docs/report.pdf", 3, 7)
	assert.Equal(t, "report.pdf", md["filename"])
	assert.Equal(t, "/tmp/docs", md["file_directory"])
	assert.Equal(t, 3, md["page_number"])
	assert.Equal(t, md["element_id"], baseMetadata("/tmp/docs/report.pdf", 3, 7)["element_id"])
	assert.NotEqual(t, md["element_id"], baseMetadata("/tmp/docs/report.pdf", 3, 8)["element_id"])
}

// writePDF writes a one-page Helvetica PDF with a title line and a two-line
// paragraph. Without widths the font relies on the standard-14 metrics.
func writePDF(t *testing.T, dir string, widths bool) string {
	t.Helper()
	stream := "BT /F1 24 Tf 72 720 Td (Evaluation Metrics) Tj ET\n" +
		"BT /F1 12 Tf 72 680 Td (Use retrieval precision.) Tj ET\n" +
		"BT /F1 12 Tf 72 666 Td (And contextual accuracy.) Tj ET\n"
	font := "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding"
	if widths {
		font += " /FirstChar 32 /LastChar 126 /Widths [" + strings.TrimSpace(strings.Repeat("500 ", 95)) + "]"
	}
	font += " >>"
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 4 0 R >> >> /Contents 5 0 R >>",
		font,
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", len(stream), stream),
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	path := filepath.Join(dir, fmt.Sprintf("metrics-%t.pdf", widths))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))
	return path
}

func TestLoad_HiRes(t *testing.T) {
	for _, widths := range []bool{true, false} {
		t.Run(fmt.Sprintf("widths=%t", widths), func(t *testing.T) {
			path := writePDF(t, t.TempDir(), widths)
			l, err := NewLoader(config.IngestConfig{Strategy: config.StrategyHiRes}, zap.NewNop())
			require.NoError(t, err)

			chunks, err := l.Load(context.Background(), path)
			require.NoError(t, err)
			require.Len(t, chunks, 2)

			assert.Equal(t, "Evaluation Metrics", chunks[0].Text)
			assert.Equal(t, "Title", chunks[0].Metadata["category"])
			assert.Equal(t, "Use retrieval precision. And contextual accuracy.", chunks[1].Text)
			assert.Equal(t, "NarrativeText", chunks[1].Metadata["category"])

			for _, c := range chunks {
				assert.Equal(t, 1, c.Metadata["page_number"])
				assert.Equal(t, c.ID, c.Metadata["element_id"])
			}

			coords, ok := chunks[0].Metadata["coordinates"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, 612.0, coords["layout_width"])
			assert.Equal(t, 792.0, coords["layout_height"])
			assert.Equal(t, [][]float64{{72, 48}, {72, 72}, {288, 72}, {288, 48}}, coords["points"])
		})
	}
}

func TestLoad_Fast(t *testing.T) {
	path := writePDF(t, t.TempDir(), false)
	l, err := NewLoader(config.IngestConfig{Strategy: config.StrategyFast, ChunkSize: 50}, zap.NewNop())
	require.NoError(t, err)

	chunks, err := l.Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Evaluation Metrics Use retrieval precision. And contextual accuracy.", chunks[0].Text)
	assert.Equal(t, "NarrativeText", chunks[0].Metadata["category"])
	assert.NotContains(t, chunks[0].Metadata, "coordinates")
}

func TestLoad_MalformedTrailerDoesNotPanic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n"+strings.Repeat("\r", 200)), 0600))

	for _, strategy := range []string{config.StrategyHiRes, config.StrategyFast} {
		t.Run(strategy, func(t *testing.T) {
			l, err := NewLoader(config.IngestConfig{Strategy: strategy, ChunkSize: 50}, zap.NewNop())
			require.NoError(t, err)

			var chunks []model.Chunk
			assert.NotPanics(t, func() {
				chunks, err = l.Load(context.Background(), path)
			})
			assert.Error(t, err)
			assert.Nil(t, chunks)
		})
	}
}
