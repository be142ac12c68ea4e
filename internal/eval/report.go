package eval

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var header = []string{"question", "answer", "contexts", "ground_truth", "context_recall", "context_precision", "answer_recall", "faithfulness", "answer_relevancy"}

func (r Result) row() []string {
	return []string{
		r.Question,
		r.Answer,
		strings.Join(r.Contexts, "\n---\n"),
		strings.Join(r.GroundTruth, "; "),
		strconv.FormatFloat(r.ContextRecall, 'f', 4, 64),
		strconv.FormatFloat(r.ContextPrecision, 'f', 4, 64),
		strconv.FormatFloat(r.AnswerRecall, 'f', 4, 64),
		strconv.FormatFloat(r.Faithfulness, 'f', 4, 64),
		strconv.FormatFloat(r.AnswerRelevancy, 'f', 4, 64),
	}
}

// Write saves results as XLSX when path ends in .xlsx, CSV otherwise.
func Write(path string, results []Result) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return writeXLSX(path, results)
	}
	return writeCSV(path, results)
}

func writeCSV(path string, results []Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range results {
		if err := w.Write(r.row()); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Close()
}

func writeXLSX(path string, results []Result) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Sheet1"
	rows := make([][]string, 0, len(results)+1)
	rows = append(rows, header)
	for _, r := range results {
		rows = append(rows, r.row())
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]any, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	return f.SaveAs(path)
}
