package excel

import (
	"fmt"
	"io"
	"strings"

	"finresearch/domain/research"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the exported workbook
const (
	EvidenceSheet = "Evidence"
	SummarySheet  = "Summary"
)

var evidenceHeaders = []string{"#", "Capability", "Sub-question", "Answer", "Sources"}

// WriteLedger writes a run's evidence ledger and summary as an XLSX workbook
func WriteLedger(w io.Writer, state *research.RunState) error {
	f, err := buildWorkbook(state)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

// WriteLedgerFile saves the workbook to path
func WriteLedgerFile(path string, state *research.RunState) error {
	f, err := buildWorkbook(state)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

func buildWorkbook(state *research.RunState) (*excelize.File, error) {
	if state == nil {
		return nil, fmt.Errorf("run state is required")
	}

	f := excelize.NewFile()
	// the default sheet becomes the evidence sheet
	if err := f.SetSheetName("Sheet1", EvidenceSheet); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(SummarySheet); err != nil {
		f.Close()
		return nil, err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := writeEvidence(f, state, bold); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSummary(f, state, bold); err != nil {
		f.Close()
		return nil, err
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeEvidence(f *excelize.File, state *research.RunState, bold int) error {
	for i, h := range evidenceHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(EvidenceSheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(evidenceHeaders), 1)
	if err := f.SetCellStyle(EvidenceSheet, "A1", last, bold); err != nil {
		return err
	}

	for r, rec := range state.EvidenceLedger.Records() {
		sources := make([]string, 0, len(rec.Sources))
		for _, s := range rec.Sources {
			sources = append(sources, s.String())
		}
		row := []any{r + 1, rec.Capability.String(), rec.Question, rec.Answer, strings.Join(sources, "; ")}
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(EvidenceSheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(EvidenceSheet, "C", "C", 40); err != nil {
		return err
	}
	return f.SetColWidth(EvidenceSheet, "D", "E", 80)
}

func writeSummary(f *excelize.File, state *research.RunState, bold int) error {
	executed := make([]string, 0, len(state.ExecutedCapabilities))
	for _, c := range state.ExecutedCapabilities {
		executed = append(executed, c.String())
	}
	path := make([]string, 0, len(state.Path))
	for _, s := range state.Path {
		path = append(path, s.String())
	}

	rows := [][2]any{
		{"Run ID", state.RunID},
		{"Question", state.Request.OriginalQuestion},
		{"Executed capabilities", strings.Join(executed, ", ")},
		{"Path", strings.Join(path, " -> ")},
		{"Evidence records", state.EvidenceLedger.Len()},
		{"Started", state.StartedAt.UTC().Format("2006-01-02 15:04:05 MST")},
		{"Duration (ms)", state.DurationMs},
		{"Final answer", state.FinalAnswer},
	}
	for i, kv := range rows {
		if err := f.SetCellValue(SummarySheet, fmt.Sprintf("A%d", i+1), kv[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(SummarySheet, fmt.Sprintf("B%d", i+1), kv[1]); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SummarySheet, "A1", fmt.Sprintf("A%d", len(rows)), bold); err != nil {
		return err
	}
	if err := f.SetColWidth(SummarySheet, "A", "A", 24); err != nil {
		return err
	}
	return f.SetColWidth(SummarySheet, "B", "B", 100)
}
