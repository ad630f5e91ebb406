package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"worklog/internal/model"
	"worklog/internal/store"
)

// Source provides the figures rendered into a report. *service.TaskService satisfies it.
type Source interface {
	Summary(f model.Filter, fields ...model.GroupField) (store.Summary, error)
	Overdue(f model.Filter, asOf time.Time) []model.TaskRecord
}

// Options selects what goes into a report.
type Options struct {
	Title  string
	Filter model.Filter
	// GroupBy defaults to status when empty.
	GroupBy []model.GroupField
	AsOf    time.Time
}

// Write renders a PDF summary into w.
func Write(w io.Writer, src Source, opts Options) error {
	if len(opts.GroupBy) == 0 {
		opts.GroupBy = []model.GroupField{model.GroupByStatus}
	}
	if opts.Title == "" {
		opts.Title = "Work log summary"
	}
	if opts.AsOf.IsZero() {
		opts.AsOf = time.Now()
	}

	sum, err := src.Summary(opts.Filter, opts.GroupBy...)
	if err != nil {
		return err
	}
	overdue := src.Overdue(opts.Filter, opts.AsOf)

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(opts.Title, true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(0, 10, tr(opts.Title))
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 6, tr(fmt.Sprintf("As of %s  ·  %d records", opts.AsOf.Format("02.01.2006"), sum.Total)))
	pdf.Ln(10)

	names := make([]string, len(sum.Fields))
	for i, f := range sum.Fields {
		names[i] = string(f)
	}
	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 8, tr("By "+strings.Join(names, " / ")))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	pdf.CellFormat(150, 7, "Group", "1", 0, "L", true, 0, "")
	pdf.CellFormat(30, 7, "Count", "1", 1, "R", true, 0, "")
	pdf.SetFont("Arial", "", 9)
	for _, g := range sum.Groups {
		key := make([]string, len(g.Key))
		for i, k := range g.Key {
			if k == "" {
				k = "-"
			}
			key[i] = k
		}
		pdf.CellFormat(150, 6, tr(clip(strings.Join(key, " / "), 90)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprint(g.Count), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Arial", "B", 11)
	pdf.Cell(0, 8, fmt.Sprintf("Overdue (%d)", len(overdue)))
	pdf.Ln(8)
	if len(overdue) == 0 {
		pdf.SetFont("Arial", "I", 9)
		pdf.Cell(0, 6, "Nothing is overdue.")
		pdf.Ln(6)
	} else {
		widths := []float64{25, 35, 35, 60, 25}
		pdf.SetFont("Arial", "B", 9)
		for i, h := range []string{"Deadline", "Name", "Project", "Task", "Status"} {
			pdf.CellFormat(widths[i], 7, h, "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
		for _, rec := range overdue {
			cells := []string{
				rec.Deadline.String(),
				clip(rec.Name, 20),
				clip(rec.Project, 20),
				clip(rec.Description, 38),
				string(rec.Status),
			}
			for i, c := range cells {
				pdf.CellFormat(widths[i], 6, tr(c), "1", 0, "L", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	return nil
}

func clip(s string, n int) string {
	runes := []rune(strings.TrimSpace(s))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n-1]) + "…"
}
