package pipeline

import (
	"fmt"
	"io"

	"lecturevault/internal/course"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const DefaultMaxErrors = 10

type CourseReport struct {
	Course course.Course
	// CatalogErr is set when the course was skipped because its catalog could not be fetched.
	CatalogErr  error
	AssembleErr error

	// Attempted counts non-stub rows.
	Attempted int
	// Succeeded counts rows with a file on disk, including skipped ones.
	Succeeded int
	Skipped   int
	Failed    int
	Notebooks int

	// Errors holds at most MaxErrors row failures, Omitted counts the rest.
	Errors  []string
	Omitted int
}

type Report struct {
	RunId     string
	Cancelled bool
	Courses   []CourseReport
}

func summarize(target course.Course, rows []course.Row, maxErrors int) CourseReport {
	report := CourseReport{Course: target}
	for _, r := range rows {
		if r.Stub {
			continue
		}
		report.Attempted++
		if r.Succeeded() {
			report.Succeeded++
		}
		if r.AlreadyDownloaded {
			report.Skipped++
		}
		if r.Err != nil {
			report.Failed++
			if len(report.Errors) < maxErrors {
				report.Errors = append(report.Errors, fmt.Sprintf("%s: %s", r.String(), r.Err.Error()))
			} else {
				report.Omitted++
			}
		}
	}
	return report
}

func (r CourseReport) status() string {
	switch {
	case r.CatalogErr != nil:
		return "skipped: " + r.CatalogErr.Error()
	case r.AssembleErr != nil:
		return "assembly errors"
	case r.Failed > 0:
		return "partial"
	default:
		return "ok"
	}
}

// Failed reports whether any course was skipped or had a failing row.
func (r Report) Failed() bool {
	for _, c := range r.Courses {
		if c.CatalogErr != nil || c.AssembleErr != nil || c.Failed > 0 {
			return true
		}
	}
	return false
}

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

// Render writes the summary table followed by the capped error list of every course.
func (r Report) Render(out io.Writer) {
	t := newTable(out)
	t.SetTitle("Run summary")
	t.AppendHeader(table.Row{"Course", "Attempted", "Succeeded", "Skipped", "Failed", "Notebooks", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMax: 48},
		{Number: 7, WidthMax: 60},
	})

	var total CourseReport
	for _, c := range r.Courses {
		t.AppendRow(table.Row{c.Course.Title, c.Attempted, c.Succeeded, c.Skipped, c.Failed, c.Notebooks, c.status()})
		total.Attempted += c.Attempted
		total.Succeeded += c.Succeeded
		total.Skipped += c.Skipped
		total.Failed += c.Failed
		total.Notebooks += c.Notebooks
	}
	footer := "complete"
	if r.Cancelled {
		footer = "cancelled"
	}
	t.AppendFooter(table.Row{"Total", total.Attempted, total.Succeeded, total.Skipped, total.Failed, total.Notebooks, footer})
	t.Render()

	for _, c := range r.Courses {
		if len(c.Errors) == 0 {
			continue
		}
		errs := newTable(out)
		errs.SetTitle(fmt.Sprintf("Errors: %s", c.Course.Title))
		errs.SetColumnConfigs([]table.ColumnConfig{
			{Number: 1, WidthMax: 100, Colors: text.Colors{text.FgRed}},
		})
		for _, e := range c.Errors {
			errs.AppendRow(table.Row{e})
		}
		if c.Omitted > 0 {
			errs.AppendRow(table.Row{fmt.Sprintf("... and %d more", c.Omitted)})
		}
		errs.Render()
	}
}
