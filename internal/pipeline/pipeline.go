// Package pipeline runs the catalog, download and assembly stages course by course and collects
// what happened into a Report.
package pipeline

import (
	"context"
	"fmt"

	"lecturevault/internal/components/assert"
	"lecturevault/internal/components/telemetry"
	"lecturevault/internal/course"
	"lecturevault/internal/notebook"
)

const (
	report_pipeline_course   = "pipeline.course"
	report_pipeline_catalog  = "pipeline.catalog"
	report_pipeline_assemble = "pipeline.assemble"
	report_pipeline_ledger   = "pipeline.ledger"
)

type Catalog interface {
	Title(ctx context.Context, courseId int64) string
	Resolve(ctx context.Context, c course.Course) ([]course.Row, error)
}

type Downloader interface {
	Download(ctx context.Context, rows []course.Row) []course.Row
}

type Assembler interface {
	Assemble(ctx context.Context, rows []course.Row) (notebook.Result, error)
}

// Ledger records the rows of every run, it is optional.
type Ledger interface {
	BeginRun(ctx context.Context) (string, error)
	FinishRun(ctx context.Context, runId string) error
	RecordRows(ctx context.Context, runId string, rows []course.Row) error
}

type Options struct {
	Catalog    Catalog
	Downloader Downloader
	Assembler  Assembler
	Ledger     Ledger
	// MaxErrors caps the per-row errors kept for each course in the report.
	MaxErrors int
}

type Pipeline struct {
	opts Options
	tel  telemetry.API
}

// New creates a pipeline. Catalog and Downloader may be left nil when only AssembleRows is used.
func New(opts Options, tel telemetry.API) Pipeline {
	assert.NotNil(opts.Assembler)
	assert.NotNil(tel)
	if opts.MaxErrors <= 0 {
		opts.MaxErrors = DefaultMaxErrors
	}
	return Pipeline{
		opts: opts,
		tel:  telemetry.NewScopedAPI("pipeline", tel),
	}
}

// Run processes targets one course at a time. A course whose catalog cannot be fetched is
// recorded in the report and skipped, the run continues with the next course. Cancelling ctx
// stops the run after the current stage.
func (p Pipeline) Run(ctx context.Context, targets []course.Course) Report {
	assert.NotNil(p.opts.Catalog)
	assert.NotNil(p.opts.Downloader)

	report := Report{}

	if p.opts.Ledger != nil {
		runId, err := p.opts.Ledger.BeginRun(ctx)
		if err != nil {
			p.tel.ReportWarning(report_pipeline_ledger, fmt.Errorf("begin run: %w", err))
		}
		report.RunId = runId
	}

	for _, target := range targets {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		report.Courses = append(report.Courses, p.runCourse(ctx, report.RunId, target))
	}
	if ctx.Err() != nil {
		report.Cancelled = true
	}

	if p.opts.Ledger != nil && report.RunId != "" {
		err := p.opts.Ledger.FinishRun(context.WithoutCancel(ctx), report.RunId)
		if err != nil {
			p.tel.ReportWarning(report_pipeline_ledger, fmt.Errorf("finish run: %w", err))
		}
	}
	return report
}

func (p Pipeline) runCourse(ctx context.Context, runId string, target course.Course) CourseReport {
	if target.Title == "" {
		target.Title = p.opts.Catalog.Title(ctx, target.Id)
	}
	p.tel.ReportDebug("processing course", "id", target.Id, "title", target.Title)

	rows, err := p.opts.Catalog.Resolve(ctx, target)
	if err != nil {
		p.tel.ReportWarning(report_pipeline_catalog, target.Id, err)
		return CourseReport{Course: target, CatalogErr: err}
	}

	rows = p.opts.Downloader.Download(ctx, rows)
	result := p.AssembleRows(ctx, target, rows)

	if p.opts.Ledger != nil && runId != "" {
		err = p.opts.Ledger.RecordRows(context.WithoutCancel(ctx), runId, rows)
		if err != nil {
			p.tel.ReportWarning(report_pipeline_ledger, fmt.Errorf("record rows of course %d: %w", target.Id, err))
		}
	}

	p.tel.ReportCount(report_pipeline_course, int64(result.Attempted))
	return result
}

// AssembleRows writes the notebooks of rows that are already resolved, it is used by the offline
// modes that rebuild rows from the ledger or the downloads directory.
func (p Pipeline) AssembleRows(ctx context.Context, target course.Course, rows []course.Row) CourseReport {
	result, err := p.opts.Assembler.Assemble(ctx, rows)
	if err != nil {
		p.tel.ReportWarning(report_pipeline_assemble, target.Title, err)
	}

	report := summarize(target, rows, p.opts.MaxErrors)
	report.Notebooks = result.Written
	report.AssembleErr = err
	return report
}
