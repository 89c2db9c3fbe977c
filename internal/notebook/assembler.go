// Package notebook assembles one jupyter notebook per lecture with links to the lecture's assets
// and inline previews of their contents.
package notebook

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"lecturevault/internal/components/assert"
	"lecturevault/internal/components/telemetry"
	"lecturevault/internal/course"
	"lecturevault/pkg/htmlutil"

	"golang.org/x/sync/errgroup"
)

const (
	report_assembler_write       = "assembler.write"
	report_assembler_description = "assembler.description"
	report_assembler_written     = "assembler.written"
)

const DefaultWorkers = 8

type Options struct {
	// Root is the notebooks directory, documents land in <Root>/<course>/<NN_section>/<NN_lecture>.ipynb.
	Root    string
	Workers int
}

type Result struct {
	Written int
	Paths   []string
}

type Assembler struct {
	opts Options
	tel  telemetry.API
}

func NewAssembler(opts Options, tel telemetry.API) *Assembler {
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.Root)
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return &Assembler{
		opts: opts,
		tel:  telemetry.NewScopedAPI("notebook", tel),
	}
}

// NotebookPath is where the document of a lecture group is written.
func (a *Assembler) NotebookPath(group course.LectureGroup) string {
	return filepath.Join(
		a.opts.Root,
		course.CourseDir(group.CourseTitle),
		course.SectionDir(group.Key.SectionIndex, group.Key.SectionTitle),
		course.LectureDir(group.Key.LectureIndex, group.Key.LectureTitle)+".ipynb",
	)
}

// Assemble writes one notebook per lecture. A failure to write one notebook does not stop the
// others, the returned error joins every write failure.
func (a *Assembler) Assemble(ctx context.Context, rows []course.Row) (Result, error) {
	groups := course.GroupByLecture(rows)

	paths := make([]string, len(groups))
	errs := make([]error, len(groups))

	g := new(errgroup.Group)
	g.SetLimit(a.opts.Workers)
	for i, group := range groups {
		g.Go(func() error {
			if ctx.Err() != nil {
				errs[i] = ctx.Err()
				return nil
			}

			path := a.NotebookPath(group)
			nb := a.Build(ctx, group, filepath.Dir(path))
			err := nb.Write(path)
			if err != nil {
				a.tel.ReportBroken(report_assembler_write, fmt.Errorf("write %s: %w", path, err))
				errs[i] = err
				return nil
			}
			paths[i] = path
			return nil
		})
	}
	_ = g.Wait()

	var result Result
	for _, p := range paths {
		if p != "" {
			result.Written++
			result.Paths = append(result.Paths, p)
		}
	}
	a.tel.ReportCount(report_assembler_written, int64(result.Written))

	return result, errors.Join(errs...)
}

func titleCell(title string) string {
	return fmt.Sprintf("<h2 style='color:#1565c0;font-family:sans-serif;'>%s</h2>", htmlutil.Escape(title))
}

func durationCell(seconds int) string {
	minutes := (seconds + 59) / 60
	return fmt.Sprintf("<b style='color:#1a237e;'>Duration:</b> <span style='font-size:14px;'>%d min</span>", minutes)
}

const noAssetsCell = "<span style='color:#333;'>No supplementary assets for this lecture.</span>"

// linkTarget is the href of an asset, the signed url when there is one, otherwise the
// downloaded file relative to the notebook.
func linkTarget(row course.Row, notebookDir string) string {
	if row.DownloadUrl != "" {
		return row.DownloadUrl
	}
	if row.LocalPath == "" {
		return ""
	}
	rel, err := filepath.Rel(notebookDir, row.LocalPath)
	if err != nil {
		return filepath.ToSlash(row.LocalPath)
	}
	return filepath.ToSlash(rel)
}

func assetCell(row course.Row, notebookDir string) string {
	name := row.AssetTitle
	if name == "" {
		name = "asset"
	}
	if href := linkTarget(row, notebookDir); href != "" && row.Err == nil {
		return fmt.Sprintf(
			"<b style='color:#1565c0;'>Asset:</b> <a href='%s' style='color:#0d47a1;'>%s</a>",
			htmlutil.Escape(href),
			htmlutil.Escape(name),
		)
	}
	detail := "Unavailable"
	if row.Err != nil {
		detail = row.Err.Error()
	}
	return fmt.Sprintf(
		"<b style='color:#1565c0;'>Asset:</b> %s <span style='color:red;'>(error: %s)</span>",
		htmlutil.Escape(name),
		htmlutil.Escape(detail),
	)
}

func (a *Assembler) descriptionCell(ctx context.Context, description string) string {
	doc, err := htmlutil.Parse(description)
	if err != nil {
		a.tel.ReportWarning(report_assembler_description, err)
		return ""
	}
	text := doc.PlainText()
	if text == "" {
		return ""
	}

	var out strings.Builder
	out.WriteString("<p style='color:#333;'>")
	out.WriteString(strings.ReplaceAll(htmlutil.Escape(text), "\n", "<br>"))
	out.WriteString("</p>")

	for _, anchor := range doc.Anchors(ctx) {
		name := anchor.Name
		if name == "" {
			name = anchor.Href
		}
		out.WriteString(fmt.Sprintf(
			"<br><a href='%s' style='color:#0d47a1;'>%s</a>",
			htmlutil.Escape(anchor.Href),
			htmlutil.Escape(name),
		))
	}
	return out.String()
}

// Build creates the notebook of a single lecture group without writing it. notebookDir is used
// to link downloaded files relative to the notebook.
func (a *Assembler) Build(ctx context.Context, group course.LectureGroup, notebookDir string) *Notebook {
	nb := NewNotebook()

	title := group.Key.LectureTitle
	if title == "" {
		title = "Untitled"
	}
	nb.AddMarkdown(titleCell(title))
	if seconds := group.Duration(); seconds > 0 {
		nb.AddMarkdown(durationCell(seconds))
	}
	if description := group.Description(); description != "" {
		if cell := a.descriptionCell(ctx, description); cell != "" {
			nb.AddMarkdown(cell)
		}
	}

	if group.OnlyStubs() {
		nb.AddMarkdown(noAssetsCell)
		return nb
	}

	for _, row := range group.Rows {
		if row.Stub {
			continue
		}
		nb.AddMarkdown(assetCell(row, notebookDir))
		if row.LocalPath == "" || row.Err != nil || !exists(row.LocalPath) {
			continue
		}
		for _, cell := range AssetPreviews(previewName(row), row.LocalPath) {
			nb.AddMarkdown(cell)
		}
	}
	return nb
}

// previewName is the asset title unless the file on disk has an extension and the title does not.
func previewName(row course.Row) string {
	name := row.AssetTitle
	if filepath.Ext(name) == "" && filepath.Ext(row.LocalPath) != "" {
		return filepath.Base(row.LocalPath)
	}
	if name == "" {
		return filepath.Base(row.LocalPath)
	}
	return name
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
