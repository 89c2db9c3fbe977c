// Package catalog turns the curriculum of a course into the flat, ordered list of rows the rest
// of the pipeline works on.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"lecturevault/internal/components/assert"
	"lecturevault/internal/components/telemetry"
	"lecturevault/internal/course"
	"lecturevault/internal/udemy"
)

const (
	report_resolver_resolve = "resolver.resolve"
	report_resolver_title   = "resolver.title"
)

const noSection = "No Section"

// API is the subset of the udemy client the resolver needs.
type API interface {
	CourseTitle(ctx context.Context, courseId int64) (string, error)
	Curriculum(ctx context.Context, courseId int64) ([]udemy.CurriculumItem, error)
}

// FetchError means the catalog of a course could not be fetched, the course should be skipped.
type FetchError struct {
	CourseId int64
	// Status is the http status of the response, 0 if the request never got one.
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch catalog of course %d: status %d", e.CourseId, e.Status)
	}
	return fmt.Sprintf("fetch catalog of course %d: %s", e.CourseId, e.Err.Error())
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type Resolver struct {
	api API
	tel telemetry.API
}

func NewResolver(api API, tel telemetry.API) Resolver {
	assert.NotNil(api)
	assert.NotNil(tel)
	return Resolver{
		api: api,
		tel: telemetry.NewScopedAPI("catalog", tel),
	}
}

// Title returns the title of a course, falling back to "Course <id>" when it cannot be fetched.
func (r Resolver) Title(ctx context.Context, courseId int64) string {
	title, err := r.api.CourseTitle(ctx, courseId)
	if err != nil || title == "" {
		if err != nil {
			r.tel.ReportWarning(report_resolver_title, courseId, err)
		}
		return fmt.Sprintf("Course %d", courseId)
	}
	return title
}

type section struct {
	id    int64
	title string
	index int
}

// Resolve fetches the curriculum of a course and flattens it into sorted rows, one per
// supplementary asset and one stub per lecture without any. Download urls are left unresolved.
func (r Resolver) Resolve(ctx context.Context, c course.Course) ([]course.Row, error) {
	items, err := r.api.Curriculum(ctx, c.Id)
	if err != nil {
		fetchErr := &FetchError{CourseId: c.Id, Err: err}
		var statusErr *udemy.StatusError
		if errors.As(err, &statusErr) {
			fetchErr.Status = statusErr.Status
		}
		r.tel.ReportWarning(report_resolver_resolve, fetchErr)
		return nil, fetchErr
	}

	rows := Flatten(c, items)
	r.tel.ReportCount(report_resolver_resolve, int64(len(rows)))
	return rows, nil
}

// Flatten walks curriculum items in order, a lecture belongs to the most recent chapter before it.
func Flatten(c course.Course, items []udemy.CurriculumItem) []course.Row {
	current := section{title: noSection}

	var rows []course.Row
	for _, item := range items {
		switch item.Class {
		case udemy.ClassChapter:
			current = section{id: item.Id, title: item.Title, index: item.ObjectIndex}
			if current.title == "" {
				current.title = noSection
			}
		case udemy.ClassLecture:
			base := course.Row{
				CourseId:           c.Id,
				CourseTitle:        c.Title,
				SectionId:          current.id,
				SectionTitle:       current.title,
				SectionIndex:       current.index,
				LectureId:          item.Id,
				LectureTitle:       item.Title,
				LectureIndex:       item.ObjectIndex,
				LectureDescription: item.Description,
				Duration:           item.TimeEstimation,
			}
			if base.LectureTitle == "" {
				base.LectureTitle = "Untitled"
			}

			if len(item.SupplementaryAssets) == 0 {
				stub := base
				stub.Stub = true
				rows = append(rows, stub)
				continue
			}
			for _, asset := range item.SupplementaryAssets {
				row := base
				row.AssetId = asset.Id
				row.AssetTitle = asset.Title
				if row.AssetTitle == "" {
					row.AssetTitle = asset.Filename
				}
				if row.AssetTitle == "" {
					row.AssetTitle = fmt.Sprintf("asset_%d", asset.Id)
				}
				rows = append(rows, row)
			}
		}
	}

	course.SortRows(rows)
	return rows
}
