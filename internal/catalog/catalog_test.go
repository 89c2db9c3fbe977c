package catalog

import (
	"context"
	"errors"
	"testing"

	"lecturevault/internal/components/telemetry"
	"lecturevault/internal/course"
	"lecturevault/internal/udemy"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	title string
	items []udemy.CurriculumItem
	err   error
}

func (f fakeAPI) CourseTitle(ctx context.Context, courseId int64) (string, error) {
	return f.title, f.err
}

func (f fakeAPI) Curriculum(ctx context.Context, courseId int64) ([]udemy.CurriculumItem, error) {
	return f.items, f.err
}

func TestResolve(t *testing.T) {
	api := fakeAPI{items: []udemy.CurriculumItem{
		{Class: udemy.ClassLecture, Id: 5, Title: "Welcome", ObjectIndex: 1},
		{Class: udemy.ClassChapter, Id: 1, Title: "Basics", ObjectIndex: 1},
		{Class: udemy.ClassLecture, Id: 10, Title: "Setup", ObjectIndex: 2, TimeEstimation: 120, SupplementaryAssets: []udemy.SupplementaryAsset{
			{Id: 101, Title: "zeta.txt"},
			{Id: 100, Title: "alpha.pdf"},
			{Id: 102},
		}},
		{Class: udemy.ClassChapter, Id: 2, Title: "Advanced", ObjectIndex: 2},
		{Class: udemy.ClassLecture, Id: 20, Title: "Deep dive", ObjectIndex: 3},
	}}

	resolver := NewResolver(api, &telemetry.MemoryAPI{})
	rows, err := resolver.Resolve(context.Background(), course.Course{Id: 7, Title: "Go"})
	require.NoError(t, err)

	expected := []course.Row{
		{SectionTitle: "No Section", LectureId: 5, LectureTitle: "Welcome", LectureIndex: 1, Stub: true},
		{SectionId: 1, SectionTitle: "Basics", SectionIndex: 1, LectureId: 10, LectureTitle: "Setup", LectureIndex: 2, AssetId: 100, AssetTitle: "alpha.pdf", Duration: 120},
		{SectionId: 1, SectionTitle: "Basics", SectionIndex: 1, LectureId: 10, LectureTitle: "Setup", LectureIndex: 2, AssetId: 102, AssetTitle: "asset_102", Duration: 120},
		{SectionId: 1, SectionTitle: "Basics", SectionIndex: 1, LectureId: 10, LectureTitle: "Setup", LectureIndex: 2, AssetId: 101, AssetTitle: "zeta.txt", Duration: 120},
		{SectionId: 2, SectionTitle: "Advanced", SectionIndex: 2, LectureId: 20, LectureTitle: "Deep dive", LectureIndex: 3, Stub: true},
	}
	diff := cmp.Diff(expected, rows, cmpopts.IgnoreFields(course.Row{}, "CourseId", "CourseTitle"))
	if diff != "" {
		t.Fatalf("unexpected rows (-want +got):\n%s", diff)
	}
	for _, r := range rows {
		require.Equal(t, int64(7), r.CourseId)
		require.Equal(t, "Go", r.CourseTitle)
	}
}

func TestResolveEveryLectureHasARow(t *testing.T) {
	api := fakeAPI{items: []udemy.CurriculumItem{
		{Class: udemy.ClassChapter, Id: 1, Title: "S", ObjectIndex: 1},
		{Class: udemy.ClassLecture, Id: 1, ObjectIndex: 1},
		{Class: udemy.ClassLecture, Id: 2, ObjectIndex: 2},
	}}
	rows, err := NewResolver(api, &telemetry.MemoryAPI{}).Resolve(context.Background(), course.Course{Id: 1})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Len(t, course.GroupByLecture(rows), 2)
	require.Equal(t, "Untitled", rows[0].LectureTitle)
}

func TestResolveFetchError(t *testing.T) {
	tel := &telemetry.MemoryAPI{}
	api := fakeAPI{err: &udemy.StatusError{Endpoint: "subscriber-curriculum-items", Status: 403}}

	rows, err := NewResolver(api, tel).Resolve(context.Background(), course.Course{Id: 3})
	require.Nil(t, rows)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, int64(3), fetchErr.CourseId)
	require.Equal(t, 403, fetchErr.Status)
	require.Len(t, tel.Reports("warning"), 1)
}

func TestTitleFallback(t *testing.T) {
	resolver := NewResolver(fakeAPI{err: errors.New("offline")}, &telemetry.MemoryAPI{})
	require.Equal(t, "Course 42", resolver.Title(context.Background(), 42))

	resolver = NewResolver(fakeAPI{title: "Real"}, &telemetry.MemoryAPI{})
	require.Equal(t, "Real", resolver.Title(context.Background(), 42))
}
