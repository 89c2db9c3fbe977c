package ledger

import (
	"context"
	"testing"
	"time"

	"lecturevault/internal/components/chrono"
	"lecturevault/internal/components/telemetry"
	"lecturevault/internal/course"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func setup(t testing.TB) *Ledger {
	l, err := Open(":memory:", chrono.FixedImpl{Time: time.Date(2024, 8, 26, 0, 0, 0, 0, time.UTC)}, &telemetry.MemoryAPI{})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRoundTrip(t *testing.T) {
	l := setup(t)
	ctx := context.Background()

	rows := []course.Row{
		{
			CourseId: 1, CourseTitle: "Go",
			SectionId: 2, SectionTitle: "Basics", SectionIndex: 1,
			LectureId: 3, LectureTitle: "Hello", LectureIndex: 1, LectureDescription: "<p>hi</p>",
			AssetId: 4, AssetTitle: "hello.txt", DownloadUrl: "https://cdn/hello.txt", Duration: 60,
			LocalPath: "/tmp/hello.txt", AlreadyDownloaded: true,
		},
		{
			CourseId: 1, CourseTitle: "Go",
			SectionId: 2, SectionTitle: "Basics", SectionIndex: 1,
			LectureId: 5, LectureTitle: "Empty", LectureIndex: 2, Stub: true,
		},
		{
			CourseId: 1, CourseTitle: "Go",
			SectionId: 2, SectionTitle: "Basics", SectionIndex: 1,
			LectureId: 6, LectureTitle: "Broken", LectureIndex: 3,
			AssetId: 7, AssetTitle: "gone.pdf", Err: course.HttpError(404),
		},
	}

	runId, err := l.BeginRun(ctx)
	require.NoError(t, err)
	require.NoError(t, l.RecordRows(ctx, runId, rows))
	require.NoError(t, l.FinishRun(ctx, runId))

	latest, err := l.LatestRows(ctx, "Go")
	require.NoError(t, err)
	if diff := cmp.Diff(rows, latest); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}

	courses, err := l.Courses(ctx)
	require.NoError(t, err)
	require.Equal(t, []course.Course{{Id: 1, Title: "Go"}}, courses)

	missing, err := l.LatestRows(ctx, "Rust")
	require.NoError(t, err)
	require.Empty(t, missing)
}

func TestKnownPathPrefersLatestRun(t *testing.T) {
	l := setup(t)
	ctx := context.Background()

	row := course.Row{CourseId: 1, CourseTitle: "Go", AssetId: 4, AssetTitle: "a.pdf", LocalPath: "/old/a.pdf"}

	first, err := l.BeginRun(ctx)
	require.NoError(t, err)
	require.NoError(t, l.RecordRows(ctx, first, []course.Row{row}))

	second, err := l.BeginRun(ctx)
	require.NoError(t, err)
	row.LocalPath = "/new/a.pdf"
	require.NoError(t, l.RecordRows(ctx, second, []course.Row{row}))

	third, err := l.BeginRun(ctx)
	require.NoError(t, err)
	row.LocalPath = ""
	row.Err = course.NetworkError(context.DeadlineExceeded)
	require.NoError(t, l.RecordRows(ctx, third, []course.Row{row}))

	path, err := l.KnownPath(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, "/new/a.pdf", path)

	path, err = l.KnownPath(ctx, 99)
	require.NoError(t, err)
	require.Empty(t, path)

	latest, err := l.LatestRows(ctx, "Go")
	require.NoError(t, err)
	require.Len(t, latest, 1)
	require.Equal(t, course.FailureNetwork, latest[0].Err.Kind)
}
