package scan

import (
	"os"
	"path/filepath"
	"testing"

	"lecturevault/internal/course"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func touch(t testing.TB, path string, contents string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
}

func TestParseIndexedName(t *testing.T) {
	testCases := []struct {
		in    string
		index int
		name  string
	}{
		{in: "03_Getting Started", index: 3, name: "Getting Started"},
		{in: "Intro", index: 0, name: "Intro"},
		{in: "ab_cd", index: 0, name: "ab_cd"},
		{in: "10_", index: 10, name: ""},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			index, name := ParseIndexedName(tc.in)
			require.Equal(t, tc.index, index)
			require.Equal(t, tc.name, name)
		})
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	lecture := filepath.Join(root, "Go Course", "01_Basics", "02_Types")
	touch(t, filepath.Join(lecture, "b.txt"), "b")
	touch(t, filepath.Join(lecture, "a.pdf"), "a")
	touch(t, filepath.Join(lecture, "a.pdf.part-abcdefgh"), "partial")
	touch(t, filepath.Join(lecture, "old.ipynb"), "{}")
	touch(t, filepath.Join(lecture, "bundle.zip_extracted", "x.txt"), "x")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Go Course", "01_Basics", "01_Welcome"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Other"), 0755))

	courses, err := Scan(root, "go course")
	require.NoError(t, err)
	require.Len(t, courses, 1)

	base := course.Row{CourseTitle: "Go Course", SectionTitle: "Basics", SectionIndex: 1}
	expected := []course.Row{
		{CourseTitle: base.CourseTitle, SectionTitle: base.SectionTitle, SectionIndex: 1, LectureTitle: "Welcome", LectureIndex: 1, Stub: true},
		{CourseTitle: base.CourseTitle, SectionTitle: base.SectionTitle, SectionIndex: 1, LectureTitle: "Types", LectureIndex: 2, AssetTitle: "a.pdf", LocalPath: filepath.Join(lecture, "a.pdf"), AlreadyDownloaded: true},
		{CourseTitle: base.CourseTitle, SectionTitle: base.SectionTitle, SectionIndex: 1, LectureTitle: "Types", LectureIndex: 2, AssetTitle: "b.txt", LocalPath: filepath.Join(lecture, "b.txt"), AlreadyDownloaded: true},
	}
	if diff := cmp.Diff(expected, courses["Go Course"]); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}

	all, err := Scan(root, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Empty(t, all["Other"])
}

func TestScanMissingDirectory(t *testing.T) {
	courses, err := Scan(filepath.Join(t.TempDir(), "nope"), "")
	require.NoError(t, err)
	require.Empty(t, courses)
}

func TestAttach(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "slides.pdf"), "pdf")
	touch(t, filepath.Join(dir, "renamed.zip"), "zip")
	touch(t, filepath.Join(dir, "extra.txt"), "extra")

	rows := []course.Row{
		{CourseTitle: "C", SectionIndex: 1, LectureIndex: 1, LectureTitle: "L", AssetId: 1, AssetTitle: "slides.pdf"},
		{CourseTitle: "C", SectionIndex: 1, LectureIndex: 1, LectureTitle: "L", AssetId: 2, AssetTitle: "code.zip"},
	}
	got := Attach(rows, func(course.Row) string { return dir })
	require.Len(t, got, 4)

	byTitle := map[string]course.Row{}
	for _, r := range got {
		byTitle[r.AssetTitle] = r
	}
	require.Equal(t, filepath.Join(dir, "slides.pdf"), byTitle["slides.pdf"].LocalPath)
	require.True(t, byTitle["slides.pdf"].AlreadyDownloaded)
	require.Empty(t, byTitle["code.zip"].LocalPath)
	require.Equal(t, filepath.Join(dir, "extra.txt"), byTitle["extra.txt"].LocalPath)
	require.Equal(t, filepath.Join(dir, "renamed.zip"), byTitle["renamed.zip"].LocalPath)
	require.Equal(t, "L", byTitle["extra.txt"].LectureTitle)
}

func TestAttachPairsSingleLeftover(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "handout_7.pdf"), "pdf")

	rows := []course.Row{
		{CourseTitle: "C", SectionIndex: 1, LectureIndex: 1, LectureTitle: "L", AssetId: 7, AssetTitle: "Handout"},
	}
	got := Attach(rows, func(course.Row) string { return dir })
	require.Len(t, got, 1)
	require.Equal(t, filepath.Join(dir, "handout_7.pdf"), got[0].LocalPath)
	require.Equal(t, "Handout", got[0].AssetTitle)
}
