package course

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestSafeName(t *testing.T) {
	table := []struct {
		input    string
		expected string
	}{
		{input: "Intro: Getting Started", expected: "Intro_ Getting Started"},
		{input: `a<b>c"d/e\f|g?h*i`, expected: "a_b_c_d_e_f_g_h_i"},
		{input: "  spaced out  ", expected: "spaced out"},
		{input: "many???marks", expected: "many_marks"},
		{input: "trailing dots...", expected: "trailing dots"},
		{input: "", expected: "Untitled"},
		{input: "   ", expected: "Untitled"},
		{input: "con", expected: "_con_"},
		{input: "LPT1", expected: "_LPT1_"},
		{input: "CON.txt", expected: "_CON.txt"},
		{input: "line\nbreak", expected: "line_break"},
	}

	for _, row := range table {
		require.Equal(t, row.expected, SafeName(row.input), row.input)
	}
}

func TestSafeNameLength(t *testing.T) {
	long := strings.Repeat("a", 119) + " " + strings.Repeat("b", 50)
	result := SafeName(long)
	require.LessOrEqual(t, len([]rune(result)), 120)
	require.Equal(t, strings.Repeat("a", 119), result)
}

func TestDirNames(t *testing.T) {
	require.Equal(t, "01_Basics", SectionDir(1, "Basics"))
	require.Equal(t, "00_No Section", SectionDir(0, ""))
	require.Equal(t, "12_Untitled", LectureDir(12, " "))
	require.Equal(t, "03_What_ now", LectureDir(3, "What? now"))
}

func TestFilenameFromURL(t *testing.T) {
	table := []struct {
		url      string
		expected string
	}{
		{
			url:      "https://cdn.example.com/a/b?response-content-disposition=attachment%3B+filename%3Dnotes.pdf&Expires=1",
			expected: "notes.pdf",
		},
		{
			url:      `https://cdn.example.com/a?response-content-disposition=attachment%3B%20filename%3D%22My%2BSlides.zip%22`,
			expected: "My Slides.zip",
		},
		{
			url:      "https://cdn.example.com/plain.pdf",
			expected: "fallback",
		},
		{
			url:      "://broken",
			expected: "fallback",
		},
	}

	for _, row := range table {
		require.Equal(t, row.expected, FilenameFromURL(row.url, "fallback"), row.url)
	}
}

func TestWithSuffix(t *testing.T) {
	require.Equal(t, "notes_42.pdf", WithSuffix("notes.pdf", "42"))
	require.Equal(t, "README_7", WithSuffix("README", "7"))
}

func TestSortRowsDeterministic(t *testing.T) {
	rows := []Row{
		{SectionIndex: 2, LectureIndex: 1, AssetTitle: "b", AssetId: 5},
		{SectionIndex: 1, LectureIndex: 2, AssetTitle: "a", AssetId: 4},
		{SectionIndex: 1, LectureIndex: 1, AssetTitle: "z", AssetId: 3},
		{SectionIndex: 1, LectureIndex: 1, AssetTitle: "a", AssetId: 2},
		{SectionIndex: 1, LectureIndex: 1, AssetTitle: "a", AssetId: 1},
		{SectionIndex: 1, LectureIndex: 1, Stub: true},
	}

	expected := make([]Row, len(rows))
	copy(expected, rows)
	SortRows(expected)

	for i := 0; i < 10; i++ {
		shuffled := make([]Row, len(rows))
		copy(shuffled, rows)
		rand.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		SortRows(shuffled)
		if diff := cmp.Diff(expected, shuffled); diff != "" {
			t.Fatalf("unstable ordering (-want +got):\n%s", diff)
		}
	}

	require.True(t, expected[0].Stub)
	require.Equal(t, int64(1), expected[1].AssetId)
	require.Equal(t, int64(2), expected[2].AssetId)
	require.Equal(t, int64(3), expected[3].AssetId)
	require.Equal(t, int64(5), expected[5].AssetId)
}

func TestGroupByLecture(t *testing.T) {
	rows := []Row{
		{CourseTitle: "C", SectionIndex: 1, SectionTitle: "S1", LectureIndex: 2, LectureTitle: "L2", AssetId: 3},
		{CourseTitle: "C", SectionIndex: 1, SectionTitle: "S1", LectureIndex: 1, LectureTitle: "L1", Stub: true},
		{CourseTitle: "C", SectionIndex: 1, SectionTitle: "S1", LectureIndex: 2, LectureTitle: "L2", AssetId: 4, Duration: 90},
		{CourseTitle: "C", SectionIndex: 0, SectionTitle: "No Section", LectureIndex: 1, LectureTitle: "Intro", AssetId: 1},
	}

	groups := GroupByLecture(rows)
	require.Len(t, groups, 3)

	require.Equal(t, "Intro", groups[0].Key.LectureTitle)
	require.Equal(t, "L1", groups[1].Key.LectureTitle)
	require.True(t, groups[1].OnlyStubs())
	require.Equal(t, "L2", groups[2].Key.LectureTitle)
	require.False(t, groups[2].OnlyStubs())
	require.Len(t, groups[2].Rows, 2)
	require.Equal(t, 90, groups[2].Duration())
	require.Equal(t, "C", groups[2].CourseTitle)
}

func TestAssetErrorMessages(t *testing.T) {
	require.Equal(t, "http error: status 404", HttpError(404).Error())
	require.Equal(t, "no download url", NoDownloadUrl("").Error())

	long := strings.Repeat("x", 500)
	err := WriteError(errString(long))
	require.Len(t, err.Detail, 200)
	require.Equal(t, FailureWrite, err.Kind)
	require.Equal(t, FailureWrite, ParseFailureKind(err.Kind.String()))
}

type errString string

func (e errString) Error() string { return string(e) }
