package notebook

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"lecturevault/internal/components/telemetry"
	"lecturevault/internal/course"

	"github.com/stretchr/testify/require"
)

func newTestAssembler(t testing.TB) *Assembler {
	return NewAssembler(Options{Root: filepath.Join(t.TempDir(), "notebooks"), Workers: 2}, &telemetry.MemoryAPI{})
}

func writeFile(t testing.TB, path string, contents []byte) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, contents, 0644))
}

func lectureRow(title string) course.Row {
	return course.Row{
		CourseTitle:  "Go Course",
		SectionTitle: "Basics",
		SectionIndex: 1,
		LectureTitle: title,
		LectureIndex: 1,
	}
}

func TestStubLecture(t *testing.T) {
	a := newTestAssembler(t)
	stub := lectureRow("Welcome")
	stub.Stub = true
	stub.Duration = 61

	result, err := a.Assemble(context.Background(), []course.Row{stub})
	require.NoError(t, err)
	require.Equal(t, 1, result.Written)
	require.Equal(t, filepath.Join(a.opts.Root, "Go Course", "01_Basics", "01_Welcome.ipynb"), result.Paths[0])

	nb, err := readNotebook(result.Paths[0])
	require.NoError(t, err)
	require.Equal(t, 4, nb.Nbformat)
	require.Equal(t, []string{
		"<h2 style='color:#1565c0;font-family:sans-serif;'>Welcome</h2>",
		"<b style='color:#1a237e;'>Duration:</b> <span style='font-size:14px;'>2 min</span>",
		"<span style='color:#333;'>No supplementary assets for this lecture.</span>",
	}, nb.markdown())
	for _, c := range nb.Cells {
		require.NotEmpty(t, c.Id)
		require.Equal(t, "markdown", c.CellType)
	}
}

func TestTextPreviewTruncation(t *testing.T) {
	dir := t.TempDir()
	content := strings.Repeat("abcdefghij", 500)
	path := filepath.Join(dir, "notes.txt")
	writeFile(t, path, []byte(content))

	row := lectureRow("Notes")
	row.AssetId = 1
	row.AssetTitle = "notes.txt"
	row.LocalPath = path

	a := newTestAssembler(t)
	nb := a.Build(context.Background(), course.GroupByLecture([]course.Row{row})[0], dir)

	cells := nb.markdown()
	require.Len(t, cells, 3)
	require.Equal(t, "<b style='color:#1565c0;'>Asset:</b> <a href='notes.txt' style='color:#0d47a1;'>notes.txt</a>", cells[1])
	require.Equal(
		t,
		"<b style='color:#1565c0;'>Preview: notes.txt</b><pre style='background:#f5f5f5;color:#263238;'>"+content[:2000]+"</pre>",
		cells[2],
	)
}

func TestLargeAndBinaryFiles(t *testing.T) {
	dir := t.TempDir()
	big := filepath.Join(dir, "big.txt")
	writeFile(t, big, []byte(strings.Repeat("x", MaxPreviewBytes+1)))
	image := filepath.Join(dir, "diagram.PNG")
	writeFile(t, image, []byte("png"))
	exe := filepath.Join(dir, "setup.exe")
	writeFile(t, exe, []byte("MZ"))

	require.Equal(t, []string{unavailableCell("big.txt")}, AssetPreviews("big.txt", big))
	require.Equal(t, []string{unavailableCell("diagram.PNG")}, AssetPreviews("diagram.PNG", image))
	require.Empty(t, AssetPreviews("setup.exe", exe))
}

func TestInvalidUtf8IsReplaced(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "latin1.txt")
	writeFile(t, path, []byte{'c', 'a', 'f', 0xe9})

	cells := AssetPreviews("latin1.txt", path)
	require.Len(t, cells, 1)
	require.Contains(t, cells[0], "caf\uFFFD")
}

func writeZip(t testing.TB, path string, members map[string][]byte, order []string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	file, err := os.Create(path)
	require.NoError(t, err)
	defer file.Close()

	w := zip.NewWriter(file)
	for _, name := range order {
		entry, err := w.Create(name)
		require.NoError(t, err)
		if contents, ok := members[name]; ok {
			_, err = entry.Write(contents)
			require.NoError(t, err)
		}
	}
	require.NoError(t, w.Close())
}

func TestZipPreview(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundle.zip")

	text := strings.Repeat("0123456789abcdef\n", 50*1024/17+1)
	binary := make([]byte, 10<<20)
	writeZip(t, path, map[string][]byte{
		"src/main.go":    []byte(text),
		"media/demo.bin": binary,
		"../escape.txt":  []byte("nope"),
	}, []string{"src/", "src/main.go", "media/demo.bin", "../escape.txt"})

	cells := AssetPreviews("bundle.zip", path)
	require.Len(t, cells, 3)
	require.Equal(t, previewCell("main.go", text), cells[0])
	require.Contains(t, cells[0], text[:2000]+"</pre>")
	require.Equal(t, unavailableCell("demo.bin"), cells[1])
	require.Contains(t, cells[2], "Failed to preview escape.txt")

	extracted, err := os.ReadFile(filepath.Join(dir, "bundle.zip_extracted", "src", "main.go"))
	require.NoError(t, err)
	require.Equal(t, text, string(extracted))
	_, err = os.Stat(filepath.Join(dir, "escape.txt"))
	require.True(t, os.IsNotExist(err))
}

func TestBrokenFilesBecomeInlineErrors(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "broken.zip")
	writeFile(t, zipPath, []byte("not a zip"))
	pdfPath := filepath.Join(dir, "broken.pdf")
	writeFile(t, pdfPath, []byte("not a pdf"))

	zipCells := AssetPreviews("broken.zip", zipPath)
	require.Len(t, zipCells, 1)
	require.Contains(t, zipCells[0], "Failed to preview broken.zip")

	pdfCells := AssetPreviews("broken.pdf", pdfPath)
	require.Len(t, pdfCells, 1)
	require.Contains(t, pdfCells[0], "Preview of broken.pdf (first page):")
	require.Contains(t, pdfCells[0], "[Error reading PDF:")
}

func TestAssembleGroupsAndErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, []byte("hello <world>"))

	rows := []course.Row{
		{CourseTitle: "C", SectionTitle: "S", SectionIndex: 1, LectureTitle: "One", LectureIndex: 1, AssetId: 1, AssetTitle: "a.txt", LocalPath: path, DownloadUrl: "https://cdn/a.txt?x=1&y=2"},
		{CourseTitle: "C", SectionTitle: "S", SectionIndex: 1, LectureTitle: "One", LectureIndex: 1, AssetId: 2, AssetTitle: "b.txt", Err: course.HttpError(403)},
		{CourseTitle: "C", SectionTitle: "S", SectionIndex: 1, LectureTitle: "Two", LectureIndex: 2, Stub: true, LectureDescription: "<p>Read <a href='https://go.dev'>this</a></p>"},
	}

	a := newTestAssembler(t)
	result, err := a.Assemble(context.Background(), rows)
	require.NoError(t, err)
	require.Equal(t, 2, result.Written)

	one, err := readNotebook(result.Paths[0])
	require.NoError(t, err)
	require.Equal(t, []string{
		"<h2 style='color:#1565c0;font-family:sans-serif;'>One</h2>",
		"<b style='color:#1565c0;'>Asset:</b> <a href='https://cdn/a.txt?x=1&amp;y=2' style='color:#0d47a1;'>a.txt</a>",
		"<b style='color:#1565c0;'>Preview: a.txt</b><pre style='background:#f5f5f5;color:#263238;'>hello &lt;world&gt;</pre>",
		"<b style='color:#1565c0;'>Asset:</b> b.txt <span style='color:red;'>(error: http error: status 403)</span>",
	}, one.markdown())

	two, err := readNotebook(result.Paths[1])
	require.NoError(t, err)
	require.Equal(t, []string{
		"<h2 style='color:#1565c0;font-family:sans-serif;'>Two</h2>",
		"<p style='color:#333;'>Read this</p><br><a href='https://go.dev' style='color:#0d47a1;'>this</a>",
		"<span style='color:#333;'>No supplementary assets for this lecture.</span>",
	}, two.markdown())

	again, err := a.Assemble(context.Background(), rows)
	require.NoError(t, err)
	require.Equal(t, result, again)
	first, err := os.ReadFile(result.Paths[0])
	require.NoError(t, err)
	_, err = a.Assemble(context.Background(), rows)
	require.NoError(t, err)
	second, err := os.ReadFile(result.Paths[0])
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "héll", Truncate("héllo", 4))
	require.Equal(t, "hi", Truncate("hi", 10))
}
