package notebook

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"lecturevault/pkg/htmlutil"

	"github.com/ledongthuc/pdf"
)

const (
	MaxPreviewBytes = 512 * 1024
	MaxPreviewChars = 2000
	extractedSuffix = "_extracted"
)

var binaryExtension = regexp.MustCompile(`(?i)\.(png|jpg|jpeg|gif|bmp|exe|dll|pdf|mp4|avi|mkv|mov|pptx?|docx?|xlsx?)$`)

// IsTexty reports whether a file is worth previewing as text judging by its extension.
func IsTexty(name string) bool {
	return !binaryExtension.MatchString(name)
}

func hasExt(name, ext string) bool {
	return strings.EqualFold(filepath.Ext(name), ext)
}

func IsPdf(name string) bool {
	return hasExt(name, ".pdf")
}

func IsZip(name string) bool {
	return hasExt(name, ".zip")
}

func IsExe(name string) bool {
	return hasExt(name, ".exe")
}

// Truncate keeps the first n characters of s.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func previewCell(name, content string) string {
	return fmt.Sprintf(
		"<b style='color:#1565c0;'>Preview: %s</b><pre style='background:#f5f5f5;color:#263238;'>%s</pre>",
		htmlutil.Escape(name),
		htmlutil.Escape(Truncate(content, MaxPreviewChars)),
	)
}

func unavailableCell(name string) string {
	return fmt.Sprintf(
		"<span style='color:#888;'>Preview not available for %s (binary or too large)</span>",
		htmlutil.Escape(name),
	)
}

func failedCell(name string, err error) string {
	return fmt.Sprintf(
		"<span style='color:red;'>Failed to preview %s: %s</span>",
		htmlutil.Escape(name),
		htmlutil.Escape(err.Error()),
	)
}

func pdfCell(name, text string) string {
	return fmt.Sprintf(
		"<b style='color:#1565c0;'>Preview of %s (first page):</b><pre style='background:#f5f5f5;color:#263238;'>%s</pre>",
		htmlutil.Escape(name),
		htmlutil.Escape(Truncate(text, MaxPreviewChars)),
	)
}

// readText reads a file as utf-8, invalid sequences are replaced with U+FFFD.
func readText(path string) (string, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(contents), "\uFFFD"), nil
}

// textPreview applies the text preview policy to a single file on disk.
func textPreview(name, path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return failedCell(name, err)
	}
	if !IsTexty(name) || info.Size() > MaxPreviewBytes {
		return unavailableCell(name)
	}
	content, err := readText(path)
	if err != nil {
		return failedCell(name, err)
	}
	return previewCell(name, content)
}

// PdfFirstPage extracts the text of the first page of a pdf, problems are returned as
// bracketed placeholders instead of errors.
func PdfFirstPage(path string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = fmt.Sprintf("[Error reading PDF: %v]", r)
		}
	}()

	file, reader, err := pdf.Open(path)
	if err != nil {
		return fmt.Sprintf("[Error reading PDF: %s]", err.Error())
	}
	defer file.Close()

	if reader.NumPage() < 1 {
		return "[No pages found in PDF]"
	}
	page := reader.Page(1)
	if page.V.IsNull() {
		return "[No extractable text found in first page]"
	}
	content, err := page.GetPlainText(nil)
	if err != nil {
		return fmt.Sprintf("[Error reading PDF: %s]", err.Error())
	}
	if strings.TrimSpace(content) == "" {
		return "[No extractable text found in first page]"
	}
	return content
}

// safeJoin joins a zip member name onto dir, refusing names that would escape it.
func safeJoin(dir, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return "", fmt.Errorf("unsafe path in archive: %s", name)
	}
	target := filepath.Join(dir, filepath.FromSlash(name))
	rel, err := filepath.Rel(dir, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("unsafe path in archive: %s", name)
	}
	return target, nil
}

func extractMember(member *zip.File, dest string) error {
	err := os.MkdirAll(filepath.Dir(dest), 0755)
	if err != nil {
		return err
	}
	src, err := member.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, src)
	closeErr := out.Close()
	if err != nil {
		return err
	}
	return closeErr
}

// zipPreviews extracts an archive next to itself and previews every file member in archive
// order. A member that cannot be extracted only affects its own cell.
func zipPreviews(path string) []string {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return []string{failedCell(filepath.Base(path), err)}
	}
	defer reader.Close()

	extractDir := path + extractedSuffix
	err = os.MkdirAll(extractDir, 0755)
	if err != nil {
		return []string{failedCell(filepath.Base(path), err)}
	}

	var cells []string
	for _, member := range reader.File {
		if member.FileInfo().IsDir() || strings.HasSuffix(member.Name, "/") {
			continue
		}
		name := filepath.Base(filepath.FromSlash(member.Name))

		dest, err := safeJoin(extractDir, member.Name)
		if err != nil {
			cells = append(cells, failedCell(name, err))
			continue
		}
		err = extractMember(member, dest)
		if err != nil {
			cells = append(cells, failedCell(name, err))
			continue
		}
		cells = append(cells, textPreview(name, dest))
	}
	return cells
}

// AssetPreviews returns the preview cells of one downloaded asset. name decides how the file is
// treated, path is where it lives on disk.
func AssetPreviews(name, path string) (cells []string) {
	defer func() {
		if r := recover(); r != nil {
			cells = []string{failedCell(name, fmt.Errorf("%v", r))}
		}
	}()

	switch {
	case IsExe(name):
		return nil
	case IsZip(name):
		return zipPreviews(path)
	case IsPdf(name):
		return []string{pdfCell(name, PdfFirstPage(path))}
	default:
		return []string{textPreview(name, path)}
	}
}
