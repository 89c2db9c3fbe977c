package course

import (
	"fmt"
	"mime"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"
)

const maxNameLength = 120

var illegalNameChars = regexp.MustCompile(`[<>:"/\\|?*\n\r\t]`)
var repeatedUnderscores = regexp.MustCompile(`_+`)

var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

func isReserved(name string) bool {
	_, ok := reservedNames[strings.ToUpper(name)]
	return ok
}

// SafeName turns an arbitrary title into a single path component that is valid on
// windows, macOS and linux.
func SafeName(name string) string {
	s := illegalNameChars.ReplaceAllString(name, "_")
	s = strings.TrimSpace(s)
	s = repeatedUnderscores.ReplaceAllString(s, "_")
	s = strings.TrimRight(s, " .")

	if s == "" {
		return "Untitled"
	}
	if isReserved(s) {
		s = "_" + s + "_"
	} else if stem, _, found := strings.Cut(s, "."); found && isReserved(stem) {
		s = "_" + s
	}

	runes := []rune(s)
	if len(runes) > maxNameLength {
		s = strings.TrimRight(string(runes[:maxNameLength]), " .")
	}
	return s
}

func indexedName(index int, title, fallback string) string {
	if strings.TrimSpace(title) == "" {
		title = fallback
	}
	return fmt.Sprintf("%02d_%s", index, SafeName(title))
}

// SectionDir is the directory name of a section, zero padded so directories sort lexicographically.
func SectionDir(index int, title string) string {
	return indexedName(index, title, "No Section")
}

// LectureDir is the directory (or file stem) name of a lecture.
func LectureDir(index int, title string) string {
	return indexedName(index, title, "Untitled")
}

// CourseDir is the directory name of a course.
func CourseDir(title string) string {
	return SafeName(title)
}

// FilenameFromURL returns the filename embedded in the response-content-disposition query
// parameter of a signed url, or fallback if there is none.
func FilenameFromURL(rawUrl, fallback string) string {
	parsed, err := url.Parse(rawUrl)
	if err != nil {
		return fallback
	}
	disposition := parsed.Query().Get("response-content-disposition")
	if disposition == "" {
		return fallback
	}
	if unescaped, err := url.QueryUnescape(disposition); err == nil {
		disposition = unescaped
	}

	_, params, err := mime.ParseMediaType(disposition)
	if err == nil && params["filename"] != "" {
		return strings.ReplaceAll(params["filename"], "+", " ")
	}

	idx := strings.LastIndex(disposition, "filename=")
	if idx < 0 {
		return fallback
	}
	name := disposition[idx+len("filename="):]
	name, _, _ = strings.Cut(name, ";")
	name = strings.Trim(strings.TrimSpace(name), `"`)
	name = strings.ReplaceAll(name, "+", " ")
	if name == "" {
		return fallback
	}
	return name
}

// WithSuffix inserts `_<suffix>` between the stem and the extension of a filename.
func WithSuffix(filename string, suffix string) string {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	return fmt.Sprintf("%s_%s%s", stem, suffix, ext)
}
