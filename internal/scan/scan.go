// Package scan rebuilds rows from an existing downloads tree so that notebooks can be assembled
// without talking to the api.
package scan

import (
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"lecturevault/internal/course"
)

// ParseIndexedName splits "NN_name" into its index and name, names without a numeric prefix
// get index 0.
func ParseIndexedName(dirname string) (int, string) {
	prefix, rest, found := strings.Cut(dirname, "_")
	if !found {
		return 0, dirname
	}
	index, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, dirname
	}
	return index, rest
}

func subdirs(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasSuffix(e.Name(), "_extracted") {
			out = append(out, e.Name())
		}
	}
	slices.Sort(out)
	return out, nil
}

func ignoredFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".ipynb") || strings.Contains(name, ".part-")
}

// lectureFiles lists the asset files of a lecture directory in name order.
func lectureFiles(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() || ignoredFile(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	slices.Sort(out)
	return out, nil
}

// MatchesCourse reports whether a course directory name matches a user supplied course name.
func MatchesCourse(dirname, filter string) bool {
	return dirname == course.SafeName(filter) || strings.EqualFold(dirname, filter)
}

// Scan walks <downloadsDir>/<course>/<NN_section>/<NN_lecture>/<file> and returns the rows of
// every course keyed by course directory name. Lecture directories without files produce a stub
// row. An empty filter keeps every course. A missing downloads directory yields no courses.
func Scan(downloadsDir, filter string) (map[string][]course.Row, error) {
	out := map[string][]course.Row{}

	courses, err := subdirs(downloadsDir)
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	for _, courseDir := range courses {
		if filter != "" && !MatchesCourse(courseDir, filter) {
			continue
		}
		rows, err := scanCourse(filepath.Join(downloadsDir, courseDir), courseDir)
		if err != nil {
			return nil, err
		}
		out[courseDir] = rows
	}
	return out, nil
}

func scanCourse(coursePath, courseTitle string) ([]course.Row, error) {
	sections, err := subdirs(coursePath)
	if err != nil {
		return nil, err
	}

	var rows []course.Row
	for _, sectionDir := range sections {
		sectionIndex, sectionTitle := ParseIndexedName(sectionDir)
		sectionPath := filepath.Join(coursePath, sectionDir)

		lectures, err := subdirs(sectionPath)
		if err != nil {
			return nil, err
		}
		for _, lectureDir := range lectures {
			lectureIndex, lectureTitle := ParseIndexedName(lectureDir)
			lecturePath := filepath.Join(sectionPath, lectureDir)

			base := course.Row{
				CourseTitle:  courseTitle,
				SectionTitle: sectionTitle,
				SectionIndex: sectionIndex,
				LectureTitle: lectureTitle,
				LectureIndex: lectureIndex,
			}

			files, err := lectureFiles(lecturePath)
			if err != nil {
				return nil, err
			}
			if len(files) == 0 {
				stub := base
				stub.Stub = true
				rows = append(rows, stub)
				continue
			}
			for _, name := range files {
				row := base
				row.AssetTitle = name
				row.LocalPath = filepath.Join(lecturePath, name)
				row.AlreadyDownloaded = true
				rows = append(rows, row)
			}
		}
	}

	course.SortRows(rows)
	return rows, nil
}

// Attach fills in the local path of api rows whose file already exists in the lecture directory
// returned by lectureDir. Files are matched by sanitized asset title, a lecture with a single
// unmatched file and a single unmatched asset are paired, and files no row claims are appended as
// extra rows so they still show up in the notebook.
func Attach(rows []course.Row, lectureDir func(course.Row) string) []course.Row {
	var out []course.Row
	for _, group := range course.GroupByLecture(rows) {
		dir := lectureDir(group.Rows[0])
		files, _ := lectureFiles(dir)

		available := map[string]string{}
		for _, name := range files {
			available[course.SafeName(name)] = name
		}
		consumed := map[string]struct{}{}

		var unmatched []int
		start := len(out)
		for _, r := range group.Rows {
			if r.Stub || r.LocalPath != "" {
				out = append(out, r)
				continue
			}
			key := course.SafeName(r.AssetTitle)
			if _, ok := available[key]; ok {
				if _, used := consumed[key]; !used {
					consumed[key] = struct{}{}
					r.LocalPath = filepath.Join(dir, available[key])
					r.AlreadyDownloaded = true
					out = append(out, r)
					continue
				}
			}
			unmatched = append(unmatched, len(out))
			out = append(out, r)
		}

		var leftover []string
		for _, name := range files {
			if _, used := consumed[course.SafeName(name)]; !used {
				leftover = append(leftover, name)
			}
		}
		if len(unmatched) == 1 && len(leftover) == 1 {
			out[unmatched[0]].LocalPath = filepath.Join(dir, leftover[0])
			out[unmatched[0]].AlreadyDownloaded = true
			leftover = nil
		}

		for _, name := range leftover {
			template := out[start]
			extra := course.Row{
				CourseId:     template.CourseId,
				CourseTitle:  template.CourseTitle,
				SectionId:    template.SectionId,
				SectionTitle: template.SectionTitle,
				SectionIndex: template.SectionIndex,
				LectureId:    template.LectureId,
				LectureTitle: template.LectureTitle,
				LectureIndex: template.LectureIndex,
				Duration:     group.Duration(),

				AssetTitle:        name,
				LocalPath:         filepath.Join(dir, name),
				AlreadyDownloaded: true,
			}
			out = append(out, extra)
		}
	}

	course.SortRows(out)
	return out
}
