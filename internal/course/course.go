// Package course contains the data model shared by every stage of the pipeline:
// courses, the flattened per-asset rows and the per-row failure taxonomy.
package course

import (
	"cmp"
	"fmt"
	"slices"
)

type Course struct {
	Id    int64
	Title string
}

// Row is the unit of work flowing through the pipeline, one per supplementary asset, or one
// stub per lecture that has no assets. Course, section and lecture information is denormalized
// so that later stages never need to look anything up.
type Row struct {
	CourseId    int64
	CourseTitle string

	SectionId    int64
	SectionTitle string
	SectionIndex int

	LectureId          int64
	LectureTitle       string
	LectureIndex       int
	LectureDescription string

	// Stub marks a placeholder row for a lecture with no assets, AssetId and AssetTitle are
	// empty on stubs.
	Stub       bool
	AssetId    int64
	AssetTitle string

	// DownloadUrl is the signed url, empty until resolved or if resolution failed.
	DownloadUrl string
	// Duration is the estimated duration in seconds, 0 means unknown.
	Duration int

	LocalPath         string
	AlreadyDownloaded bool
	Err               *AssetError
}

// Succeeded reports whether the row is a real asset that is present on disk.
func (r Row) Succeeded() bool {
	return !r.Stub && r.LocalPath != ""
}

func (r Row) String() string {
	if r.Stub {
		return fmt.Sprintf("%s / %s (no assets)", r.SectionTitle, r.LectureTitle)
	}
	return fmt.Sprintf("%s / %s / %s", r.SectionTitle, r.LectureTitle, r.AssetTitle)
}

// SortKey returns the normalized title rows are ordered by after their indices, stubs sort first.
func (r Row) SortKey() string {
	if r.Stub {
		return ""
	}
	return SafeName(r.AssetTitle)
}

func compareRows(a, b Row) int {
	return cmp.Or(
		cmp.Compare(a.SectionIndex, b.SectionIndex),
		cmp.Compare(a.LectureIndex, b.LectureIndex),
		cmp.Compare(a.SortKey(), b.SortKey()),
		cmp.Compare(a.LectureId, b.LectureId),
		cmp.Compare(a.AssetId, b.AssetId),
	)
}

// SortRows orders rows by (section index, lecture index, normalized asset title), ties are
// broken by lecture and asset id so that the order never depends on the input order.
func SortRows(rows []Row) {
	slices.SortStableFunc(rows, compareRows)
}

// LectureKey identifies the document a row belongs to.
type LectureKey struct {
	SectionIndex int
	SectionTitle string
	LectureIndex int
	LectureTitle string
}

func (r Row) LectureKey() LectureKey {
	return LectureKey{
		SectionIndex: r.SectionIndex,
		SectionTitle: r.SectionTitle,
		LectureIndex: r.LectureIndex,
		LectureTitle: r.LectureTitle,
	}
}

type LectureGroup struct {
	Key         LectureKey
	CourseTitle string
	Rows        []Row
}

// OnlyStubs reports whether the lecture has no real asset rows.
func (g LectureGroup) OnlyStubs() bool {
	for _, r := range g.Rows {
		if !r.Stub {
			return false
		}
	}
	return true
}

// Duration returns the first known duration of the group in seconds.
func (g LectureGroup) Duration() int {
	for _, r := range g.Rows {
		if r.Duration > 0 {
			return r.Duration
		}
	}
	return 0
}

// Description returns the first non-empty lecture description of the group.
func (g LectureGroup) Description() string {
	for _, r := range g.Rows {
		if r.LectureDescription != "" {
			return r.LectureDescription
		}
	}
	return ""
}

// GroupByLecture groups rows by LectureKey, groups are ordered by section index, lecture index
// then titles. Rows inside a group keep their relative order.
func GroupByLecture(rows []Row) []LectureGroup {
	index := map[LectureKey]int{}
	var groups []LectureGroup
	for _, r := range rows {
		key := r.LectureKey()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, LectureGroup{Key: key, CourseTitle: r.CourseTitle})
		}
		groups[i].Rows = append(groups[i].Rows, r)
	}

	slices.SortStableFunc(groups, func(a, b LectureGroup) int {
		return cmp.Or(
			cmp.Compare(a.Key.SectionIndex, b.Key.SectionIndex),
			cmp.Compare(a.Key.LectureIndex, b.Key.LectureIndex),
			cmp.Compare(a.Key.SectionTitle, b.Key.SectionTitle),
			cmp.Compare(a.Key.LectureTitle, b.Key.LectureTitle),
		)
	})
	return groups
}
