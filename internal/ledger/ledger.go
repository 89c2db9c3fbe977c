// Package ledger records every row of every run in sqlite, later runs use it to skip assets that
// are already on disk and offline assembly uses it to rebuild notebooks without the network.
package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"lecturevault/internal/components/assert"
	"lecturevault/internal/components/chrono"
	"lecturevault/internal/components/telemetry"
	"lecturevault/internal/course"

	_ "embed"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

const (
	report_ledger_query = "ledger.query"
)

type Ledger struct {
	db   *sql.DB
	time chrono.API
	tel  telemetry.API
}

// Open opens (or creates) the ledger database at path, ":memory:" is allowed.
func Open(path string, time chrono.API, tel telemetry.API) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	// sqlite allows a single writer, a single connection also keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	l, err := New(db, time, tel)
	if err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// New creates a ledger on top of an existing database, creating the tables if needed.
func New(db *sql.DB, time chrono.API, tel telemetry.API) (*Ledger, error) {
	assert.NotNil(db)
	assert.NotNil(time)
	assert.NotNil(tel)

	_, err := db.Exec(Schema)
	if err != nil {
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &Ledger{
		db:   db,
		time: time,
		tel:  telemetry.NewScopedAPI("ledger", tel),
	}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// makeTx creates a transaction with discard and commit functions.
func (l *Ledger) makeTx(ctx context.Context) (tx *sql.Tx, discard, commit func() error, err error) {
	tx, err = l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, nil, err
	}
	return tx, tx.Rollback, tx.Commit, nil
}

// BeginRun registers a new run and returns its id.
func (l *Ledger) BeginRun(ctx context.Context) (string, error) {
	id := uuid.NewString()
	_, err := l.db.ExecContext(
		ctx,
		"insert into run (id, started_at) values (?, ?)",
		id, l.time.Now().UnixMilli(),
	)
	if err != nil {
		l.tel.ReportBroken(report_ledger_query, err, "BeginRun")
		return "", err
	}
	return id, nil
}

func (l *Ledger) FinishRun(ctx context.Context, runId string) error {
	_, err := l.db.ExecContext(
		ctx,
		"update run set finished_at = ? where id = ?",
		l.time.Now().UnixMilli(), runId,
	)
	if err != nil {
		l.tel.ReportBroken(report_ledger_query, err, "FinishRun")
	}
	return err
}

const insertRowQuery = `insert into asset_row (
	run_id,
	course_id, course_title,
	section_id, section_title, section_index,
	lecture_id, lecture_title, lecture_index, lecture_description,
	stub, asset_id, asset_title, download_url, duration,
	local_path, already_downloaded,
	error_kind, error_status, error_detail
) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// RecordRows stores the rows of one course for a run in a single transaction.
func (l *Ledger) RecordRows(ctx context.Context, runId string, rows []course.Row) error {
	tx, discard, commit, err := l.makeTx(ctx)
	if err != nil {
		l.tel.ReportBroken(report_ledger_query, fmt.Errorf("make tx: %w", err))
		return err
	}
	defer discard()

	stmt, err := tx.PrepareContext(ctx, insertRowQuery)
	if err != nil {
		l.tel.ReportBroken(report_ledger_query, err, "RecordRows")
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		var errKind, errDetail string
		var errStatus int
		if r.Err != nil {
			errKind = r.Err.Kind.String()
			errStatus = r.Err.Status
			errDetail = r.Err.Detail
		}
		_, err = stmt.ExecContext(
			ctx,
			runId,
			r.CourseId, r.CourseTitle,
			r.SectionId, r.SectionTitle, r.SectionIndex,
			r.LectureId, r.LectureTitle, r.LectureIndex, r.LectureDescription,
			r.Stub, r.AssetId, r.AssetTitle, r.DownloadUrl, r.Duration,
			r.LocalPath, r.AlreadyDownloaded,
			errKind, errStatus, errDetail,
		)
		if err != nil {
			l.tel.ReportBroken(report_ledger_query, err, "RecordRows")
			return err
		}
	}

	return commit()
}

// KnownPath returns the most recently recorded local path of an asset, or "" if there is none.
func (l *Ledger) KnownPath(ctx context.Context, assetId int64) (string, error) {
	var path string
	err := l.db.QueryRowContext(
		ctx,
		`select asset_row.local_path from asset_row
		inner join run on run.id = asset_row.run_id
		where asset_row.asset_id = ? and asset_row.stub = 0 and asset_row.local_path != ''
		order by run.started_at desc, run.rowid desc
		limit 1`,
		assetId,
	).Scan(&path)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		l.tel.ReportBroken(report_ledger_query, err, "KnownPath")
		return "", err
	}
	return path, nil
}

// LatestRows returns the rows of the most recent run that recorded the given course, sorted.
func (l *Ledger) LatestRows(ctx context.Context, courseTitle string) ([]course.Row, error) {
	var runId string
	err := l.db.QueryRowContext(
		ctx,
		`select run.id from run
		inner join asset_row on asset_row.run_id = run.id
		where asset_row.course_title = ?
		order by run.started_at desc, run.rowid desc
		limit 1`,
		courseTitle,
	).Scan(&runId)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		l.tel.ReportBroken(report_ledger_query, err, "LatestRows")
		return nil, err
	}

	result, err := l.db.QueryContext(
		ctx,
		`select
			course_id, course_title,
			section_id, section_title, section_index,
			lecture_id, lecture_title, lecture_index, lecture_description,
			stub, asset_id, asset_title, download_url, duration,
			local_path, already_downloaded,
			error_kind, error_status, error_detail
		from asset_row where run_id = ? and course_title = ?`,
		runId, courseTitle,
	)
	if err != nil {
		l.tel.ReportBroken(report_ledger_query, err, "LatestRows")
		return nil, err
	}
	defer result.Close()

	var rows []course.Row
	for result.Next() {
		var r course.Row
		var errKind, errDetail string
		var errStatus int
		err = result.Scan(
			&r.CourseId, &r.CourseTitle,
			&r.SectionId, &r.SectionTitle, &r.SectionIndex,
			&r.LectureId, &r.LectureTitle, &r.LectureIndex, &r.LectureDescription,
			&r.Stub, &r.AssetId, &r.AssetTitle, &r.DownloadUrl, &r.Duration,
			&r.LocalPath, &r.AlreadyDownloaded,
			&errKind, &errStatus, &errDetail,
		)
		if err != nil {
			l.tel.ReportBroken(report_ledger_query, err, "LatestRows")
			return nil, err
		}
		if errKind != "" {
			r.Err = &course.AssetError{
				Kind:   course.ParseFailureKind(errKind),
				Status: errStatus,
				Detail: errDetail,
			}
		}
		rows = append(rows, r)
	}
	err = result.Err()
	if err != nil {
		return nil, err
	}

	course.SortRows(rows)
	return rows, nil
}

// Courses lists every course that was ever recorded.
func (l *Ledger) Courses(ctx context.Context) ([]course.Course, error) {
	result, err := l.db.QueryContext(
		ctx,
		`select course_id, course_title from asset_row
		group by course_id, course_title
		order by course_title`,
	)
	if err != nil {
		l.tel.ReportBroken(report_ledger_query, err, "Courses")
		return nil, err
	}
	defer result.Close()

	var out []course.Course
	for result.Next() {
		var c course.Course
		err = result.Scan(&c.Id, &c.Title)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, result.Err()
}
