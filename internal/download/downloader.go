// Package download resolves signed urls for supplementary assets and streams them to disk with a
// bounded worker pool and a bounded retry policy. Failures are recorded on the row and never stop
// the rest of the batch.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"lecturevault/internal/components/assert"
	"lecturevault/internal/components/telemetry"
	"lecturevault/internal/course"
	"lecturevault/internal/udemy"

	"github.com/go-resty/resty/v2"
	"github.com/mazen160/go-random"
	"golang.org/x/sync/errgroup"
)

const (
	report_downloader_resolve    = "downloader.resolve"
	report_downloader_fetch      = "downloader.fetch"
	report_downloader_known_path = "downloader.known-path"
	report_downloader_disk_space = "downloader.disk-space"
	report_downloader_retry      = "downloader.retry"
	report_downloader_downloaded = "downloader.downloaded"
	report_downloader_skipped    = "downloader.skipped"
	report_downloader_failed     = "downloader.failed"
)

const (
	DefaultWorkers = 8
	chunkSize      = 64 * 1024
	partSuffix     = ".part-"
)

var errCancelled = errors.New("cancelled")

// AssetAPI resolves the signed download url of a supplementary asset.
type AssetAPI interface {
	SupplementaryAsset(ctx context.Context, courseId, lectureId, assetId int64) (udemy.AssetLink, error)
}

// KnownPaths remembers where previous runs stored an asset, it lets files saved under a url
// derived name be skipped without resolving the url again.
type KnownPaths interface {
	KnownPath(ctx context.Context, assetId int64) (string, error)
}

type Options struct {
	// Root is the downloads directory, files land in <Root>/<course>/<NN_section>/<NN_lecture>/.
	Root    string
	Workers int
	Retry   RetryPolicy
	// Known is optional.
	Known KnownPaths
	// Progress is called once for every non-stub row as soon as its outcome is known. Calls are
	// serialized.
	Progress func(row course.Row)
	// FetchTimeout bounds a single fetch attempt including reading the body.
	FetchTimeout time.Duration
	// MinFreeBytes is the free space under which a warning is reported before downloading.
	MinFreeBytes uint64
}

type Downloader struct {
	api   AssetAPI
	http  *resty.Client
	opts  Options
	tel   telemetry.API
	disk  DiskAPI
	mutex sync.Mutex
}

func NewDownloader(api AssetAPI, opts Options, tel telemetry.API) *Downloader {
	assert.NotNil(api)
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.Root)

	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Minute
	}
	if opts.MinFreeBytes == 0 {
		opts.MinFreeBytes = 1 << 30
	}
	opts.Retry = opts.Retry.withDefaults()

	httpClient := resty.New()
	httpClient.SetHeader("user-agent", userAgent)
	httpClient.SetTimeout(opts.FetchTimeout)

	return &Downloader{
		api:  api,
		http: httpClient,
		opts: opts,
		tel:  telemetry.NewScopedAPI("download", tel),
		disk: gopsutilDisk{},
	}
}

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// LectureDir is the directory the assets of a row are stored in.
func (d *Downloader) LectureDir(row course.Row) string {
	return filepath.Join(
		d.opts.Root,
		course.CourseDir(row.CourseTitle),
		course.SectionDir(row.SectionIndex, row.SectionTitle),
		course.LectureDir(row.LectureIndex, row.LectureTitle),
	)
}

func (d *Downloader) progress(row course.Row) {
	if d.opts.Progress == nil || row.Stub {
		return
	}
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.opts.Progress(row)
}

func nonEmptyFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

func cancelled(row *course.Row) {
	row.Err = course.NetworkError(errCancelled)
}

// Download resolves and fetches every non-stub row. The returned rows are a sorted copy of the
// input with LocalPath, AlreadyDownloaded, DownloadUrl and Err filled in, stubs pass through as is.
func (d *Downloader) Download(ctx context.Context, rows []course.Row) []course.Row {
	out := make([]course.Row, len(rows))
	copy(out, rows)
	course.SortRows(out)

	err := os.MkdirAll(d.opts.Root, 0755)
	if err != nil {
		d.tel.ReportBroken(report_downloader_fetch, fmt.Errorf("create downloads root: %w", err))
	}
	d.checkDiskSpace()

	// claimed holds every destination path assigned in this batch so that no two rows ever
	// share a path.
	claimed := map[string]struct{}{}
	pending, owners := d.precheck(ctx, out, claimed)
	pending = d.resolve(ctx, out, pending)
	d.assignPaths(out, pending, claimed, owners)
	d.fetch(ctx, out, pending)

	var downloaded, skipped, failed int64
	for _, r := range out {
		switch {
		case r.Stub:
		case r.Err != nil:
			failed++
		case r.AlreadyDownloaded:
			skipped++
		default:
			downloaded++
		}
	}
	d.tel.ReportCount(report_downloader_downloaded, downloaded)
	d.tel.ReportCount(report_downloader_skipped, skipped)
	d.tel.ReportCount(report_downloader_failed, failed)

	return out
}

// precheck marks rows whose file is already on disk and returns the indices of the rows left to
// do along with the owner of every path recorded in the ledger. Recorded paths are claimed first
// so that a file saved under a url derived name is never taken by a sibling whose title matches
// it. The title derived path is only trusted for assets the ledger knows nothing about.
func (d *Downloader) precheck(ctx context.Context, rows []course.Row, claimed map[string]struct{}) ([]int, map[string]int64) {
	known := d.knownPaths(ctx, rows)
	owners := map[string]int64{}
	for i, path := range known {
		owners[path] = rows[i].AssetId
	}

	done := make([]bool, len(rows))
	for i := range rows {
		row := &rows[i]
		if row.Stub {
			continue
		}
		if ctx.Err() != nil {
			cancelled(row)
			d.progress(*row)
			done[i] = true
			continue
		}

		path := known[i]
		if path == "" {
			continue
		}
		if _, taken := claimed[path]; taken || !nonEmptyFile(path) {
			continue
		}
		d.claimExisting(row, path, claimed)
		done[i] = true
	}

	var pending []int
	for i := range rows {
		row := &rows[i]
		if row.Stub || done[i] {
			continue
		}
		if known[i] == "" {
			path := filepath.Join(d.LectureDir(*row), course.SafeName(row.AssetTitle))
			owner, recorded := owners[path]
			_, taken := claimed[path]
			if !taken && (!recorded || owner == row.AssetId) && nonEmptyFile(path) {
				d.claimExisting(row, path, claimed)
				continue
			}
		}
		pending = append(pending, i)
	}
	return pending, owners
}

func (d *Downloader) claimExisting(row *course.Row, path string, claimed map[string]struct{}) {
	claimed[path] = struct{}{}
	row.LocalPath = path
	row.AlreadyDownloaded = true
	d.progress(*row)
}

// knownPaths looks up the recorded path of every non-stub row, keyed by row index.
func (d *Downloader) knownPaths(ctx context.Context, rows []course.Row) map[int]string {
	out := map[int]string{}
	if d.opts.Known == nil {
		return out
	}
	for i, row := range rows {
		if row.Stub || ctx.Err() != nil {
			continue
		}
		path, err := d.opts.Known.KnownPath(ctx, row.AssetId)
		if err != nil {
			d.tel.ReportWarning(report_downloader_known_path, row.AssetId, err)
			continue
		}
		if path != "" {
			out[i] = path
		}
	}
	return out
}

func (d *Downloader) notifyRetry(op string, row course.Row) func(int, error, time.Duration) {
	return func(attempt int, err error, wait time.Duration) {
		d.tel.ReportDebug(report_downloader_retry, op, row.AssetId, attempt, err.Error(), wait.String())
	}
}

func assetError(err error) *course.AssetError {
	var statusErr *udemy.StatusError
	if errors.As(err, &statusErr) {
		return course.HttpError(statusErr.Status)
	}
	var decodeErr *udemy.DecodeError
	if errors.As(err, &decodeErr) {
		return course.NoDownloadUrl(decodeErr.Error())
	}
	var writeErr *writeFailure
	if errors.As(err, &writeErr) {
		return course.WriteError(writeErr.err)
	}
	if errors.Is(err, context.Canceled) {
		return course.NetworkError(errCancelled)
	}
	return course.NetworkError(err)
}

// resolve fetches the signed url of every pending row, rows that fail are finished here and
// dropped from the returned indices.
func (d *Downloader) resolve(ctx context.Context, rows []course.Row, pending []int) []int {
	g := new(errgroup.Group)
	g.SetLimit(d.opts.Workers)

	for _, i := range pending {
		row := &rows[i]
		g.Go(func() error {
			if ctx.Err() != nil {
				cancelled(row)
				return nil
			}

			var link udemy.AssetLink
			err := d.opts.Retry.Do(ctx, func() error {
				var err error
				link, err = d.api.SupplementaryAsset(ctx, row.CourseId, row.LectureId, row.AssetId)
				return err
			}, d.notifyRetry("resolve", *row))
			if err != nil {
				d.tel.ReportWarning(report_downloader_resolve, row.AssetId, err)
				row.Err = assetError(err)
				return nil
			}
			if link.Url == "" {
				row.Err = course.NoDownloadUrl("")
				return nil
			}
			row.DownloadUrl = link.Url
			if link.Duration > 0 {
				row.Duration = link.Duration
			}
			return nil
		})
	}
	_ = g.Wait()

	var resolved []int
	for _, i := range pending {
		if rows[i].Err != nil {
			d.progress(rows[i])
			continue
		}
		resolved = append(resolved, i)
	}
	return resolved
}

// assignPaths picks the final filename of every resolved row. It runs in sorted row order so
// that a name shared by several assets of one lecture always goes to the same asset, the others
// get their asset id appended. A path the ledger recorded for another asset counts as taken.
func (d *Downloader) assignPaths(rows []course.Row, pending []int, claimed map[string]struct{}, owners map[string]int64) {
	for _, i := range pending {
		row := &rows[i]
		dir := d.LectureDir(*row)
		name := course.SafeName(course.FilenameFromURL(row.DownloadUrl, row.AssetTitle))
		path := filepath.Join(dir, name)
		_, taken := claimed[path]
		owner, recorded := owners[path]
		if taken || (recorded && owner != row.AssetId) {
			path = filepath.Join(dir, course.SafeName(course.WithSuffix(name, fmt.Sprint(row.AssetId))))
		}
		claimed[path] = struct{}{}
		row.LocalPath = path
	}
}

func (d *Downloader) fetch(ctx context.Context, rows []course.Row, pending []int) {
	g := new(errgroup.Group)
	g.SetLimit(d.opts.Workers)

	for _, i := range pending {
		row := &rows[i]
		g.Go(func() error {
			defer func() {
				d.progress(*row)
			}()

			if ctx.Err() != nil {
				row.LocalPath = ""
				cancelled(row)
				return nil
			}
			if nonEmptyFile(row.LocalPath) {
				row.AlreadyDownloaded = true
				return nil
			}

			err := d.opts.Retry.Do(ctx, func() error {
				return d.fetchOnce(ctx, row.DownloadUrl, row.LocalPath)
			}, d.notifyRetry("fetch", *row))
			if err != nil {
				d.tel.ReportWarning(report_downloader_fetch, row.AssetId, err)
				row.LocalPath = ""
				row.Err = assetError(err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// fetchOnce streams url into a temporary sibling of dest and renames it into place once the
// body has been fully read.
func (d *Downloader) fetchOnce(ctx context.Context, url, dest string) error {
	err := os.MkdirAll(filepath.Dir(dest), 0755)
	if err != nil {
		return &writeFailure{err: err}
	}

	res, err := d.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return err
	}
	body := res.RawBody()
	defer body.Close()

	if res.StatusCode() < 200 || res.StatusCode() > 299 {
		return &udemy.StatusError{Endpoint: "fetch", Status: res.StatusCode()}
	}

	suffix, err := random.String(8)
	if err != nil {
		return &writeFailure{err: err}
	}
	tmp := dest + partSuffix + suffix
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return &writeFailure{err: err}
	}

	err = copyChunks(file, body)
	closeErr := file.Close()
	if err == nil && closeErr != nil {
		err = &writeFailure{err: closeErr}
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}

	err = os.Rename(tmp, dest)
	if err != nil {
		os.Remove(tmp)
		return &writeFailure{err: err}
	}
	return nil
}

// copyChunks copies src to dst in fixed size chunks, read errors are returned as is while write
// errors are wrapped in writeFailure.
func copyChunks(dst io.Writer, src io.Reader) error {
	buf := make([]byte, chunkSize)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			_, err := dst.Write(buf[:n])
			if err != nil {
				return &writeFailure{err: err}
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}
