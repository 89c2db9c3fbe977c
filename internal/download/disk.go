package download

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/disk"
)

// DiskAPI reports the free space of the filesystem a path lives on.
type DiskAPI interface {
	Free(path string) (uint64, error)
}

type gopsutilDisk struct{}

func (gopsutilDisk) Free(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

func (d *Downloader) checkDiskSpace() {
	free, err := d.disk.Free(d.opts.Root)
	if err != nil {
		d.tel.ReportDebug(report_downloader_disk_space, err)
		return
	}
	if free < d.opts.MinFreeBytes {
		d.tel.ReportWarning(
			report_downloader_disk_space,
			fmt.Errorf("only %d MiB free under %s", free/(1<<20), d.opts.Root),
		)
	}
}
