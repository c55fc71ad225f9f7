// Package archive packs dataset variants into per-version zip files.
// Archiving runs with bounded concurrency to keep the number of simultaneous
// writes under control, and can refuse to start when the output volume is low
// on free space.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/syncs"
	"github.com/shirou/gopsutil/v4/disk"
)

// Archiver zips variant CSV files, one zip per version.
type Archiver struct {
	Workers     int    // max simultaneous archive writes, default 4
	MinFreeMB   uint64 // abort if free space on the output volume is below, 0 disables the check
	diskUsageFn func(path string) (*disk.UsageStat, error) // for testing
}

// Run archives <dir>/<version>.csv into <dir>/<version>.zip for each version.
// Individual failures are logged and skipped, the returned error reports how many
// failed. Returns the list of produced archive files.
func (a Archiver) Run(ctx context.Context, dir string, versions []string) ([]string, error) {
	if err := a.checkFreeSpace(dir); err != nil {
		return nil, err
	}

	workers := a.Workers
	if workers <= 0 {
		workers = 4
	}

	var lock sync.Mutex
	var produced []string
	var failed int

	gr := syncs.NewSizedGroup(workers, syncs.Context(ctx))
	for _, version := range versions {
		version := version
		gr.Go(func(ctx context.Context) {
			src := filepath.Join(dir, version+".csv")
			dst := filepath.Join(dir, version+".zip")
			if err := zipFile(src, dst); err != nil {
				log.Printf("[WARN] failed to archive %s: %v", version, err)
				lock.Lock()
				failed++
				lock.Unlock()
				return
			}
			lock.Lock()
			produced = append(produced, dst)
			lock.Unlock()
			log.Printf("[DEBUG] archived %s", dst)
		})
	}
	gr.Wait()

	if failed > 0 {
		return produced, fmt.Errorf("%d of %d archives failed", failed, len(versions))
	}
	log.Printf("[INFO] archived %d variants in %s", len(produced), dir)
	return produced, nil
}

// checkFreeSpace verifies the output volume has at least MinFreeMB available.
func (a Archiver) checkFreeSpace(dir string) error {
	if a.MinFreeMB == 0 {
		return nil
	}
	usageFn := a.diskUsageFn
	if usageFn == nil {
		usageFn = disk.Usage
	}
	usage, err := usageFn(dir)
	if err != nil {
		return fmt.Errorf("can't get disk usage for %s: %w", dir, err)
	}
	freeMB := usage.Free / 1024 / 1024
	if freeMB < a.MinFreeMB {
		return fmt.Errorf("not enough free space in %s: %dMB free, %dMB required", dir, freeMB, a.MinFreeMB)
	}
	return nil
}

// zipFile writes a single-member zip, the member named after the source file.
func zipFile(src, dst string) error {
	in, err := os.Open(src) // nolint gosec // path derived from the output dir
	if err != nil {
		return fmt.Errorf("can't open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst) // nolint gosec // path derived from the output dir
	if err != nil {
		return fmt.Errorf("can't create %s: %w", dst, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	w, err := zw.Create(filepath.Base(src))
	if err != nil {
		return fmt.Errorf("can't add %s to archive: %w", src, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("can't write %s: %w", dst, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("can't finalize %s: %w", dst, err)
	}
	return out.Close()
}
