package archive

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/shirou/gopsutil/v4/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiver_Run(t *testing.T) {
	dir := t.TempDir()
	versions := []string{"aaaa1111", "bbbb2222", "cccc3333"}
	for _, v := range versions {
		require.NoError(t, os.WriteFile(filepath.Join(dir, v+".csv"), []byte("id,val\n1,2\n"), 0o600))
	}

	produced, err := Archiver{Workers: 2}.Run(context.Background(), dir, versions)
	require.NoError(t, err)
	require.Len(t, produced, 3)
	sort.Strings(produced)

	for i, v := range versions {
		assert.Equal(t, filepath.Join(dir, v+".zip"), produced[i])
		zr, err := zip.OpenReader(produced[i])
		require.NoError(t, err)
		require.Len(t, zr.File, 1)
		assert.Equal(t, v+".csv", zr.File[0].Name, "member named after the variant csv")
		require.NoError(t, zr.Close())
	}
}

func TestArchiver_RunPartialFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good0001.csv"), []byte("id\n1\n"), 0o600))

	produced, err := Archiver{}.Run(context.Background(), dir, []string{"good0001", "missing1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")
	assert.Len(t, produced, 1, "good archive still produced")
}

func TestArchiver_FreeSpaceCheck(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "aaaa1111.csv"), []byte("id\n1\n"), 0o600))

	a := Archiver{MinFreeMB: 100, diskUsageFn: func(string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Free: 10 * 1024 * 1024}, nil // 10MB free
	}}
	_, err := a.Run(context.Background(), dir, []string{"aaaa1111"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not enough free space")

	a.diskUsageFn = func(string) (*disk.UsageStat, error) {
		return &disk.UsageStat{Free: 200 * 1024 * 1024}, nil
	}
	_, err = a.Run(context.Background(), dir, []string{"aaaa1111"})
	assert.NoError(t, err)
}
