package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	m, err := Load("testfiles/master.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "city", "temp", "humidity"}, m.Header)
	assert.Len(t, m.Rows, 10)

	idx, ok := m.Column("temp")
	assert.True(t, ok)
	assert.Equal(t, 2, idx)

	_, ok = m.Column("no-such-column")
	assert.False(t, ok)
}

func TestLoad_Failed(t *testing.T) {
	_, err := Load("testfiles/no-file.csv")
	assert.Error(t, err)

	tmp := filepath.Join(t.TempDir(), "ragged.csv")
	require.NoError(t, os.WriteFile(tmp, []byte("a,b,c\n1,2\n"), 0o600))
	_, err = Load(tmp)
	assert.Error(t, err, "ragged rows rejected")

	tmp2 := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(tmp2, []byte("a,b,c\n"), 0o600))
	_, err = Load(tmp2)
	assert.Error(t, err, "header-only file rejected")
}

func TestSampler_Variants(t *testing.T) {
	m, err := Load("testfiles/master.csv")
	require.NoError(t, err)

	s := Sampler{Rows: 5, Seed: 42}
	variants, err := s.Variants(m, 3)
	require.NoError(t, err)
	require.Len(t, variants, 3)

	seen := map[string]struct{}{}
	for _, v := range variants {
		assert.Equal(t, m.Header, v.Header, "header row always carried into variant %s", v.Version)
		assert.Len(t, v.Rows, 5)
		assert.Len(t, v.Version, 8)
		seen[v.Version] = struct{}{}
	}
	assert.Len(t, seen, 3, "all versions distinct")
}

func TestSampler_Deterministic(t *testing.T) {
	m, err := Load("testfiles/master.csv")
	require.NoError(t, err)

	s := Sampler{Rows: 4, Seed: 12345}
	v1, err := s.Variants(m, 5)
	require.NoError(t, err)
	v2, err := s.Variants(m, 5)
	require.NoError(t, err)
	assert.Equal(t, v1, v2, "same seed gives identical variants and hashes")

	v3, err := Sampler{Rows: 4, Seed: 54321}.Variants(m, 5)
	require.NoError(t, err)
	assert.NotEqual(t, v1[0].Version, v3[0].Version, "different seed gives different versions")
}

func TestSampler_OversizedSample(t *testing.T) {
	m, err := Load("testfiles/master.csv")
	require.NoError(t, err)

	variants, err := Sampler{Rows: 100, Seed: 1}.Variants(m, 1)
	require.NoError(t, err)
	assert.Len(t, variants[0].Rows, len(m.Rows), "oversized sample returns all rows")

	variants, err = Sampler{Seed: 1}.Variants(m, 1)
	require.NoError(t, err)
	assert.Len(t, variants[0].Rows, len(m.Rows), "zero sample size returns all rows")
}

func TestSampler_BadCount(t *testing.T) {
	m, err := Load("testfiles/master.csv")
	require.NoError(t, err)
	_, err = Sampler{Seed: 1}.Variants(m, 0)
	assert.Error(t, err)
}

func TestWriteVariantsAndManifest(t *testing.T) {
	m, err := Load("testfiles/master.csv")
	require.NoError(t, err)
	variants, err := Sampler{Rows: 3, Seed: 7}.Variants(m, 2)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, WriteVariants(dir, variants))
	for _, v := range variants {
		data, err := os.ReadFile(filepath.Join(dir, v.Version+".csv")) // nolint gosec
		require.NoError(t, err)
		assert.Contains(t, string(data), "id,city,temp,humidity\n", "header first in %s", v.Version)
	}

	manifest := filepath.Join(dir, "manifest.csv")
	require.NoError(t, WriteManifest(manifest, variants))

	entries, err := ReadManifest(manifest)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ManifestEntry{Version: variants[0].Version, File: variants[0].Version + ".zip", Rows: 3}, entries[0])
	assert.Equal(t, variants[1].Version, entries[1].Version)
}

func TestReadManifest_Failed(t *testing.T) {
	_, err := ReadManifest("testfiles/no-file.csv")
	assert.Error(t, err)

	tmp := filepath.Join(t.TempDir(), "manifest.csv")
	require.NoError(t, os.WriteFile(tmp, []byte("version,file,rows\n"), 0o600))
	_, err = ReadManifest(tmp)
	assert.Error(t, err, "manifest with no entries rejected")

	tmp2 := filepath.Join(t.TempDir(), "manifest.csv")
	require.NoError(t, os.WriteFile(tmp2, []byte("version,file,rows\nabcd1234,abcd1234.zip,lots\n"), 0o600))
	_, err = ReadManifest(tmp2)
	assert.Error(t, err, "non-numeric rows rejected")
}
