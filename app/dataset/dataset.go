// Package dataset loads the master CSV and produces randomised per-student variants.
// Each variant keeps the master's header row, gets a short content-derived version
// hash and is written out as its own CSV file next to a manifest.
package dataset

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	log "github.com/go-pkgz/lgr"
)

// Master is the parsed master dataset, a header row plus data rows.
type Master struct {
	Header []string
	Rows   [][]string
}

// Load reads and parses the master CSV file. The first row is the header,
// all rows have to be rectangular (enforced by the csv reader).
func Load(file string) (*Master, error) {
	fh, err := os.Open(file) // nolint gosec // file path comes from the config
	if err != nil {
		return nil, fmt.Errorf("can't open master file %s: %w", file, err)
	}
	defer fh.Close()

	records, err := csv.NewReader(fh).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("can't parse master file %s: %w", file, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("master file %s has no data rows", file)
	}

	log.Printf("[INFO] loaded master %s, %d columns, %d rows", file, len(records[0]), len(records)-1)
	return &Master{Header: records[0], Rows: records[1:]}, nil
}

// Column returns the index of a named column, false if the master has no such column.
func (m *Master) Column(name string) (int, bool) {
	for i, h := range m.Header {
		if strings.TrimSpace(h) == name {
			return i, true
		}
	}
	return 0, false
}

// Variant is a single sampled rendition of the master dataset.
type Variant struct {
	Version string
	Header  []string
	Rows    [][]string
}

// Column returns the index of a named column in the variant.
func (v *Variant) Column(name string) (int, bool) {
	for i, h := range v.Header {
		if strings.TrimSpace(h) == name {
			return i, true
		}
	}
	return 0, false
}

// Sampler produces dataset variants by sampling rows without replacement.
// A fixed Seed makes the output fully deterministic.
type Sampler struct {
	Rows int   // rows per variant, all rows (shuffled) if 0 or exceeding the master
	Seed int64 // base seed, variant i draws from Seed+i
}

// Variants samples n variants from the master. Every variant carries the header
// row. Version hashes are checked for collisions within the batch, a collision
// fails the whole call as it would merge two students' datasets.
func (s Sampler) Variants(m *Master, n int) ([]Variant, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid variants count %d", n)
	}

	seen := map[string]struct{}{}
	result := make([]Variant, 0, n)
	for i := 0; i < n; i++ {
		rnd := rand.New(rand.NewSource(s.Seed + int64(i))) // nolint gosec // not used for crypto
		rows := sampleRows(rnd, m.Rows, s.Rows)
		version := versionHash(m.Header, rows)
		if _, ok := seen[version]; ok {
			return nil, fmt.Errorf("version collision on %s, try another seed", version)
		}
		seen[version] = struct{}{}
		result = append(result, Variant{Version: version, Header: m.Header, Rows: rows})
		log.Printf("[DEBUG] variant %d: version %s, %d rows", i, version, len(rows))
	}
	return result, nil
}

// sampleRows picks size rows without replacement, preserving nothing of the
// original order. size <= 0 or size >= len(rows) returns all rows shuffled.
func sampleRows(rnd *rand.Rand, rows [][]string, size int) [][]string {
	idx := rnd.Perm(len(rows))
	if size <= 0 || size > len(rows) {
		size = len(rows)
	}
	res := make([][]string, 0, size)
	for _, i := range idx[:size] {
		res = append(res, rows[i])
	}
	return res
}

// versionHash makes a short stable identifier from the variant content,
// first 8 hex chars of sha256 over all cells.
func versionHash(header []string, rows [][]string) string {
	h := sha256.New()
	for _, c := range header {
		_, _ = h.Write([]byte(c))
		_, _ = h.Write([]byte{0})
	}
	for _, row := range rows {
		for _, c := range row {
			_, _ = h.Write([]byte(c))
			_, _ = h.Write([]byte{0})
		}
		_, _ = h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))[:8]
}

// WriteVariants stores each variant as <dir>/<version>.csv, header first.
func WriteVariants(dir string, variants []Variant) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("can't make output dir %s: %w", dir, err)
	}
	for _, v := range variants {
		if err := writeCSV(filepath.Join(dir, v.Version+".csv"), v.Header, v.Rows); err != nil {
			return err
		}
	}
	log.Printf("[INFO] wrote %d variants to %s", len(variants), dir)
	return nil
}

// WriteManifest writes the manifest CSV (version,file,rows) listing all variants.
// The file column points to the archive name the publish stage will upload.
func WriteManifest(file string, variants []Variant) error {
	header := []string{"version", "file", "rows"}
	rows := make([][]string, 0, len(variants))
	for _, v := range variants {
		rows = append(rows, []string{v.Version, v.Version + ".zip", strconv.Itoa(len(v.Rows))})
	}
	return writeCSV(file, header, rows)
}

// ManifestEntry is one line of the manifest CSV.
type ManifestEntry struct {
	Version string
	File    string
	Rows    int
}

// ReadManifest loads the manifest back, keeping the original order of versions.
func ReadManifest(file string) ([]ManifestEntry, error) {
	fh, err := os.Open(file) // nolint gosec // file path comes from the config
	if err != nil {
		return nil, fmt.Errorf("can't open manifest %s: %w", file, err)
	}
	defer fh.Close()

	records, err := csv.NewReader(fh).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("can't parse manifest %s: %w", file, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("manifest %s is empty", file)
	}

	res := make([]ManifestEntry, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < 3 {
			continue
		}
		rows, err := strconv.Atoi(rec[2])
		if err != nil {
			return nil, fmt.Errorf("manifest %s: bad rows count %q for version %s", file, rec[2], rec[0])
		}
		res = append(res, ManifestEntry{Version: rec[0], File: rec[1], Rows: rows})
	}
	return res, nil
}

func writeCSV(file string, header []string, rows [][]string) error {
	fh, err := os.Create(file) // nolint gosec // file path comes from the config
	if err != nil {
		return fmt.Errorf("can't create %s: %w", file, err)
	}
	defer fh.Close()

	w := csv.NewWriter(fh)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("can't write header to %s: %w", file, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("can't write rows to %s: %w", file, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("can't flush %s: %w", file, err)
	}
	return fh.Close()
}
