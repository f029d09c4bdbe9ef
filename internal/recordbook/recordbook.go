// Package recordbook is the in-memory, ordered set of archive Records
// backed by a recordbook.txt file and its checksum.txt sibling.
//
// Mutations (Insert, Tombstone, Merge) operate in memory; Write performs the
// atomic temp-file-plus-rename rewrite and refreshes the checksum sidecar.
// The format itself is append-oriented, but tombstoning a record requires a
// full rewrite since flags are never patched in place.
package recordbook

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/marceloslacerda/ltarchiver/internal/digest"
	"github.com/marceloslacerda/ltarchiver/internal/record"
)

// Status is the on-disk validity of a recordbook/checksum pair, as
// determined by ValidateChecksum.
type Status int

const (
	Valid Status = iota
	NoChecksumFile
	ChecksumMismatch
	DoesNotExist
)

func (s Status) String() string {
	switch s {
	case Valid:
		return "Valid"
	case NoChecksumFile:
		return "NoChecksumFile"
	case ChecksumMismatch:
		return "ChecksumMismatch"
	case DoesNotExist:
		return "DoesNotExist"
	default:
		return "Unknown"
	}
}

// Recordbook is an ordered, in-memory set of Records.
type Recordbook struct {
	records []record.Record
}

// New returns an empty Recordbook.
func New() *Recordbook {
	return &Recordbook{}
}

// Records returns the book's records in insertion order. The slice is a
// copy; mutating it does not affect the book.
func (b *Recordbook) Records() []record.Record {
	out := make([]record.Record, len(b.records))
	copy(out, b.records)
	return out
}

// Load reads and parses path into a Recordbook. A missing file is an
// error; callers that want an empty book instead check with
// ValidateChecksum or os.Stat first.
func Load(path string) (*Recordbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("recordbook: load %s: %w", path, err)
	}
	records, err := record.ParseAll(string(data))
	if err != nil {
		return nil, err
	}
	return &Recordbook{records: records}, nil
}

// ValidateChecksum classifies the on-disk state of a recordbook file and
// its checksum sidecar.
func ValidateChecksum(recordbookPath, checksumPath string) (Status, error) {
	if _, err := os.Stat(recordbookPath); err != nil {
		if os.IsNotExist(err) {
			return DoesNotExist, nil
		}
		return DoesNotExist, fmt.Errorf("recordbook: stat %s: %w", recordbookPath, err)
	}

	sumData, err := os.ReadFile(checksumPath)
	if err != nil {
		if os.IsNotExist(err) {
			return NoChecksumFile, nil
		}
		return NoChecksumFile, fmt.Errorf("recordbook: read checksum %s: %w", checksumPath, err)
	}

	expected, err := parseChecksumLine(string(sumData))
	if err != nil {
		return ChecksumMismatch, err
	}

	ok, err := digest.Verify(recordbookPath, expected)
	if err != nil {
		return ChecksumMismatch, err
	}
	if !ok {
		return ChecksumMismatch, nil
	}
	return Valid, nil
}

// Insert enforces the uniqueness invariant: if a non-deleted record already
// shares r's checksum and that prior record's data file no longer exists at
// priorDataPath, the prior record is tombstoned before r is appended. Pass
// priorDataPath == "" to skip the existence probe.
func (b *Recordbook) Insert(r record.Record, priorDataPath string) error {
	for i := range b.records {
		existing := &b.records[i]
		if existing.Deleted || existing.Checksum != r.Checksum {
			continue
		}
		if priorDataPath != "" {
			if _, err := os.Stat(priorDataPath); err == nil {
				continue // prior data file still present: not a genuine duplicate replace
			}
		}
		existing.Deleted = true
	}
	b.records = append(b.records, r)
	return nil
}

// Tombstone marks the record at index as deleted. The caller is responsible
// for calling Write afterward to persist the full rewrite.
func (b *Recordbook) Tombstone(index int) error {
	if index < 0 || index >= len(b.records) {
		return fmt.Errorf("recordbook: tombstone index %d out of range [0,%d)", index, len(b.records))
	}
	b.records[index].Deleted = true
	return nil
}

// Merge unions other into b by Identity, appending any of other's records
// whose identity is not already present, preserving b's existing order and
// appending newcomers in other's order.
func (b *Recordbook) Merge(other *Recordbook) {
	seen := make(map[record.Identity]bool, len(b.records))
	for _, r := range b.records {
		seen[r.Identity()] = true
	}
	for _, r := range other.records {
		id := r.Identity()
		if seen[id] {
			continue
		}
		seen[id] = true
		b.records = append(b.records, r)
	}
}

// Write atomically rewrites path with b's records (insertion order
// preserved) and refreshes the checksum sidecar at checksumPath in
// `md5sum -c`-compatible format.
func (b *Recordbook) Write(path, checksumPath string) error {
	var text string
	for _, r := range b.records {
		text += r.Serialize()
	}

	if err := writeAtomic(path, []byte(text)); err != nil {
		return err
	}

	sum, err := digest.Of(path)
	if err != nil {
		return err
	}
	line := fmt.Sprintf("%s  %s\n", sum, path)
	if err := writeAtomic(checksumPath, []byte(line)); err != nil {
		return err
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("recordbook: create directory %s: %w", dir, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("recordbook: write temp file %s: %w", tmp, err)
	}

	f, err := os.Open(tmp)
	if err == nil {
		_ = f.Sync()
		_ = f.Close()
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("recordbook: rename %s to %s: %w", tmp, path, err)
	}
	return nil
}

// parseChecksumLine extracts the hex digest from a `md5sum`-style checksum
// sidecar line ("<hex>  <path>").
func parseChecksumLine(text string) (string, error) {
	for i, c := range text {
		if c == ' ' || c == '\t' || c == '\n' {
			return text[:i], nil
		}
	}
	if text == "" {
		return "", fmt.Errorf("recordbook: empty checksum file")
	}
	return text, nil
}
