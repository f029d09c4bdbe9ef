package recordbook

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marceloslacerda/ltarchiver/internal/record"
)

func sampleRecord(name, checksum string) record.Record {
	return record.Record{
		Version:           1,
		Deleted:           false,
		FileName:          name,
		Source:            "/home/user/" + name,
		DestinationUUID:   "de0409ec-0000-4000-8000-000000000001",
		Timestamp:         time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC),
		ChunkSize:         1024,
		ECCSize:           16,
		ChecksumAlgorithm: "md5",
		Checksum:          checksum,
		ECCChecksum:       "0123456789abcdef0123456789abcdef",
	}
}

func TestLoadWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	bookPath := filepath.Join(dir, "recordbook.txt")
	sumPath := filepath.Join(dir, "checksum.txt")

	b := New()
	_ = b.Insert(sampleRecord("a.txt", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), "")
	_ = b.Insert(sampleRecord("b.txt", "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"), "")

	if err := b.Write(bookPath, sumPath); err != nil {
		t.Fatalf("Write: %v", err)
	}

	loaded, err := Load(bookPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := loaded.Records()
	want := b.Records()
	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("record %d mismatch:\n got  %+v\n want %+v", i, got[i], want[i])
		}
	}
}

func TestValidateChecksumDoesNotExist(t *testing.T) {
	dir := t.TempDir()
	status, err := ValidateChecksum(filepath.Join(dir, "recordbook.txt"), filepath.Join(dir, "checksum.txt"))
	if err != nil {
		t.Fatalf("ValidateChecksum: %v", err)
	}
	if status != DoesNotExist {
		t.Errorf("status = %v, want DoesNotExist", status)
	}
}

func TestValidateChecksumNoChecksumFile(t *testing.T) {
	dir := t.TempDir()
	bookPath := filepath.Join(dir, "recordbook.txt")
	if err := os.WriteFile(bookPath, []byte("Item\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	status, err := ValidateChecksum(bookPath, filepath.Join(dir, "checksum.txt"))
	if err != nil {
		t.Fatalf("ValidateChecksum: %v", err)
	}
	if status != NoChecksumFile {
		t.Errorf("status = %v, want NoChecksumFile", status)
	}
}

func TestValidateChecksumValid(t *testing.T) {
	dir := t.TempDir()
	bookPath := filepath.Join(dir, "recordbook.txt")
	sumPath := filepath.Join(dir, "checksum.txt")

	b := New()
	_ = b.Insert(sampleRecord("a.txt", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), "")
	if err := b.Write(bookPath, sumPath); err != nil {
		t.Fatal(err)
	}

	status, err := ValidateChecksum(bookPath, sumPath)
	if err != nil {
		t.Fatalf("ValidateChecksum: %v", err)
	}
	if status != Valid {
		t.Errorf("status = %v, want Valid", status)
	}
}

func TestValidateChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	bookPath := filepath.Join(dir, "recordbook.txt")
	sumPath := filepath.Join(dir, "checksum.txt")

	b := New()
	_ = b.Insert(sampleRecord("a.txt", "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"), "")
	if err := b.Write(bookPath, sumPath); err != nil {
		t.Fatal(err)
	}

	// Mutate the book after the checksum was taken.
	_ = b.Insert(sampleRecord("b.txt", "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"), "")
	var text string
	for _, r := range b.Records() {
		text += r.Serialize()
	}
	if err := os.WriteFile(bookPath, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}

	status, err := ValidateChecksum(bookPath, sumPath)
	if err != nil {
		t.Fatalf("ValidateChecksum: %v", err)
	}
	if status != ChecksumMismatch {
		t.Errorf("status = %v, want ChecksumMismatch", status)
	}
}

func TestInsertDuplicateChecksumTombstonesWhenDataGone(t *testing.T) {
	dir := t.TempDir()
	missingPath := filepath.Join(dir, "gone.txt") // never created

	b := New()
	_ = b.Insert(sampleRecord("a.txt", "cccccccccccccccccccccccccccccccc"), missingPath)
	_ = b.Insert(sampleRecord("a2.txt", "cccccccccccccccccccccccccccccccc"), missingPath)

	records := b.Records()
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if !records[0].Deleted {
		t.Error("first record with a duplicate checksum and a gone data file should be tombstoned")
	}
	if records[1].Deleted {
		t.Error("newly inserted record should not be deleted")
	}
}

func TestInsertDuplicateChecksumKeepsBothWhenDataPresent(t *testing.T) {
	dir := t.TempDir()
	presentPath := filepath.Join(dir, "present.txt")
	if err := os.WriteFile(presentPath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	b := New()
	_ = b.Insert(sampleRecord("a.txt", "dddddddddddddddddddddddddddddddd"), presentPath)
	_ = b.Insert(sampleRecord("a2.txt", "dddddddddddddddddddddddddddddddd"), presentPath)

	records := b.Records()
	if records[0].Deleted {
		t.Error("record should not be tombstoned while its data file still exists")
	}
}

func TestTombstone(t *testing.T) {
	b := New()
	_ = b.Insert(sampleRecord("a.txt", "eeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"), "")

	if err := b.Tombstone(0); err != nil {
		t.Fatalf("Tombstone: %v", err)
	}
	if !b.Records()[0].Deleted {
		t.Error("record should be marked deleted")
	}
}

func TestTombstoneOutOfRange(t *testing.T) {
	b := New()
	if err := b.Tombstone(0); err == nil {
		t.Fatal("expected error for out-of-range index")
	}
}

func TestMergeUnionsByIdentityPreservingOrder(t *testing.T) {
	a := New()
	_ = a.Insert(sampleRecord("a.txt", "f0000000000000000000000000000000"), "")

	other := New()
	_ = other.Insert(sampleRecord("a.txt", "f0000000000000000000000000000000"), "") // duplicate identity
	_ = other.Insert(sampleRecord("b.txt", "f1111111111111111111111111111111"), "")

	a.Merge(other)

	got := a.Records()
	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[0].FileName != "a.txt" || got[1].FileName != "b.txt" {
		t.Errorf("unexpected order/content: %+v", got)
	}
}

func TestWriteInsertionOrderPreserved(t *testing.T) {
	dir := t.TempDir()
	bookPath := filepath.Join(dir, "recordbook.txt")
	sumPath := filepath.Join(dir, "checksum.txt")

	b := New()
	_ = b.Insert(sampleRecord("z.txt", "a0000000000000000000000000000000"), "")
	_ = b.Insert(sampleRecord("a.txt", "a1111111111111111111111111111111"), "")

	if err := b.Write(bookPath, sumPath); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(bookPath)
	if err != nil {
		t.Fatal(err)
	}
	got := loaded.Records()
	if got[0].FileName != "z.txt" || got[1].FileName != "a.txt" {
		t.Errorf("insertion order not preserved: %+v", got)
	}
}
