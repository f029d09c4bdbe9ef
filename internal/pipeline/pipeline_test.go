package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/marceloslacerda/ltarchiver/internal/archiver"
	"github.com/marceloslacerda/ltarchiver/internal/confirm"
	"github.com/marceloslacerda/ltarchiver/internal/device"
)

const fixtureUUID = "de0409ec-0000-4000-8000-000000000001"

type fakeTable struct {
	mountTarget string
}

func (f fakeTable) Mounts() ([]device.Mount, error) {
	return []device.Mount{{Source: "/dev/fake1", Target: f.mountTarget}}, nil
}

func (f fakeTable) UUIDs() (map[string]string, error) {
	return map[string]string{fixtureUUID: "/dev/fake1"}, nil
}

func newFixture(t *testing.T) (archiver.Config, *device.Locator, string) {
	t.Helper()
	homeRoot := filepath.Join(t.TempDir(), "home")
	deviceRoot := filepath.Join(t.TempDir(), "device")
	if err := os.MkdirAll(deviceRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := archiver.Default(homeRoot)
	locator := device.NewLocator(fakeTable{mountTarget: deviceRoot}, nil)
	return cfg, locator, deviceRoot
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStoreHelloWorldMatchesSpecExample(t *testing.T) {
	cfg, locator, deviceRoot := newFixture(t)
	sourceDir := t.TempDir()
	source := writeSource(t, sourceDir, "hello.txt", "hello world")

	rec, err := Store(cfg, locator, confirm.NonInteractive{}, nil, source, deviceRoot)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	const wantDigest = "5eb63bbbe01eeed093cb22bb8f5acdc3"
	if rec.Checksum != wantDigest {
		t.Errorf("Checksum = %s, want %s", rec.Checksum, wantDigest)
	}

	eccPath := filepath.Join(deviceRoot, archiver.MetadataDir, "ecc", wantDigest)
	info, err := os.Stat(eccPath)
	if err != nil {
		t.Fatalf("stat ecc sidecar: %v", err)
	}
	if info.Size() != 16 {
		t.Errorf("ecc sidecar size = %d, want 16", info.Size())
	}

	data, err := os.ReadFile(filepath.Join(deviceRoot, "hello.txt"))
	if err != nil {
		t.Fatalf("read stored data: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("stored data = %q, want %q", data, "hello world")
	}
}

func TestStoreDuplicateSourceIsAlreadyArchived(t *testing.T) {
	cfg, locator, deviceRoot := newFixture(t)
	sourceDir := t.TempDir()
	source := writeSource(t, sourceDir, "a.txt", "payload one")

	if _, err := Store(cfg, locator, confirm.NonInteractive{}, nil, source, deviceRoot); err != nil {
		t.Fatalf("first Store: %v", err)
	}
	_, err := Store(cfg, locator, confirm.NonInteractive{}, nil, source, deviceRoot)
	if !errors.Is(err, ErrAlreadyArchived) {
		t.Fatalf("second Store error = %v, want ErrAlreadyArchived", err)
	}
}

func TestStoreNameCollisionDifferentChecksum(t *testing.T) {
	cfg, locator, deviceRoot := newFixture(t)
	sourceDir := t.TempDir()

	first := writeSource(t, sourceDir, "shared.txt", "version one")
	if _, err := Store(cfg, locator, confirm.NonInteractive{}, nil, first, deviceRoot); err != nil {
		t.Fatalf("first Store: %v", err)
	}

	otherDir := t.TempDir()
	second := writeSource(t, otherDir, "shared.txt", "version two, different content")
	_, err := Store(cfg, locator, confirm.NonInteractive{}, nil, second, deviceRoot)
	if !errors.Is(err, ErrNameCollision) {
		t.Fatalf("second Store error = %v, want ErrNameCollision", err)
	}
}

func TestRestoreNoDamage(t *testing.T) {
	cfg, locator, deviceRoot := newFixture(t)
	sourceDir := t.TempDir()
	source := writeSource(t, sourceDir, "doc.txt", "the quick brown fox jumps over the lazy dog")

	if _, err := Store(cfg, locator, confirm.NonInteractive{}, nil, source, deviceRoot); err != nil {
		t.Fatalf("Store: %v", err)
	}

	destination := filepath.Join(t.TempDir(), "restored.txt")
	backup := filepath.Join(deviceRoot, "doc.txt")
	if err := Restore(cfg, locator, confirm.NonInteractive{}, nil, backup, destination); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	got, err := os.ReadFile(destination)
	if err != nil {
		t.Fatalf("read restored file: %v", err)
	}
	if string(got) != "the quick brown fox jumps over the lazy dog" {
		t.Errorf("restored content = %q", got)
	}
}

func TestRestoreCorrectableDataDamageRecoversToDestination(t *testing.T) {
	cfg, locator, deviceRoot := newFixture(t)
	cfg.ChunkSize = 32
	cfg.ECCSize = 16 // corrects up to 8 byte errors per chunk
	sourceDir := t.TempDir()
	content := make([]byte, 32)
	for i := range content {
		content[i] = byte(i)
	}
	source := writeSource(t, sourceDir, "blob.bin", string(content))

	if _, err := Store(cfg, locator, confirm.NonInteractive{}, nil, source, deviceRoot); err != nil {
		t.Fatalf("Store: %v", err)
	}

	backup := filepath.Join(deviceRoot, "blob.bin")
	damaged, err := os.ReadFile(backup)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		damaged[i] ^= 0xFF
	}
	if err := os.WriteFile(backup, damaged, 0o644); err != nil {
		t.Fatal(err)
	}

	destination := filepath.Join(t.TempDir(), "recovered.bin")
	if err := Restore(cfg, locator, confirm.NonInteractive{}, nil, backup, destination); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	got, err := os.ReadFile(destination)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Error("recovered content does not match original")
	}

	// Data damage on the backup itself is Refresh's job, not Restore's:
	// the on-device file is left exactly as damaged as it was found.
	stillDamaged, err := os.ReadFile(backup)
	if err != nil {
		t.Fatal(err)
	}
	if string(stillDamaged) == string(content) {
		t.Error("Restore unexpectedly repaired the on-device backup in place")
	}
}

func TestRestoreECCOnlyDamageRepairsSidecarForSecondCall(t *testing.T) {
	cfg, locator, deviceRoot := newFixture(t)
	sourceDir := t.TempDir()
	source := writeSource(t, sourceDir, "steady.txt", "content that never changes")

	rec, err := Store(cfg, locator, confirm.NonInteractive{}, nil, source, deviceRoot)
	if err != nil {
		t.Fatalf("Store: %v", err)
	}

	eccPath := filepath.Join(deviceRoot, archiver.MetadataDir, "ecc", rec.Checksum)
	eccBytes, err := os.ReadFile(eccPath)
	if err != nil {
		t.Fatal(err)
	}
	for i := range eccBytes {
		eccBytes[i] ^= 0xFF
	}
	if err := os.WriteFile(eccPath, eccBytes, 0o644); err != nil {
		t.Fatal(err)
	}

	backup := filepath.Join(deviceRoot, "steady.txt")
	destination := filepath.Join(t.TempDir(), "out.txt")

	// First call: data is fine but the sidecar is corrupt, so the
	// mismatch is reported as the ECC-only-damage signal rather than a
	// silent success.
	err = Restore(cfg, locator, confirm.NonInteractive{}, nil, backup, destination)
	if !errors.Is(err, ErrECCOnlyDamage) {
		t.Fatalf("first Restore error = %v, want ErrECCOnlyDamage", err)
	}

	// The sidecar should have been repaired as a side effect of
	// detecting the damage, so a second call now succeeds.
	if err := Restore(cfg, locator, confirm.NonInteractive{}, nil, backup, destination); err != nil {
		t.Fatalf("second Restore: %v", err)
	}

	got, err := os.ReadFile(destination)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "content that never changes" {
		t.Errorf("restored content = %q", got)
	}

	repairedECC, err := os.ReadFile(eccPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(repairedECC) == string(eccBytes) {
		t.Error("ecc sidecar was not repaired after the first Restore call")
	}
}

func TestRestoreRefusesSameBackupAndDestination(t *testing.T) {
	cfg, locator, deviceRoot := newFixture(t)
	sourceDir := t.TempDir()
	source := writeSource(t, sourceDir, "same.txt", "content")
	if _, err := Store(cfg, locator, confirm.NonInteractive{}, nil, source, deviceRoot); err != nil {
		t.Fatalf("Store: %v", err)
	}

	backup := filepath.Join(deviceRoot, "same.txt")
	if err := Restore(cfg, locator, confirm.NonInteractive{}, nil, backup, backup); err == nil {
		t.Fatal("expected an error when destination equals backup")
	}
}

func TestRefreshVerifiesAllDeviceRecords(t *testing.T) {
	cfg, locator, deviceRoot := newFixture(t)
	sourceDir := t.TempDir()
	source := writeSource(t, sourceDir, "keep.txt", "durable content for refresh")

	if _, err := Store(cfg, locator, confirm.NonInteractive{}, nil, source, deviceRoot); err != nil {
		t.Fatalf("Store: %v", err)
	}

	results, err := Refresh(cfg, locator, confirm.NonInteractive{}, nil, deviceRoot)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if results[0].Err != nil {
		t.Errorf("Refresh result error = %v, want nil", results[0].Err)
	}

	data, err := os.ReadFile(filepath.Join(deviceRoot, "keep.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "durable content for refresh" {
		t.Errorf("refreshed file content = %q", data)
	}
}
