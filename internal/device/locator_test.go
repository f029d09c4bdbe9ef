package device

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

type fakeTable struct {
	mounts []Mount
	uuids  map[string]string
}

func (f fakeTable) Mounts() ([]Mount, error)           { return f.mounts, nil }
func (f fakeTable) UUIDs() (map[string]string, error) { return f.uuids, nil }

const testUUID = "de0409ec-0000-4000-8000-000000000001"

func newFixture() fakeTable {
	return fakeTable{
		mounts: []Mount{
			{Source: "/dev/sda1", Target: "/"},
			{Source: "/dev/sdb1", Target: "/media/usb"},
		},
		uuids: map[string]string{
			testUUID: "/dev/sdb1",
		},
	}
}

func TestResolveFindsLongestMatchingMount(t *testing.T) {
	loc := NewLocator(newFixture(), nil)

	id, root, err := loc.Resolve("/media/usb/archive/file.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if root != "/media/usb" {
		t.Errorf("root = %s, want /media/usb", root)
	}
	want := uuid.MustParse(testUUID)
	if id != want {
		t.Errorf("uuid = %s, want %s", id, want)
	}
}

func TestResolveExactMountRoot(t *testing.T) {
	loc := NewLocator(newFixture(), nil)
	_, root, err := loc.Resolve("/media/usb")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if root != "/media/usb" {
		t.Errorf("root = %s, want /media/usb", root)
	}
}

func TestResolveDeviceNotFound(t *testing.T) {
	fixture := newFixture()
	fixture.uuids = map[string]string{} // no uuid symlink for /dev/sdb1
	loc := NewLocator(fixture, nil)

	_, _, err := loc.Resolve("/media/usb/file.txt")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("err = %v, want ErrDeviceNotFound", err)
	}
}

func TestResolveNotMounted(t *testing.T) {
	fixture := newFixture()
	fixture.mounts = nil
	loc := NewLocator(fixture, nil)

	_, _, err := loc.Resolve("/media/usb/file.txt")
	if !errors.Is(err, ErrNotMounted) {
		t.Fatalf("err = %v, want ErrNotMounted", err)
	}
}

func TestRootOfFindsCurrentMount(t *testing.T) {
	loc := NewLocator(newFixture(), nil)
	root, err := loc.RootOf(uuid.MustParse(testUUID))
	if err != nil {
		t.Fatalf("RootOf: %v", err)
	}
	if root != "/media/usb" {
		t.Errorf("root = %s, want /media/usb", root)
	}
}

func TestRootOfDeviceNotFound(t *testing.T) {
	loc := NewLocator(newFixture(), nil)
	_, err := loc.RootOf(uuid.MustParse("00000000-0000-4000-8000-000000000000"))
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("err = %v, want ErrDeviceNotFound", err)
	}
}

func TestRootOfNotMounted(t *testing.T) {
	fixture := newFixture()
	fixture.mounts = nil
	loc := NewLocator(fixture, nil)

	_, err := loc.RootOf(uuid.MustParse(testUUID))
	if !errors.Is(err, ErrNotMounted) {
		t.Fatalf("err = %v, want ErrNotMounted", err)
	}
}
