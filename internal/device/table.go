// Package device resolves filesystem paths to stable device identities so
// recordbook entries survive a device being unmounted, unplugged, and
// remounted under a different path.
package device

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrDeviceNotFound is returned when a UUID has no matching block device —
// the device is unplugged or was never seen on this host.
var ErrDeviceNotFound = errors.New("device: uuid not found")

// ErrNotMounted is returned when a known device's filesystem is not
// currently mounted anywhere.
var ErrNotMounted = errors.New("device: not mounted")

// Mount is one entry of the OS mount table: a block device (or other
// filesystem source) mounted at a target directory.
type Mount struct {
	Source string
	Target string
}

// Table abstracts the two pieces of Linux-specific information
// DeviceLocator needs: the live mount table, and the UUID-to-device-path
// symlink directory. Production code uses linuxTable; tests supply a fake.
type Table interface {
	// Mounts returns every current mount point.
	Mounts() ([]Mount, error)
	// UUIDs returns a map from device UUID string to the device path it
	// names (the target of /dev/disk/by-uuid/<uuid>).
	UUIDs() (map[string]string, error)
}

// linuxTable reads /proc/mounts and /dev/disk/by-uuid, the standard Linux
// sources for this information.
type linuxTable struct {
	mountsPath string
	byUUIDDir  string
}

// NewLinuxTable returns the production Table implementation, reading the
// real /proc/mounts and /dev/disk/by-uuid.
func NewLinuxTable() Table {
	return linuxTable{mountsPath: "/proc/mounts", byUUIDDir: "/dev/disk/by-uuid"}
}

func (t linuxTable) Mounts() ([]Mount, error) {
	f, err := os.Open(t.mountsPath)
	if err != nil {
		return nil, fmt.Errorf("device: open %s: %w", t.mountsPath, err)
	}
	defer func() { _ = f.Close() }()

	var mounts []Mount
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		mounts = append(mounts, Mount{Source: fields[0], Target: unescapeMountField(fields[1])})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("device: read %s: %w", t.mountsPath, err)
	}
	return mounts, nil
}

func (t linuxTable) UUIDs() (map[string]string, error) {
	entries, err := os.ReadDir(t.byUUIDDir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("device: read %s: %w", t.byUUIDDir, err)
	}

	uuids := make(map[string]string, len(entries))
	for _, e := range entries {
		link := filepath.Join(t.byUUIDDir, e.Name())
		target, err := os.Readlink(link)
		if err != nil {
			continue
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(t.byUUIDDir, target)
		}
		resolved, err := filepath.Abs(target)
		if err != nil {
			continue
		}
		uuids[e.Name()] = filepath.Clean(resolved)
	}
	return uuids, nil
}

// unescapeMountField reverses the octal escaping /proc/mounts uses for
// spaces, tabs, and backslashes in mount point paths.
func unescapeMountField(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) {
			if n, ok := octalByte(s[i+1 : i+4]); ok {
				b.WriteByte(n)
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func octalByte(s string) (byte, bool) {
	if len(s) != 3 {
		return 0, false
	}
	var v int
	for _, c := range s {
		if c < '0' || c > '7' {
			return 0, false
		}
		v = v*8 + int(c-'0')
	}
	return byte(v), true
}
