package device

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/marceloslacerda/ltarchiver/internal/logging"
)

// Locator maps a filesystem path to the stable device identity that owns
// it, and back. It is the archiver's only OS-coupled component; tests
// inject a fake Table instead of touching /proc/mounts.
type Locator struct {
	table  Table
	logger *slog.Logger
}

// NewLocator constructs a Locator backed by table. Pass logger == nil to
// discard logs.
func NewLocator(table Table, logger *slog.Logger) *Locator {
	return &Locator{table: table, logger: logging.Default(logger).With("component", "device")}
}

// Resolve walks from path's absolute form toward the filesystem root,
// stopping at the first ancestor that is itself a mount point, and returns
// that mount point's device UUID and root directory.
func (l *Locator) Resolve(path string) (uuid.UUID, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return uuid.UUID{}, "", fmt.Errorf("device: resolve %s: %w", path, err)
	}

	mounts, err := l.table.Mounts()
	if err != nil {
		return uuid.UUID{}, "", err
	}

	root, source := longestMatchingMount(mounts, abs)
	if root == "" {
		return uuid.UUID{}, "", fmt.Errorf("%w: no mount point found for %s", ErrNotMounted, path)
	}

	uuids, err := l.table.UUIDs()
	if err != nil {
		return uuid.UUID{}, "", err
	}

	for rawUUID, devicePath := range uuids {
		if filepath.Clean(devicePath) == filepath.Clean(source) {
			id, err := uuid.Parse(rawUUID)
			if err != nil {
				return uuid.UUID{}, "", fmt.Errorf("device: malformed uuid symlink name %q: %w", rawUUID, err)
			}
			l.logger.Debug("resolved device", "path", path, "uuid", id, "root", root)
			return id, root, nil
		}
	}
	return uuid.UUID{}, "", fmt.Errorf("%w: mount source %s for %s has no uuid symlink", ErrDeviceNotFound, source, path)
}

// RootOf is the inverse of Resolve: given a device UUID, find its current
// mount point. Returns ErrDeviceNotFound if the UUID has no known device,
// or ErrNotMounted if the device exists but nothing is mounted for it.
func (l *Locator) RootOf(id uuid.UUID) (string, error) {
	uuids, err := l.table.UUIDs()
	if err != nil {
		return "", err
	}

	devicePath, ok := uuids[id.String()]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	mounts, err := l.table.Mounts()
	if err != nil {
		return "", err
	}
	for _, m := range mounts {
		if filepath.Clean(m.Source) == filepath.Clean(devicePath) {
			return m.Target, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotMounted, id)
}

// longestMatchingMount returns the target/source pair of the mount entry
// whose target is the longest path-component-wise prefix of abs — the
// mount point `abs` actually lives under.
func longestMatchingMount(mounts []Mount, abs string) (root, source string) {
	best := -1
	for _, m := range mounts {
		target := filepath.Clean(m.Target)
		if !isAncestorOrSelf(target, abs) {
			continue
		}
		if len(target) > best {
			best = len(target)
			root, source = target, m.Source
		}
	}
	return root, source
}

func isAncestorOrSelf(ancestor, path string) bool {
	if ancestor == path {
		return true
	}
	if ancestor == "/" {
		return true
	}
	return strings.HasPrefix(path, ancestor+string(filepath.Separator))
}
