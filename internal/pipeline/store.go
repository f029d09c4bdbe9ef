package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/marceloslacerda/ltarchiver/internal/archiver"
	"github.com/marceloslacerda/ltarchiver/internal/confirm"
	"github.com/marceloslacerda/ltarchiver/internal/device"
	"github.com/marceloslacerda/ltarchiver/internal/digest"
	"github.com/marceloslacerda/ltarchiver/internal/ecc"
	"github.com/marceloslacerda/ltarchiver/internal/home"
	"github.com/marceloslacerda/ltarchiver/internal/logging"
	"github.com/marceloslacerda/ltarchiver/internal/record"
)

// Store implements spec §4.7: archive source onto the device mounted at
// destinationDir, protected by an ECC sidecar, and catalog it in both the
// home and device recordbooks.
func Store(cfg archiver.Config, locator *device.Locator, confirmer confirm.UserConfirm, logger *slog.Logger, source, destinationDir string) (record.Record, error) {
	logger = logging.Default(logger).With("component", "pipeline.store")

	info, err := os.Stat(source)
	if err != nil {
		return record.Record{}, fmt.Errorf("pipeline: source %s: %w", source, err)
	}
	if !info.Mode().IsRegular() {
		return record.Record{}, fmt.Errorf("pipeline: source %s is not a regular file", source)
	}
	if f, err := os.Open(source); err != nil {
		return record.Record{}, fmt.Errorf("pipeline: source %s is not readable: %w", source, err)
	} else {
		_ = f.Close()
	}

	destInfo, err := os.Stat(destinationDir)
	if err != nil {
		return record.Record{}, fmt.Errorf("pipeline: destination %s: %w", destinationDir, err)
	}
	if !destInfo.IsDir() {
		return record.Record{}, fmt.Errorf("pipeline: destination %s is not a directory", destinationDir)
	}

	destUUID, root, err := locator.Resolve(destinationDir)
	if err != nil {
		return record.Record{}, err
	}

	homeSide := sidePaths{bookPath: homeBookPath(cfg), sumPath: homeSumPath(cfg)}
	deviceSide := sidePaths{bookPath: deviceBookPath(root), sumPath: deviceSumPath(root)}

	homeBook, deviceBook, err := reconcileBooks(homeSide, deviceSide, true, confirmer, logger)
	if err != nil {
		return record.Record{}, err
	}

	checksum, err := digest.Of(source)
	if err != nil {
		return record.Record{}, err
	}

	fileName := filepath.Base(source)
	destDataPath := filepath.Join(root, fileName)

	for _, r := range homeBook.Records() {
		if r.Deleted {
			continue
		}
		if r.Checksum == checksum {
			priorDataPath := filepath.Join(root, r.FileName)
			if _, statErr := os.Stat(priorDataPath); statErr == nil {
				return record.Record{}, fmt.Errorf("%w: %s", ErrAlreadyArchived, source)
			}
			continue // tombstoning happens via Insert below
		}
		if r.FileName == fileName && r.Checksum != checksum {
			return record.Record{}, fmt.Errorf("%w: %s", ErrNameCollision, fileName)
		}
	}

	if _, err := os.Stat(destDataPath); err == nil {
		claimed := false
		for _, r := range homeBook.Records() {
			if !r.Deleted && r.FileName == fileName && r.Checksum == checksum {
				claimed = true
				break
			}
		}
		if !claimed {
			return record.Record{}, fmt.Errorf("%w: %s", ErrUnmanagedConflict, destDataPath)
		}
	}

	eccDir := filepath.Join(root, archiver.MetadataDir, "ecc")
	if err := os.MkdirAll(eccDir, 0o755); err != nil {
		return record.Record{}, fmt.Errorf("pipeline: create ecc directory %s: %w", eccDir, err)
	}

	src, err := os.Open(source)
	if err != nil {
		return record.Record{}, fmt.Errorf("pipeline: open source %s: %w", source, err)
	}
	defer func() { _ = src.Close() }()

	dataOut, err := os.Create(destDataPath)
	if err != nil {
		return record.Record{}, fmt.Errorf("pipeline: create %s: %w", destDataPath, err)
	}
	defer func() { _ = dataOut.Close() }()

	eccOut, err := os.Create(filepath.Join(eccDir, checksum))
	if err != nil {
		return record.Record{}, fmt.Errorf("pipeline: create ecc sidecar: %w", err)
	}
	defer func() { _ = eccOut.Close() }()

	dataDigest, eccDigest, err := ecc.Encode(src, dataOut, eccOut, cfg.ChunkSize, cfg.ECCSize)
	if err != nil {
		_ = os.Remove(destDataPath)
		return record.Record{}, err
	}
	if err := dataOut.Sync(); err != nil {
		return record.Record{}, fmt.Errorf("pipeline: fsync %s: %w", destDataPath, err)
	}

	r := record.Record{
		Version:           1,
		Deleted:           false,
		FileName:          fileName,
		Source:            source,
		DestinationUUID:   destUUID.String(),
		Timestamp:         time.Now().UTC(),
		ChunkSize:         cfg.ChunkSize,
		ECCSize:           cfg.ECCSize,
		ChecksumAlgorithm: "md5",
		Checksum:          dataDigest,
		ECCChecksum:       eccDigest,
	}

	priorDataPath := ""
	for _, existing := range homeBook.Records() {
		if !existing.Deleted && existing.Checksum == r.Checksum {
			priorDataPath = filepath.Join(root, existing.FileName)
			break
		}
	}
	if err := homeBook.Insert(r, priorDataPath); err != nil {
		return record.Record{}, err
	}
	deviceBook.Merge(homeBook)

	if err := homeBook.Write(homeSide.bookPath, homeSide.sumPath); err != nil {
		return record.Record{}, err
	}
	if err := deviceBook.Write(deviceSide.bookPath, deviceSide.sumPath); err != nil {
		return record.Record{}, err
	}

	logger.Info("stored file", "source", source, "destination", destDataPath, "checksum", r.Checksum)
	return r, nil
}

func homeBookPath(cfg archiver.Config) string { return home.New(cfg.HomeRoot).RecordbookPath() }
func homeSumPath(cfg archiver.Config) string  { return home.New(cfg.HomeRoot).ChecksumPath() }

func deviceMetadataDir(root string) string { return filepath.Join(root, archiver.MetadataDir) }
func deviceBookPath(root string) string    { return filepath.Join(deviceMetadataDir(root), "recordbook.txt") }
func deviceSumPath(root string) string     { return filepath.Join(deviceMetadataDir(root), "checksum.txt") }
func deviceECCPath(root, checksum string) string {
	return filepath.Join(deviceMetadataDir(root), "ecc", checksum)
}
