package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/marceloslacerda/ltarchiver/internal/archiver"
	"github.com/marceloslacerda/ltarchiver/internal/confirm"
	"github.com/marceloslacerda/ltarchiver/internal/device"
	"github.com/marceloslacerda/ltarchiver/internal/digest"
	"github.com/marceloslacerda/ltarchiver/internal/ecc"
	"github.com/marceloslacerda/ltarchiver/internal/logging"
	"github.com/marceloslacerda/ltarchiver/internal/record"
)

// Restore implements spec §4.8: verify (and, if necessary, recover) an
// archived file from a device, writing it to destination. destination may
// be an existing directory, in which case the backup's basename is
// appended.
func Restore(cfg archiver.Config, locator *device.Locator, confirmer confirm.UserConfirm, logger *slog.Logger, backup, destination string) error {
	logger = logging.Default(logger).With("component", "pipeline.restore")

	absBackup, err := filepath.Abs(backup)
	if err != nil {
		return fmt.Errorf("pipeline: resolve backup path %s: %w", backup, err)
	}
	if info, err := os.Stat(destination); err == nil && info.IsDir() {
		destination = filepath.Join(destination, filepath.Base(backup))
	}
	absDestination, err := filepath.Abs(destination)
	if err != nil {
		return fmt.Errorf("pipeline: resolve destination path %s: %w", destination, err)
	}
	if absBackup == absDestination {
		return fmt.Errorf("pipeline: destination must differ from backup (%s)", backup)
	}

	_, root, err := locator.Resolve(filepath.Dir(backup))
	if err != nil {
		return err
	}

	homeSide := sidePaths{bookPath: homeBookPath(cfg), sumPath: homeSumPath(cfg)}
	deviceSide := sidePaths{bookPath: deviceBookPath(root), sumPath: deviceSumPath(root)}

	homeBook, deviceBook, err := reconcileBooks(homeSide, deviceSide, false, confirmer, logger)
	if err != nil {
		return err
	}

	backupChecksum, err := digest.Of(backup)
	if err != nil {
		return err
	}
	fileName := filepath.Base(backup)

	homeRecord, homeFound := findMatch(homeBook.Records(), backupChecksum, fileName)
	deviceRecord, deviceFound := findMatch(deviceBook.Records(), backupChecksum, fileName)

	// "Valid" per the step-5 truth table means the matched record's stored
	// checksum agrees with the freshly computed backup digest — i.e. no
	// corruption is indicated for that side's view of the file.
	homeValid := homeFound && homeRecord.Checksum == backupChecksum
	deviceValid := deviceFound && deviceRecord.Checksum == backupChecksum

	chosen, err := decideAuthoritative(homeFound, homeValid, deviceFound, deviceValid, confirmer)
	if err != nil {
		return fmt.Errorf("%w: %s", err, backup)
	}

	switch {
	case chosen == sideHome && (!deviceFound || !deviceValid):
		if err := copySide(homeSide, deviceSide); err != nil {
			return err
		}
	case chosen == sideDevice && (!homeFound || !homeValid):
		if err := copySide(deviceSide, homeSide); err != nil {
			return err
		}
	}

	var rec record.Record
	if chosen == sideHome {
		rec = homeRecord
	} else {
		rec = deviceRecord
	}

	eccPath := deviceECCPath(root, rec.Checksum)
	eccDigest, err := digest.Of(eccPath)
	if err != nil {
		return fmt.Errorf("pipeline: read ecc sidecar for %s: %w", fileName, err)
	}

	if backupChecksum == rec.Checksum {
		if eccDigest == rec.ECCChecksum {
			if err := copyFile(backup, destination); err != nil {
				return err
			}
			logger.Info("restored without corruption", "backup", backup, "destination", destination)
			return nil
		}
		if repairErr := repairECCSidecar(rec, backup, eccPath, logger); repairErr != nil {
			return fmt.Errorf("%w (%s): sidecar repair also failed: %v", ErrECCOnlyDamage, fileName, repairErr)
		}
		return fmt.Errorf("%w (%s)", ErrECCOnlyDamage, fileName)
	}

	return recoverInto(rec, backup, destination, eccPath, logger)
}

// repairECCSidecar regenerates a damaged ecc sidecar from the data file,
// which is already known-good (its digest matches rec.Checksum). This is
// the spec §4.8 step 7 "ECC-only damage" repair: the data survives, only
// the sidecar needs rebuilding, so a second Restore call afterward sees a
// matching sidecar and succeeds.
func repairECCSidecar(rec record.Record, dataPath, eccPath string, logger *slog.Logger) error {
	tmpECC := eccPath + ".ltarchiver-tmp"
	defer func() { _ = os.Remove(tmpECC) }()

	if err := rebuildECC(dataPath, tmpECC, rec); err != nil {
		return err
	}
	recoveredECCDigest, err := digest.Of(tmpECC)
	if err != nil {
		return err
	}
	if recoveredECCDigest != rec.ECCChecksum {
		return fmt.Errorf("%w: rebuilt ecc digest mismatch for %s", ErrUnrecoverableCorruption, filepath.Base(dataPath))
	}
	if err := os.Rename(tmpECC, eccPath); err != nil {
		return fmt.Errorf("pipeline: repair ecc sidecar %s: %w", eccPath, err)
	}
	logger.Info("repaired ecc sidecar", "data", dataPath, "ecc", eccPath)
	return nil
}

type side int

const (
	sideNone side = iota
	sideHome
	sideDevice
)

// decideAuthoritative implements the §4.8 step-5 truth table.
func decideAuthoritative(homeFound, homeValid, deviceFound, deviceValid bool, confirmer confirm.UserConfirm) (side, error) {
	switch {
	case homeFound && homeValid:
		return sideHome, nil
	case homeFound && !homeValid && deviceFound && deviceValid:
		return sideDevice, nil
	case homeFound && !homeValid && deviceFound && !deviceValid:
		return promptContinueTentative(confirmer, sideHome)
	case homeFound && !homeValid && !deviceFound:
		return promptContinueTentative(confirmer, sideHome)
	case !homeFound && deviceFound && deviceValid:
		return sideDevice, nil
	case !homeFound && deviceFound && !deviceValid:
		return promptContinueTentative(confirmer, sideDevice)
	default:
		return sideNone, fmt.Errorf("%w", ErrNotInRecordbook)
	}
}

func promptContinueTentative(confirmer confirm.UserConfirm, tentative side) (side, error) {
	ans, err := confirmer.Confirm("recordbook entries disagree about this file; continue with the best available match?")
	if err != nil {
		return sideNone, err
	}
	if ans != confirm.Yes {
		return sideNone, fmt.Errorf("%w", ErrUserAborted)
	}
	return tentative, nil
}

func findMatch(records []record.Record, checksum, fileName string) (record.Record, bool) {
	for _, r := range records {
		if r.Deleted {
			continue
		}
		if r.Checksum == checksum || r.FileName == fileName {
			return r, true
		}
	}
	return record.Record{}, false
}

// recoverInto runs ECC decode into a temp destination and temp ECC sidecar,
// verifies both recovered digests against rec, and on success repairs the
// on-device sidecar in place while leaving destination written. On failure
// it removes the partial destination and reports ErrUnrecoverableCorruption.
func recoverInto(rec record.Record, backup, destination, eccPath string, logger *slog.Logger) error {
	tmpDest := destination + ".ltarchiver-tmp"
	tmpECC := eccPath + ".ltarchiver-tmp"
	defer func() { _ = os.Remove(tmpDest) }()
	defer func() { _ = os.Remove(tmpECC) }()

	in, err := os.Open(backup)
	if err != nil {
		return fmt.Errorf("pipeline: open backup %s: %w", backup, err)
	}
	defer func() { _ = in.Close() }()

	eccIn, err := os.Open(eccPath)
	if err != nil {
		return fmt.Errorf("pipeline: open ecc sidecar %s: %w", eccPath, err)
	}
	defer func() { _ = eccIn.Close() }()

	destOut, err := os.Create(tmpDest)
	if err != nil {
		return fmt.Errorf("pipeline: create %s: %w", tmpDest, err)
	}

	if err := ecc.Decode(in, eccIn, destOut, rec.ChunkSize, rec.ECCSize); err != nil {
		_ = destOut.Close()
		return err
	}
	_ = destOut.Sync()
	_ = destOut.Close()

	recoveredDigest, err := digest.Of(tmpDest)
	if err != nil {
		return err
	}
	if recoveredDigest != rec.Checksum {
		return fmt.Errorf("%w: recovered data digest mismatch for %s", ErrUnrecoverableCorruption, filepath.Base(backup))
	}

	if err := rebuildECC(tmpDest, tmpECC, rec); err != nil {
		return err
	}
	recoveredECCDigest, err := digest.Of(tmpECC)
	if err != nil {
		return err
	}
	if recoveredECCDigest != rec.ECCChecksum {
		return fmt.Errorf("%w: recovered ecc digest mismatch for %s", ErrUnrecoverableCorruption, filepath.Base(backup))
	}

	if err := os.Rename(tmpECC, eccPath); err != nil {
		return fmt.Errorf("pipeline: repair ecc sidecar %s: %w", eccPath, err)
	}
	if err := os.Rename(tmpDest, destination); err != nil {
		return fmt.Errorf("pipeline: finalize destination %s: %w", destination, err)
	}

	logger.Info("recovered file via ecc", "backup", backup, "destination", destination)
	return nil
}

// rebuildECC regenerates the ecc sidecar for the already-recovered clean
// data at dataPath, so the repaired sidecar matches rec.ECCChecksum exactly.
func rebuildECC(dataPath, eccOutPath string, rec record.Record) error {
	in, err := os.Open(dataPath)
	if err != nil {
		return fmt.Errorf("pipeline: reopen recovered data %s: %w", dataPath, err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(eccOutPath)
	if err != nil {
		return fmt.Errorf("pipeline: create ecc rebuild %s: %w", eccOutPath, err)
	}
	defer func() { _ = out.Close() }()

	_, _, err = ecc.Encode(in, devNullWriter{}, out, rec.ChunkSize, rec.ECCSize)
	return err
}

// devNullWriter discards the data-copy output Encode would otherwise
// require a writer for — rebuildECC only needs the parity stream.
type devNullWriter struct{}

func (devNullWriter) Write(p []byte) (int, error) { return len(p), nil }
