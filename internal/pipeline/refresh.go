package pipeline

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/marceloslacerda/ltarchiver/internal/archiver"
	"github.com/marceloslacerda/ltarchiver/internal/confirm"
	"github.com/marceloslacerda/ltarchiver/internal/device"
	"github.com/marceloslacerda/ltarchiver/internal/logging"
	"github.com/marceloslacerda/ltarchiver/internal/record"
)

// RefreshResult reports one record's outcome during a Refresh pass.
type RefreshResult struct {
	Record record.Record
	Err    error
}

// Refresh implements spec §4.9: reconcile the device's books with home,
// merge home ← device, then re-verify (and repair, if correctable) every
// non-deleted record belonging to this device. A per-record failure is
// logged and does not stop the pass.
func Refresh(cfg archiver.Config, locator *device.Locator, confirmer confirm.UserConfirm, logger *slog.Logger, devicePath string) ([]RefreshResult, error) {
	logger = logging.Default(logger).With("component", "pipeline.refresh")

	destUUID, root, err := locator.Resolve(devicePath)
	if err != nil {
		return nil, err
	}

	homeSide := sidePaths{bookPath: homeBookPath(cfg), sumPath: homeSumPath(cfg)}
	deviceSide := sidePaths{bookPath: deviceBookPath(root), sumPath: deviceSumPath(root)}

	homeBook, deviceBook, err := reconcileBooks(homeSide, deviceSide, false, confirmer, logger)
	if err != nil {
		return nil, err
	}
	homeBook.Merge(deviceBook)
	if err := homeBook.Write(homeSide.bookPath, homeSide.sumPath); err != nil {
		return nil, err
	}

	var results []RefreshResult
	for _, r := range homeBook.Records() {
		if r.Deleted || r.DestinationUUID != destUUID.String() {
			continue
		}

		backup := filepath.Join(root, r.FileName)
		tmpDestination := backup + ".rec"
		eccPath := deviceECCPath(root, r.Checksum)

		err := recoverInto(r, backup, tmpDestination, eccPath, logger)
		if err == nil {
			if renameErr := os.Rename(tmpDestination, backup); renameErr != nil {
				err = renameErr
			}
		}
		if err == nil {
			logger.Debug("refresh: record verified", "file", r.FileName)
		} else {
			logger.Error("refresh: record failed", "file", r.FileName, "error", err)
		}
		results = append(results, RefreshResult{Record: r, Err: err})
	}

	return results, nil
}
