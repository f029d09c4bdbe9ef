package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/marceloslacerda/ltarchiver/internal/confirm"
	"github.com/marceloslacerda/ltarchiver/internal/digest"
	"github.com/marceloslacerda/ltarchiver/internal/reconcile"
	"github.com/marceloslacerda/ltarchiver/internal/recordbook"
)

// sidePaths names one side's recordbook/checksum pair.
type sidePaths struct {
	bookPath string
	sumPath  string
}

// reconcileBooks brings home and device into agreement per §4.6, executes
// the resulting Action (copying files, prompting the user, or recomputing a
// checksum sidecar as needed), and returns both sides loaded from disk
// afterward. firstTimeOK permits StorePipeline's first-ever store to
// proceed with empty books when neither side has one yet.
func reconcileBooks(home, device sidePaths, firstTimeOK bool, confirmer confirm.UserConfirm, logger *slog.Logger) (*recordbook.Recordbook, *recordbook.Recordbook, error) {
	homeStatus, err := recordbook.ValidateChecksum(home.bookPath, home.sumPath)
	if err != nil {
		return nil, nil, err
	}
	deviceStatus, err := recordbook.ValidateChecksum(device.bookPath, device.sumPath)
	if err != nil {
		return nil, nil, err
	}

	input := reconcile.Input{Home: homeStatus, Device: deviceStatus, FirstTimeOK: firstTimeOK}
	if homeStatus == recordbook.Valid && deviceStatus == recordbook.Valid {
		if input.HomeDigest, err = digest.Of(home.bookPath); err != nil {
			return nil, nil, err
		}
		if input.DeviceDigest, err = digest.Of(device.bookPath); err != nil {
			return nil, nil, err
		}
	}

	action := reconcile.Plan(input)
	logger.Debug("reconciliation decision", "home", homeStatus, "device", deviceStatus, "action", action.Kind, "variant", action.Variant)

	if err := executeAction(action, home, device, confirmer); err != nil {
		return nil, nil, err
	}

	homeBook, err := loadOrEmpty(home.bookPath)
	if err != nil {
		return nil, nil, err
	}
	deviceBook, err := loadOrEmpty(device.bookPath)
	if err != nil {
		return nil, nil, err
	}
	return homeBook, deviceBook, nil
}

func executeAction(action reconcile.Action, home, device sidePaths, confirmer confirm.UserConfirm) error {
	switch action.Kind {
	case reconcile.NoOp:
		return nil

	case reconcile.CopyHomeToDevice:
		return copySide(home, device)

	case reconcile.CopyDeviceToHome:
		return copySide(device, home)

	case reconcile.Fail:
		return fmt.Errorf("%w: %s", ErrNoRecordbook, action.FailReason)

	case reconcile.Prompt:
		return executePrompt(action.Variant, home, device, confirmer)

	default:
		return fmt.Errorf("pipeline: unknown reconciliation action kind %v", action.Kind)
	}
}

func executePrompt(variant reconcile.Variant, home, device sidePaths, confirmer confirm.UserConfirm) error {
	switch variant {
	case reconcile.RecomputeDeviceChecksum:
		ans, err := confirmer.Confirm("device recordbook has no checksum file; recompute it from the device file as-is?")
		if err != nil {
			return err
		}
		if ans != confirm.Yes {
			return fmt.Errorf("%w: declined to recompute device checksum", ErrUserAborted)
		}
		return writeChecksumFor(device.bookPath, device.sumPath)

	case reconcile.RecomputeHomeChecksum:
		ans, err := confirmer.Confirm("home recordbook has no checksum file; recompute it from the home file as-is?")
		if err != nil {
			return err
		}
		if ans != confirm.Yes {
			return fmt.Errorf("%w: declined to recompute home checksum", ErrUserAborted)
		}
		return writeChecksumFor(home.bookPath, home.sumPath)

	case reconcile.OverwriteDeviceWithHome:
		ans, err := confirmer.Confirm("device recordbook checksum does not match its file; overwrite device with home?")
		if err != nil {
			return err
		}
		if ans != confirm.Yes {
			return fmt.Errorf("%w: declined to overwrite device recordbook", ErrUserAborted)
		}
		return copySide(home, device)

	case reconcile.OverwriteHomeWithDevice:
		ans, err := confirmer.Confirm("home recordbook checksum does not match its file; overwrite home with device?")
		if err != nil {
			return err
		}
		if ans != confirm.Yes {
			return fmt.Errorf("%w: declined to overwrite home recordbook", ErrUserAborted)
		}
		return copySide(device, home)

	case reconcile.DiffConflict:
		choice, err := confirmer.Menu("home and device recordbooks differ", []confirm.Option{
			{Key: "home", Label: "keep home, overwrite device"},
			{Key: "device", Label: "keep device, overwrite home"},
		})
		if err != nil {
			return err
		}
		switch choice {
		case "home":
			return copySide(home, device)
		case "device":
			return copySide(device, home)
		default:
			return fmt.Errorf("%w: unrecognized reconciliation choice %q", ErrUserAborted, choice)
		}

	case reconcile.BothInvalidMenu:
		choice, err := confirmer.Menu("neither recordbook is valid", []confirm.Option{
			{Key: "show-home", Label: "show home recordbook"},
			{Key: "show-device", Label: "show device recordbook"},
			{Key: "overwrite-both-checksums", Label: "recompute both checksum sidecars as-is"},
			{Key: "abort", Label: "abort"},
		})
		if err != nil {
			return err
		}
		switch choice {
		case "overwrite-both-checksums":
			if err := writeChecksumFor(home.bookPath, home.sumPath); err != nil {
				return err
			}
			return writeChecksumFor(device.bookPath, device.sumPath)
		default:
			return fmt.Errorf("%w: no silent recovery for conflicting recordbooks", ErrUserAborted)
		}

	default:
		return fmt.Errorf("pipeline: unknown prompt variant %q", variant)
	}
}

func copySide(src, dst sidePaths) error {
	if err := copyFile(src.bookPath, dst.bookPath); err != nil {
		return err
	}
	return copyFile(src.sumPath, dst.sumPath)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("pipeline: open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("pipeline: create directory for %s: %w", dst, err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("pipeline: create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("pipeline: copy %s to %s: %w", src, dst, err)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return fmt.Errorf("pipeline: fsync %s: %w", dst, err)
	}
	return out.Close()
}

func writeChecksumFor(bookPath, sumPath string) error {
	sum, err := digest.Of(bookPath)
	if err != nil {
		return err
	}
	line := fmt.Sprintf("%s  %s\n", sum, bookPath)
	if err := os.WriteFile(sumPath, []byte(line), 0o644); err != nil {
		return fmt.Errorf("pipeline: write checksum %s: %w", sumPath, err)
	}
	return nil
}

func loadOrEmpty(path string) (*recordbook.Recordbook, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return recordbook.New(), nil
		}
		return nil, fmt.Errorf("pipeline: stat %s: %w", path, err)
	}
	return recordbook.Load(path)
}
