// Command ltarchiver archives files onto removable media with error-
// correcting parity and a reconciled catalog of what went where.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"

	"github.com/marceloslacerda/ltarchiver/internal/archiver"
	"github.com/marceloslacerda/ltarchiver/internal/confirm"
	"github.com/marceloslacerda/ltarchiver/internal/device"
	"github.com/marceloslacerda/ltarchiver/internal/home"
	"github.com/marceloslacerda/ltarchiver/internal/logging"
	"github.com/marceloslacerda/ltarchiver/internal/pipeline"
)

var version = "dev"

func main() {
	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	filterHandler := logging.NewComponentFilterHandler(baseHandler, slog.LevelInfo)
	logger := slog.New(filterHandler)

	rootCmd := &cobra.Command{
		Use:   "ltarchiver",
		Short: "Cold-storage file archiver with error-correcting parity",
	}
	rootCmd.PersistentFlags().String("home", "", "home recordbook directory (default: platform config dir)")
	rootCmd.PersistentFlags().Bool("non-interactive", false, "never prompt; abort instead (for cron/unattended runs)")

	rootCmd.AddCommand(
		newStoreCmd(logger),
		newCheckAndRestoreCmd(logger),
		newRefreshCmd(logger),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}

func newStoreCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store <source>... <destination>",
		Short: "Archive one or more files onto a device, expanding glob sources",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, confirmer, err := resolveRunConfig(cmd)
			if err != nil {
				return err
			}

			sources := args[:len(args)-1]
			destination := args[len(args)-1]

			locator := device.NewLocator(device.NewLinuxTable(), logger)

			paths, err := expandSources(sources)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				return errors.New("store: no source files matched")
			}

			for _, src := range paths {
				archivePath := src
				cleanup := func() {}

				info, statErr := os.Stat(src)
				if statErr != nil {
					return fmt.Errorf("store: %s: %w", src, statErr)
				}
				if info.IsDir() {
					tarPath, tarErr := tarDirectory(src)
					if tarErr != nil {
						return tarErr
					}
					archivePath = tarPath
					cleanup = func() { _ = os.Remove(tarPath) }
				}

				rec, storeErr := pipeline.Store(cfg, locator, confirmer, logger, archivePath, destination)
				cleanup()
				if storeErr != nil {
					return fmt.Errorf("store: %s: %w", src, storeErr)
				}
				fmt.Printf("stored %s (checksum %s)\n", rec.FileName, rec.Checksum)
			}
			return nil
		},
	}
	return cmd
}

func newCheckAndRestoreCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "check-and-restore <backup_file> <destination>",
		Short: "Verify an archived file, recovering it from parity if damaged",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, confirmer, err := resolveRunConfig(cmd)
			if err != nil {
				return err
			}
			locator := device.NewLocator(device.NewLinuxTable(), logger)
			if err := pipeline.Restore(cfg, locator, confirmer, logger, args[0], args[1]); err != nil {
				return fmt.Errorf("check-and-restore: %w", err)
			}
			fmt.Printf("restored %s\n", args[1])
			return nil
		},
	}
}

func newRefreshCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh <device_path>",
		Short: "Re-verify and repair every archived file belonging to a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, confirmer, err := resolveRunConfig(cmd)
			if err != nil {
				return err
			}
			daemon, _ := cmd.Flags().GetBool("daemon")
			every, _ := cmd.Flags().GetDuration("every")
			locator := device.NewLocator(device.NewLinuxTable(), logger)

			if !daemon {
				return runRefreshOnce(cfg, locator, confirmer, logger, args[0])
			}
			return runRefreshDaemon(cfg, locator, confirmer, logger, args[0], every)
		},
	}
	cmd.Flags().Bool("daemon", false, "run refresh on a recurring schedule instead of once")
	cmd.Flags().Duration("every", 24*time.Hour, "interval between scheduled refresh passes (with --daemon)")
	return cmd
}

func runRefreshOnce(cfg archiver.Config, locator *device.Locator, confirmer confirm.UserConfirm, logger *slog.Logger, devicePath string) error {
	results, err := pipeline.Refresh(cfg, locator, confirmer, logger, devicePath)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	failures := 0
	for _, r := range results {
		if r.Err != nil {
			failures++
			fmt.Printf("refresh: %s: %v\n", r.Record.FileName, r.Err)
		}
	}
	fmt.Printf("refresh: checked %d record(s), %d failure(s)\n", len(results), failures)
	return nil
}

func runRefreshDaemon(cfg archiver.Config, locator *device.Locator, confirmer confirm.UserConfirm, logger *slog.Logger, devicePath string, every time.Duration) error {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("refresh --daemon: create scheduler: %w", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			if runErr := runRefreshOnce(cfg, locator, confirmer, logger, devicePath); runErr != nil {
				logger.Error("scheduled refresh failed", "error", runErr)
			}
		}),
		gocron.WithName("refresh:"+devicePath),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("refresh --daemon: schedule job: %w", err)
	}

	logger.Info("refresh daemon starting", "device", devicePath, "every", every)
	scheduler.Start()
	select {}
}

// resolveRunConfig builds the immutable archiver.Config and UserConfirm
// implementation for one CLI invocation. DEBUG=1 is the only place the
// environment is consulted; everything downstream receives an explicit
// value.
func resolveRunConfig(cmd *cobra.Command) (archiver.Config, confirm.UserConfirm, error) {
	homeFlag, _ := cmd.Flags().GetString("home")
	nonInteractive, _ := cmd.Flags().GetBool("non-interactive")

	homeRoot := homeFlag
	if homeRoot == "" {
		if os.Getenv("DEBUG") == "1" {
			homeRoot = "./test_data/.ltarchiver"
		} else {
			hd, err := home.Default()
			if err != nil {
				return archiver.Config{}, nil, fmt.Errorf("resolve home directory: %w", err)
			}
			homeRoot = hd.Root()
		}
	}
	if err := home.New(homeRoot).EnsureExists(); err != nil {
		return archiver.Config{}, nil, err
	}

	cfg := archiver.Default(homeRoot)
	cfg.NonInteractive = nonInteractive || os.Getenv("DEBUG") == "1"

	var confirmer confirm.UserConfirm
	if cfg.NonInteractive {
		confirmer = confirm.NonInteractive{}
	} else {
		confirmer = confirm.NewTerminal(os.Stdin, os.Stdout)
	}
	return cfg, confirmer, nil
}

// expandSources resolves each source argument as a doublestar glob pattern,
// so callers on shells without native globbing (or scripted invocations
// wanting literal pattern arguments) still get multi-file store semantics.
func expandSources(sources []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, pattern := range sources {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("store: invalid glob %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			if _, statErr := os.Stat(pattern); statErr == nil {
				matches = []string{pattern}
			}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	return out, nil
}

// tarDirectory archives dir into a temp file so StorePipeline can treat it
// as a single regular file, per the directory-tarring pre-step spec.md's
// Non-goals keep out of pipeline.Store itself. The caller removes the temp
// file once pipeline.Store has consumed it.
func tarDirectory(dir string) (string, error) {
	tmp, err := os.CreateTemp("", "ltarchiver-dir-*.tar")
	if err != nil {
		return "", fmt.Errorf("tar %s: create temp file: %w", dir, err)
	}
	defer func() { _ = tmp.Close() }()

	tw := tar.NewWriter(tmp)
	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		header.Name = filepath.Join(filepath.Base(dir), rel)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		_, err = io.Copy(tw, f)
		return err
	})
	if walkErr != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("tar %s: %w", dir, walkErr)
	}
	if err := tw.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("tar %s: close archive: %w", dir, err)
	}
	return tmp.Name(), nil
}
