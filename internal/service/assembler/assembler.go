package assembler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/dmg-builder/internal/config"
	"github.com/oshokin/dmg-builder/internal/diskimage"
	"github.com/oshokin/dmg-builder/internal/logger"
	"github.com/oshokin/dmg-builder/internal/process"
	"github.com/oshokin/dmg-builder/internal/runlock"
	"github.com/oshokin/dmg-builder/internal/staging"
)

// shortcutName is the label of the drag target inside the image.
const shortcutName = "Applications"

var (
	// errConfigIsNotSet is returned when New receives a nil configuration.
	errConfigIsNotSet = errors.New("configuration is not set")
	// ErrSourceMissing is returned when the exported bundle does not exist.
	ErrSourceMissing = errors.New("application bundle not found")
	// errSourceNotDirectory is returned when the bundle path is a regular file.
	errSourceNotDirectory = errors.New("application bundle is not a directory")
)

// Assembler builds one installer image from one configuration.
// It keeps no state between runs; runs sharing a build root must not overlap.
type Assembler struct {
	cfg     *config.Config
	builder *diskimage.Builder
}

// Option customizes an Assembler.
type Option func(*assemblerOptions)

type assemblerOptions struct {
	runner process.Runner
}

// WithRunner replaces the subprocess runner used to call hdiutil.
func WithRunner(runner process.Runner) Option {
	return func(o *assemblerOptions) {
		o.runner = runner
	}
}

// New validates a copy of cfg and returns an Assembler for it.
func New(cfg *config.Config, opts ...Option) (*Assembler, error) {
	if cfg == nil {
		return nil, errConfigIsNotSet
	}

	own := *cfg
	if err := config.Validate(&own); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	options := &assemblerOptions{runner: process.NewExecRunner()}
	for _, opt := range opts {
		opt(options)
	}

	return &Assembler{
		cfg:     &own,
		builder: diskimage.NewBuilder(options.runner, own.HdiutilPath),
	}, nil
}

// Assemble runs the pipeline once. A nil error means the image was written.
// The report is returned in both cases and lists the steps that ran.
func (a *Assembler) Assemble(ctx context.Context) (*Report, error) {
	ctx = logger.WithKV(ctx, "bundle", a.cfg.BundleName())

	report := &Report{OutputPath: a.cfg.OutputPath()}

	report.enter(StepCheckSource)

	if err := a.checkSource(); err != nil {
		return report, err
	}

	lock, err := runlock.Acquire(ctx, a.cfg.LockPath())
	if err != nil {
		return report, fmt.Errorf("acquire run lock: %w", err)
	}

	defer a.cleanup(ctx, report, lock)

	steps := []struct {
		step Step
		run  func(context.Context, *Report) error
	}{
		{StepResetStaging, a.resetStaging},
		{StepCopyBundle, a.copyBundle},
		{StepLinkShortcut, a.linkShortcut},
		{StepResetOutput, a.resetOutput},
		{StepCreateImage, a.createImage},
		{StepReportSize, a.reportSize},
	}

	for _, s := range steps {
		report.enter(s.step)

		if err = s.run(ctx, report); err != nil {
			return report, fmt.Errorf("%s: %w", s.step, err)
		}
	}

	return report, nil
}

// checkSource makes sure the exported bundle is present. It never writes.
func (a *Assembler) checkSource() error {
	path := a.cfg.SourceBundlePath()

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: expected at %s: %w", a.cfg.BundleName(), path, ErrSourceMissing)
	}

	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%s: %w", path, errSourceNotDirectory)
	}

	return nil
}

func (a *Assembler) resetStaging(ctx context.Context, _ *Report) error {
	logger.InfoKV(ctx, "Preparing staging folder", "path", a.cfg.StagingPath())

	return staging.Reset(a.cfg.StagingPath())
}

func (a *Assembler) copyBundle(ctx context.Context, _ *Report) error {
	logger.Info(ctx, "Copying app to the image folder")

	dest := filepath.Join(a.cfg.StagingPath(), a.cfg.BundleName())

	return staging.CopyTree(a.cfg.SourceBundlePath(), dest)
}

func (a *Assembler) linkShortcut(ctx context.Context, _ *Report) error {
	logger.InfoKV(ctx, "Creating Applications shortcut", "target", a.cfg.ApplicationsDir)

	return staging.Link(a.cfg.StagingPath(), shortcutName, a.cfg.ApplicationsDir)
}

// resetOutput deletes the previous image and makes sure its folder exists.
// A run failing after this point leaves no image at the output path.
func (a *Assembler) resetOutput(ctx context.Context, report *Report) error {
	if err := staging.RemoveFile(report.OutputPath); err != nil {
		return err
	}

	dir := filepath.Dir(report.OutputPath)
	if err := os.MkdirAll(dir, staging.DirMode); err != nil {
		return fmt.Errorf("create output folder: %w", err)
	}

	logger.DebugKV(ctx, "Output path is clear", "path", report.OutputPath)

	return nil
}

func (a *Assembler) createImage(ctx context.Context, report *Report) error {
	logger.InfoKV(ctx, "Creating disk image", "volume", a.cfg.VolumeLabel(), "format", a.cfg.Format)

	err := a.builder.Create(ctx, &diskimage.CreateRequest{
		VolumeName:   a.cfg.VolumeLabel(),
		SourceFolder: a.cfg.StagingPath(),
		Format:       a.cfg.Format,
		OutputPath:   report.OutputPath,
	})
	if err != nil {
		return err
	}

	if !a.cfg.Verify {
		return nil
	}

	logger.Info(ctx, "Verifying disk image")

	if err = a.builder.Verify(ctx, report.OutputPath); err != nil {
		return err
	}

	report.Verified = true

	return nil
}

func (a *Assembler) reportSize(ctx context.Context, report *Report) error {
	info, err := os.Stat(report.OutputPath)
	if err != nil {
		return fmt.Errorf("stat image: %w", err)
	}

	report.Size = info.Size()
	report.HumanSize = FormatSize(report.Size)

	if a.cfg.Checksum {
		if report.Checksum, err = diskimage.Checksum(report.OutputPath); err != nil {
			return err
		}
	}

	logger.InfoKV(ctx, "Disk image created successfully",
		"location", report.OutputPath,
		"size", report.HumanSize,
	)

	if report.Checksum != "" {
		logger.InfoKV(ctx, "Disk image checksum", "sha512", report.Checksum)
	}

	return nil
}

// cleanup removes the staging folder and releases the run marker.
// Failures are logged and never change the outcome of the run.
func (a *Assembler) cleanup(ctx context.Context, report *Report, lock *runlock.Lock) {
	report.enter(StepCleanup)

	logger.Info(ctx, "Cleaning up temporary files")

	if err := staging.Remove(a.cfg.StagingPath()); err != nil {
		logger.WarnKV(ctx, "Unable to remove staging folder", "error", err)
	}

	if err := lock.Release(); err != nil {
		logger.WarnKV(ctx, "Unable to release run marker", "error", err)
	}
}
