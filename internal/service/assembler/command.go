package assembler

import (
	"context"
	"errors"
	"fmt"

	"github.com/oshokin/dmg-builder/internal/config"
	"github.com/oshokin/dmg-builder/internal/logger"
)

// Options contains inputs for the CLI entry point.
type Options struct {
	// Config is the fully resolved configuration (file, flags and defaults).
	Config *config.Config
	// Extra customizes the Assembler, tests use it to inject a runner.
	Extra []Option
}

var errOptionsNotSet = errors.New("options are not set")

// Run builds the installer image described by opts and logs the outcome.
func Run(ctx context.Context, opts *Options) error {
	if opts == nil {
		return errOptionsNotSet
	}

	ctx = logger.WithName(ctx, "dmg-builder")

	asm, err := New(opts.Config, opts.Extra...)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Creating installer image",
		"source", asm.cfg.SourceBundlePath(),
		"output", asm.cfg.OutputPath(),
	)

	report, err := asm.Assemble(ctx)
	if err != nil {
		return fmt.Errorf("assemble %s: %w", asm.cfg.OutputPath(), err)
	}

	logger.InfoKV(ctx, "Build complete, ready to release", "image", report.OutputPath, "size", report.HumanSize)

	return nil
}
