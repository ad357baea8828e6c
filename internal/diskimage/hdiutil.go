package diskimage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/oshokin/dmg-builder/internal/logger"
	"github.com/oshokin/dmg-builder/internal/process"
)

const (
	// DefaultTool is the disk image utility looked up on PATH.
	DefaultTool = "hdiutil"

	// DefaultFormat is the compressed read-only (zlib) image format.
	DefaultFormat = "UDZO"
)

// ErrToolFailed is the sentinel matched by every ToolError.
var ErrToolFailed = errors.New("disk image tool failed")

// supportedFormats lists the compressed read-only formats hdiutil can produce.
//
//nolint:gochecknoglobals // Read-only lookup table.
var supportedFormats = []string{DefaultFormat, "UDBZ", "ULFO", "ULMO"}

// SupportedFormats returns the image formats accepted by Create.
func SupportedFormats() []string {
	return slices.Clone(supportedFormats)
}

// IsSupportedFormat reports whether format is a compressed read-only format.
func IsSupportedFormat(format string) bool {
	return slices.Contains(supportedFormats, format)
}

// ToolError describes a non-zero exit of the disk image utility.
type ToolError struct {
	// Command is the hdiutil verb that failed (create, verify).
	Command string
	// ExitCode is the exit status reported by the process.
	ExitCode int
	// Diagnostic is the captured stderr, or stdout when stderr was empty.
	Diagnostic string
}

// Error implements error.
func (e *ToolError) Error() string {
	return fmt.Sprintf("hdiutil %s exited with status %d: %s", e.Command, e.ExitCode, e.Diagnostic)
}

// Unwrap lets errors.Is match ErrToolFailed.
func (e *ToolError) Unwrap() error {
	return ErrToolFailed
}

// CreateRequest describes one image to build.
type CreateRequest struct {
	// VolumeName is the label shown when the image is mounted.
	VolumeName string
	// SourceFolder is the directory whose contents become the volume.
	SourceFolder string
	// Format is the output format, DefaultFormat if empty.
	Format string
	// OutputPath is the destination .dmg file.
	OutputPath string
}

// CreateArgs returns the hdiutil arguments for req.
func CreateArgs(req *CreateRequest) []string {
	format := req.Format
	if format == "" {
		format = DefaultFormat
	}

	return []string{
		"create",
		"-volname", req.VolumeName,
		"-srcfolder", req.SourceFolder,
		"-ov",
		"-format", format,
		req.OutputPath,
	}
}

// Builder runs hdiutil through a process.Runner.
type Builder struct {
	runner process.Runner
	tool   string
}

// NewBuilder returns a Builder invoking tool (DefaultTool if empty) via runner.
func NewBuilder(runner process.Runner, tool string) *Builder {
	if tool == "" {
		tool = DefaultTool
	}

	return &Builder{
		runner: runner,
		tool:   tool,
	}
}

// Create builds the image described by req.
func (b *Builder) Create(ctx context.Context, req *CreateRequest) error {
	result, err := b.run(ctx, "create", CreateArgs(req)...)
	if err != nil {
		return err
	}

	if out := strings.TrimSpace(string(result.Stdout)); out != "" {
		logger.Info(ctx, out)
	}

	return nil
}

// Verify checks the internal checksum of an existing image.
func (b *Builder) Verify(ctx context.Context, path string) error {
	_, err := b.run(ctx, "verify", "verify", path)
	return err
}

func (b *Builder) run(ctx context.Context, verb string, args ...string) (*process.Result, error) {
	logger.DebugKV(ctx, "Running disk image tool", "tool", b.tool, "args", args)

	result, err := b.runner.Run(ctx, b.tool, args...)
	if err != nil {
		return nil, fmt.Errorf("hdiutil %s: %w", verb, err)
	}

	if !result.Success() {
		return result, &ToolError{
			Command:    verb,
			ExitCode:   result.ExitCode,
			Diagnostic: result.Diagnostic(),
		}
	}

	return result, nil
}
