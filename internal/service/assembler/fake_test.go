package assembler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/dmg-builder/internal/config"
	"github.com/oshokin/dmg-builder/internal/process"
)

// fakeHdiutil stands in for the disk image utility. Instead of an image it
// writes a manifest of the staged folder, so tests can inspect what was staged.
type fakeHdiutil struct {
	calls        [][]string
	createExit   int
	createStderr string
	verifyExit   int
	startErr     error
}

func (f *fakeHdiutil) Run(_ context.Context, name string, args ...string) (*process.Result, error) {
	f.calls = append(f.calls, append([]string{name}, args...))

	if f.startErr != nil {
		return nil, f.startErr
	}

	switch args[0] {
	case "create":
		return f.create(args), nil
	case "verify":
		if f.verifyExit != 0 {
			return &process.Result{ExitCode: f.verifyExit, Stderr: []byte("hdiutil: verify failed - checksum mismatch")}, nil
		}

		return &process.Result{Stdout: []byte("checksum is VALID\n")}, nil
	default:
		return &process.Result{ExitCode: 1, Stderr: []byte("unknown verb " + args[0])}, nil
	}
}

func (f *fakeHdiutil) create(args []string) *process.Result {
	if f.createExit != 0 {
		return &process.Result{ExitCode: f.createExit, Stderr: []byte(f.createStderr)}
	}

	var source string

	for i := range args {
		if args[i] == "-srcfolder" && i+1 < len(args) {
			source = args[i+1]
		}
	}

	output := args[len(args)-1]

	manifest, err := describeTree(source)
	if err != nil {
		return &process.Result{ExitCode: 1, Stderr: []byte("hdiutil: create failed - " + err.Error())}
	}

	if err = os.WriteFile(output, manifest, 0o644); err != nil {
		return &process.Result{ExitCode: 1, Stderr: []byte("hdiutil: create failed - " + err.Error())}
	}

	return &process.Result{Stdout: []byte("created: " + output + "\n")}
}

// describeTree lists every entry below root with its mode, size and content digest.
func describeTree(root string) ([]byte, error) {
	var b strings.Builder

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(path)
			if err != nil {
				return err
			}

			fmt.Fprintf(&b, "%s -> %s\n", rel, target)
		case info.IsDir():
			fmt.Fprintf(&b, "%s %s\n", rel, info.Mode())
		default:
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			sum := sha256.Sum256(data)
			fmt.Fprintf(&b, "%s %s %d %s\n", rel, info.Mode(), info.Size(), hex.EncodeToString(sum[:]))
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	if b.Len() == 0 {
		return nil, errors.New("source folder is empty")
	}

	return []byte(b.String()), nil
}

// newBuildRoot exports a small Messenger.app into a fresh build root.
func newBuildRoot(t *testing.T) *config.Config {
	t.Helper()

	root := t.TempDir()
	bundle := filepath.Join(root, config.ExportDir, "Messenger.app")

	macOS := filepath.Join(bundle, "Contents", "MacOS")
	resources := filepath.Join(bundle, "Contents", "Resources")

	require.NoError(t, os.MkdirAll(macOS, 0o755))
	require.NoError(t, os.MkdirAll(resources, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(macOS, "Messenger"), []byte("#!/bin/sh\necho messenger\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(resources, "AppIcon.icns"), make([]byte, 10*1024), 0o644))

	return &config.Config{
		AppName:   "Messenger",
		Version:   "1.0",
		BuildRoot: root,
	}
}

// resolved returns cfg with defaults applied, for computing expected paths.
func resolved(t *testing.T, cfg *config.Config) *config.Config {
	t.Helper()

	own := *cfg
	require.NoError(t, config.Validate(&own))

	return &own
}
