//go:build darwin

package integration

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/dmg-builder/internal/config"
	"github.com/oshokin/dmg-builder/internal/process"
	"github.com/oshokin/dmg-builder/internal/service/assembler"
)

// TestAssemble_RealHdiutil builds and verifies a real image from a tiny bundle.
func TestAssemble_RealHdiutil(t *testing.T) {
	if _, err := exec.LookPath("hdiutil"); err != nil {
		t.Skip("hdiutil is not available")
	}

	root := t.TempDir()
	bundle := filepath.Join(root, config.ExportDir, "Messenger.app", "Contents")

	require.NoError(t, os.MkdirAll(filepath.Join(bundle, "MacOS"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(bundle, "Resources"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bundle, "MacOS", "Messenger"), []byte("#!/bin/sh\nexit 0\n"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bundle, "Resources", "AppIcon.icns"), make([]byte, 10*1024), 0o644))

	cfg := &config.Config{
		AppName:   "Messenger",
		Version:   "1.0",
		BuildRoot: root,
		Verify:    true,
		Checksum:  true,
	}

	asm, err := assembler.New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Run twice: the second run starts over the image left by the first.
	for i := 0; i < 2; i++ {
		report, err := asm.Assemble(ctx)
		require.NoError(t, err)
		require.True(t, report.Verified)
		require.Positive(t, report.Size)
		require.NotEmpty(t, report.Checksum)
		require.NoDirExists(t, filepath.Join(root, config.DefaultStagingDir))
	}

	// The image must be readable by the tool that made it.
	result, err := process.NewExecRunner().Run(ctx, "hdiutil", "imageinfo", filepath.Join(root, "Messenger-1.0.dmg"))
	require.NoError(t, err)
	require.True(t, result.Success(), result.Diagnostic())
}
