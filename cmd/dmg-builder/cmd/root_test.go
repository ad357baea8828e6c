package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/dmg-builder/internal/config"
)

// execute runs the root command with args after restoring every flag to its default.
func execute(t *testing.T, args ...string) error {
	t.Helper()

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		require.NoError(t, f.Value.Set(f.DefValue))
		f.Changed = false
	})

	rootCmd.SetArgs(args)

	return rootCmd.Execute()
}

// TestInitConfigFromFlags writes flag values and derives the product name from the app name.
func TestInitConfigFromFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	err := execute(t, "init-config", path, "--app-name", "Notes", "--build-root", dir, "--verify")
	require.NoError(t, err)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "Notes", cfg.AppName)
	require.Equal(t, "Notes", cfg.ProductName)
	require.Equal(t, config.DefaultVersion, cfg.Version)
	require.Equal(t, dir, cfg.BuildRoot)
	require.True(t, cfg.Verify)
}

// TestInitConfigFlagsOverrideFile keeps file values that no flag touches.
func TestInitConfigFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "in.yaml")
	target := filepath.Join(dir, "out.yaml")

	require.NoError(t, os.WriteFile(source, []byte("app_name: Chat\nproduct_name: ChatPro\nformat: ULFO\n"), 0o600))

	err := execute(t, "init-config", target, "--config", source, "--version-label", "3.0", "--app-name", "Talk")
	require.NoError(t, err)

	cfg, err := config.Load(target)
	require.NoError(t, err)
	require.Equal(t, "Talk", cfg.AppName)
	require.Equal(t, "ChatPro", cfg.ProductName)
	require.Equal(t, "3.0", cfg.Version)
	require.Equal(t, "ULFO", cfg.Format)
}

// TestInitConfigDerivesProductFromOverriddenApp follows --app-name when the
// file leaves product_name unset.
func TestInitConfigDerivesProductFromOverriddenApp(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "in.yaml")
	target := filepath.Join(dir, "out.yaml")

	require.NoError(t, os.WriteFile(source, []byte("app_name: Notes\n"), 0o600))

	err := execute(t, "init-config", target, "--config", source, "--app-name", "Talk")
	require.NoError(t, err)

	cfg, err := config.Load(target)
	require.NoError(t, err)
	require.Equal(t, "Talk", cfg.AppName)
	require.Equal(t, "Talk", cfg.ProductName)
}

// TestRootRejectsBadInput covers an unknown log level, a bad format, an unsafe
// staging folder and a missing bundle.
func TestRootRejectsBadInput(t *testing.T) {
	dir := t.TempDir()

	require.ErrorContains(t, execute(t, "--log-level", "loud"), "unknown log level")
	require.ErrorContains(t, execute(t, "--build-root", dir, "--format", "UDRW"), "unsupported image format")
	require.ErrorContains(t, execute(t, "--build-root", dir, "--staging-dir", "."), "staging folder overlaps")
	require.ErrorContains(t, execute(t, "--build-root", dir), "application bundle not found")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}
