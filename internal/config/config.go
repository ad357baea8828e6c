package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/dmg-builder/internal/diskimage"
	"github.com/oshokin/dmg-builder/internal/runlock"
)

// Config describes one installer image: what to package and where to put it.
type Config struct {
	// AppName is the bundle to stage, without the .app suffix.
	AppName string `yaml:"app_name"`
	// ProductName prefixes the volume label and the image filename.
	ProductName string `yaml:"product_name"`
	// Version is the label and filename suffix.
	Version string `yaml:"version"`
	// BuildRoot is the base directory for every derived path.
	BuildRoot string `yaml:"build_root"`
	// OutputDir receives the image; BuildRoot when empty.
	OutputDir string `yaml:"output_dir,omitempty"`
	// StagingDir is the transient folder, relative to BuildRoot unless absolute.
	StagingDir string `yaml:"staging_dir,omitempty"`
	// VolumeName overrides the "<product> <version>" volume label.
	VolumeName string `yaml:"volume_name,omitempty"`
	// Format is the hdiutil image format.
	Format string `yaml:"format,omitempty"`
	// HdiutilPath is the disk image utility to run.
	HdiutilPath string `yaml:"hdiutil_path,omitempty"`
	// ApplicationsDir is the target of the drag-and-drop shortcut.
	ApplicationsDir string `yaml:"applications_dir,omitempty"`
	// Verify runs `hdiutil verify` on the finished image.
	Verify bool `yaml:"verify,omitempty"`
	// Checksum computes and logs a SHA-512 digest of the finished image.
	Checksum bool `yaml:"checksum,omitempty"`
}

const (
	// DefaultConfigFilename is the file written by init-config.
	DefaultConfigFilename = "dmg-builder.yaml"

	// DefaultAppName is the bundle packaged when nothing else is configured.
	DefaultAppName = "Messenger"

	// DefaultVersion is the product version label.
	DefaultVersion = "1.0"

	// DefaultBuildRoot holds the exported bundle and receives the image.
	DefaultBuildRoot = "build"

	// DefaultStagingDir is the staging folder name inside the build root.
	DefaultStagingDir = "dmg_source"

	// DefaultApplicationsDir is the system applications folder.
	DefaultApplicationsDir = "/Applications"

	// ExportDir is the build root subfolder holding the exported bundle.
	ExportDir = "Export"

	// BundleExtension is the suffix of an application bundle directory.
	BundleExtension = ".app"

	// ImageExtension is the suffix of the produced disk image.
	ImageExtension = ".dmg"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errInvalidName is returned for names that cannot be used as a path element.
	errInvalidName = errors.New("must be a single path element")
	// errUnsupportedFormat is returned for image formats other than compressed read-only ones.
	errUnsupportedFormat = errors.New("unsupported image format")
	// errOverlappingPaths is returned when removing the staging folder would delete inputs or outputs.
	errOverlappingPaths = errors.New("staging folder overlaps another path")
)

// Default returns the configuration used when no file or flag says otherwise.
func Default() *Config {
	cfg := new(Config)
	applyDefaults(cfg)

	return cfg
}

// Load reads configuration from path and validates it; Validate fills in unset keys.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	// Unset keys stay empty so Validate derives them from the file's values.
	cfg := new(Config)
	if err := yaml.Unmarshal(contents, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills in defaults for empty fields and checks the rest.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	applyDefaults(cfg)

	for field, value := range map[string]string{
		"app_name":     cfg.AppName,
		"product_name": cfg.ProductName,
		"version":      cfg.Version,
	} {
		if err := checkPathElement(value); err != nil {
			return fmt.Errorf("%s %q: %w", field, value, err)
		}
	}

	if !diskimage.IsSupportedFormat(cfg.Format) {
		return fmt.Errorf("%s (want one of %s): %w",
			cfg.Format, strings.Join(diskimage.SupportedFormats(), ", "), errUnsupportedFormat)
	}

	return checkLayout(cfg)
}

// checkLayout keeps the staging folder, which is deleted on every run, away
// from the build root, the source bundle and the output image.
func checkLayout(cfg *Config) error {
	paths := make(map[string]string, 4)

	for name, path := range map[string]string{
		"build_root":  cfg.BuildRoot,
		"bundle":      cfg.SourceBundlePath(),
		"staging_dir": cfg.StagingPath(),
		"output":      cfg.OutputPath(),
	} {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolve %s %q: %w", name, path, err)
		}

		paths[name] = abs
	}

	staging := paths["staging_dir"]

	switch {
	case isWithin(staging, paths["build_root"]):
		return fmt.Errorf("staging_dir %s contains build_root %s: %w", staging, paths["build_root"], errOverlappingPaths)
	case isWithin(staging, paths["bundle"]), isWithin(paths["bundle"], staging):
		return fmt.Errorf("staging_dir %s overlaps bundle %s: %w", staging, paths["bundle"], errOverlappingPaths)
	case isWithin(staging, paths["output"]):
		return fmt.Errorf("output %s is inside staging_dir %s: %w", paths["output"], staging, errOverlappingPaths)
	}

	return nil
}

// isWithin reports whether path equals dir or lies below it.
func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}

	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// BundleName is the directory name of the application bundle.
func (c *Config) BundleName() string {
	return c.AppName + BundleExtension
}

// SourceBundlePath is where the build process exports the bundle.
func (c *Config) SourceBundlePath() string {
	return filepath.Join(c.BuildRoot, ExportDir, c.BundleName())
}

// StagingPath is the transient folder handed to hdiutil.
func (c *Config) StagingPath() string {
	if filepath.IsAbs(c.StagingDir) {
		return filepath.Clean(c.StagingDir)
	}

	return filepath.Join(c.BuildRoot, c.StagingDir)
}

// OutputPath is the destination of the disk image.
func (c *Config) OutputPath() string {
	dir := c.OutputDir
	if dir == "" {
		dir = c.BuildRoot
	}

	return filepath.Join(dir, c.ProductName+"-"+c.Version+ImageExtension)
}

// VolumeLabel is the name shown when the image is mounted.
func (c *Config) VolumeLabel() string {
	if c.VolumeName != "" {
		return c.VolumeName
	}

	return c.ProductName + " " + c.Version
}

// LockPath is the run marker guarding the build root.
func (c *Config) LockPath() string {
	return filepath.Join(c.BuildRoot, runlock.Filename)
}

func applyDefaults(cfg *Config) {
	if cfg.AppName == "" {
		cfg.AppName = DefaultAppName
	}

	if cfg.ProductName == "" {
		cfg.ProductName = cfg.AppName
	}

	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}

	if cfg.BuildRoot == "" {
		cfg.BuildRoot = DefaultBuildRoot
	}

	if cfg.StagingDir == "" {
		cfg.StagingDir = DefaultStagingDir
	}

	if cfg.Format == "" {
		cfg.Format = diskimage.DefaultFormat
	}

	if cfg.HdiutilPath == "" {
		cfg.HdiutilPath = diskimage.DefaultTool
	}

	if cfg.ApplicationsDir == "" {
		cfg.ApplicationsDir = DefaultApplicationsDir
	}
}

func checkPathElement(value string) error {
	if value == "." || value == ".." || strings.ContainsAny(value, `/\`) {
		return errInvalidName
	}

	return nil
}
