package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oshokin/dmg-builder/internal/config"
	"github.com/oshokin/dmg-builder/internal/diskimage"
	"github.com/oshokin/dmg-builder/internal/logger"
	"github.com/oshokin/dmg-builder/internal/service/assembler"
	"github.com/oshokin/dmg-builder/internal/version"
)

var (
	// configPath to the optional configuration YAML file.
	configPath string
	// logLevel is the minimum level of printed progress messages.
	logLevel string
	// overrides collects flag values applied on top of the configuration file.
	overrides config.Config

	// rootCmd packages the exported application bundle into a disk image.
	rootCmd = &cobra.Command{
		Use:   "dmg-builder",
		Short: "Package an exported .app bundle into a drag-to-install disk image.",
		Long: `Stages <build-root>/Export/<app>.app next to an Applications shortcut and runs
hdiutil to produce <build-root>/<product>-<version>.dmg.

Settings come from built-in defaults, then the optional --config file, then flags.
Any previous image at the output path is replaced. The staging folder is removed
when the run ends, whether it succeeded or not.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}

			logger.SetLevel(level)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			cfg, err := resolveConfig(cmd.Flags())
			if err != nil {
				return err
			}

			return assembler.Run(ctx, &assembler.Options{Config: cfg})
		},
	}

	// initConfigCmd writes the effective settings so they can be edited and reused.
	initConfigCmd = &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write the effective configuration to a YAML file.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultConfigFilename
			if len(args) > 0 {
				path = args[0]
			}

			cfg, err := resolveConfig(cmd.Flags())
			if err != nil {
				return err
			}

			if err = config.Save(path, cfg); err != nil {
				return err
			}

			logger.InfoKV(cmd.Context(), "Configuration written", "path", path)

			return nil
		},
	}
)

// Execute runs the dmg-builder CLI and exits with non-zero status on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger.Errorf(context.Background(), "dmg-builder: %v", err)
		os.Exit(1)
	}
}

// resolveConfig layers flags that were set explicitly over the file or the defaults.
func resolveConfig(flags *pflag.FlagSet) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)

	if configPath != "" {
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	// The product name follows the app name unless it was set on its own.
	productDerived := cfg.ProductName == cfg.AppName

	stringFlags := map[string]struct {
		dst *string
		src string
	}{
		"app-name":         {&cfg.AppName, overrides.AppName},
		"product-name":     {&cfg.ProductName, overrides.ProductName},
		"version-label":    {&cfg.Version, overrides.Version},
		"build-root":       {&cfg.BuildRoot, overrides.BuildRoot},
		"output-dir":       {&cfg.OutputDir, overrides.OutputDir},
		"staging-dir":      {&cfg.StagingDir, overrides.StagingDir},
		"volume-name":      {&cfg.VolumeName, overrides.VolumeName},
		"format":           {&cfg.Format, overrides.Format},
		"hdiutil":          {&cfg.HdiutilPath, overrides.HdiutilPath},
		"applications-dir": {&cfg.ApplicationsDir, overrides.ApplicationsDir},
	}
	for name, field := range stringFlags {
		if flags.Changed(name) {
			*field.dst = field.src
		}
	}

	if flags.Changed("verify") {
		cfg.Verify = overrides.Verify
	}

	if flags.Changed("checksum") {
		cfg.Checksum = overrides.Checksum
	}

	if productDerived && flags.Changed("app-name") && !flags.Changed("product-name") {
		cfg.ProductName = cfg.AppName
	}

	if err = config.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	version.AttachCobraVersionCommand(rootCmd)
	rootCmd.AddCommand(initConfigCmd)

	// Setup command flags with consistent naming and descriptions.
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "path to configuration file (optional)")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	flags.StringVar(&overrides.AppName, "app-name", config.DefaultAppName, "bundle to package, without .app")
	flags.StringVar(&overrides.ProductName, "product-name", "", "volume label and file name prefix (defaults to app name)")
	flags.StringVar(&overrides.Version, "version-label", config.DefaultVersion, "product version used in the label and file name")
	flags.StringVar(&overrides.BuildRoot, "build-root", config.DefaultBuildRoot, "base directory holding Export/<app>.app")
	flags.StringVar(&overrides.OutputDir, "output-dir", "", "directory receiving the image (defaults to build root)")
	flags.StringVar(&overrides.StagingDir, "staging-dir", config.DefaultStagingDir, "staging folder, relative to build root unless absolute")
	flags.StringVar(&overrides.VolumeName, "volume-name", "", "volume label (defaults to \"<product> <version>\")")
	flags.StringVar(&overrides.Format, "format", diskimage.DefaultFormat, "compressed read-only image format")
	flags.StringVar(&overrides.HdiutilPath, "hdiutil", diskimage.DefaultTool, "path to the hdiutil executable")
	flags.StringVar(&overrides.ApplicationsDir, "applications-dir", config.DefaultApplicationsDir, "target of the Applications shortcut")
	flags.BoolVar(&overrides.Verify, "verify", false, "run hdiutil verify on the finished image")
	flags.BoolVar(&overrides.Checksum, "checksum", false, "log the SHA-512 checksum of the finished image")
}
