// Package version exposes build metadata for dmg-builder.
//
// Version, Commit and BuildTime are injected at build time via Go ldflags.
// They describe the tool itself; the version label of the packaged product
// comes from the configuration.
package version
