// Package config loads and validates the dmg-builder settings.
//
// Settings come from an optional YAML file; every field has a default, and
// the derived paths (source bundle, staging folder, output image, run marker)
// are computed from the build root so a single value relocates the whole run.
package config
