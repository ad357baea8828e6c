// Package integration holds end-to-end tests that run the real hdiutil.
// They only build on macOS.
package integration
