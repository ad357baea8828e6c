// Package diskimage drives hdiutil, the macOS disk image utility.
//
// It builds the argument vectors for `hdiutil create` and `hdiutil verify`,
// runs them through a process.Runner and turns a non-zero exit into a
// ToolError carrying the captured diagnostic. It also computes the checksum
// published next to a finished image.
package diskimage
