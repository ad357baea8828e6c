// Package assembler packages an exported application bundle into a
// drag-to-install disk image.
//
// One run walks a fixed sequence of steps: check that the bundle exists,
// reset the staging folder, copy the bundle into it, add the Applications
// shortcut, remove the previous image, run hdiutil and report the image size.
// The staging folder is removed at the end whether the run succeeded or not,
// unless the bundle was missing and nothing was touched.
package assembler
