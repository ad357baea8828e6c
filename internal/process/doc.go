// Package process runs external commands with their output captured.
//
// Runner is the seam between the build pipeline and the operating system:
// production code uses ExecRunner, tests substitute a fake that never spawns
// a process.
package process
