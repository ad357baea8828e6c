// Package runlock keeps two assemblies from sharing one build root.
//
// The lock is a marker file holding the PID of its owner. A marker whose
// process no longer exists is considered stale and is taken over.
package runlock
