//go:build !unix

package executor

import osexec "os/exec"

// killGroup is a no-op; cancellation kills only the direct child and
// WaitDelay bounds the wait for its pipes.
func killGroup(*osexec.Cmd) {}
