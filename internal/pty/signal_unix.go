//go:build !windows

package pty

import (
	"os"
	"syscall"
)

func signalTERM() os.Signal {
	return syscall.SIGTERM
}
