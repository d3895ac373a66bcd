//go:build windows

package pty

import "os"

func signalTERM() os.Signal {
	return os.Kill
}
