package client

import (
	"os"
	"syscall"
)

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}

// signalGroup kills p; Windows has no process groups to signal.
func signalGroup(p *os.Process, _ syscall.Signal) error {
	return p.Kill()
}
