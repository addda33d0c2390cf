//go:build windows
// +build windows

package chunkeval

import "os/exec"

func configureProcAttr(cmd *exec.Cmd) {}

func killProcess(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
