//go:build !(linux || darwin || freebsd)

package ffwork

import "os/exec"

func setProcessGroup(*exec.Cmd) {}

// setPriority 其它平台不调整优先级
func setPriority(int, int) error { return nil }

func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}
