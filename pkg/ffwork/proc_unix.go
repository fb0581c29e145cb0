//go:build linux || darwin || freebsd

package ffwork

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup 子进程作为新进程组的组长，便于整组调整优先级和终止
func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// setPriority 设置进程组的 nice 值，pgid 与组长 pid 相同
func setPriority(pid, niceness int) error {
	return unix.Setpriority(unix.PRIO_PGRP, pid, niceness)
}

// killProcessGroup 向整个进程组发送 SIGKILL
func killProcessGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return os.ErrProcessDone
		}
		return cmd.Process.Kill()
	}
	return nil
}
