//go:build windows

package callback

import "os/exec"

func shellCommand(command string) *exec.Cmd {
	return exec.Command("powershell", "-Command", command)
}
