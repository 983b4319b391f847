package shell

import (
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/vector-im/riot-provision/internal/utils/logger"
)

// IsCommandExist checks if an executable can be resolved on the host PATH.
func IsCommandExist(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// ExecCmd executes a command and returns its combined output.
func ExecCmd(name string, args ...string) (string, error) {
	log := logger.Logger()
	log.Debugf("Exec: [%s %s]", name, strings.Join(args, " "))

	cmd := exec.Command(name, args...)
	output, err := cmd.CombinedOutput()
	outputStr := string(output)

	if err != nil {
		if outputStr != "" {
			log.Infof(outputStr)
		}
		return outputStr, fmt.Errorf("failed to exec %s: %w", name, err)
	}
	if outputStr != "" {
		log.Debugf(outputStr)
	}
	return outputStr, nil
}

// ExecCmdWithInput executes a command with its standard input streamed from
// the given reader. The reader is consumed incrementally; the call returns
// once the subprocess exits.
func ExecCmdWithInput(input io.Reader, name string, args ...string) (string, error) {
	log := logger.Logger()
	log.Debugf("Exec: [%s %s] (with stdin)", name, strings.Join(args, " "))

	cmd := exec.Command(name, args...)
	cmd.Stdin = input

	output, err := cmd.CombinedOutput()
	outputStr := string(output)

	if err != nil {
		if outputStr != "" {
			log.Infof(outputStr)
		}
		return outputStr, fmt.Errorf("failed to exec %s with input: %w", name, err)
	}
	if outputStr != "" {
		log.Debugf(outputStr)
	}
	return outputStr, nil
}
