// Package gpg wraps the host gpg binary for key import and detached
// signature verification, with an in-process OpenPGP fallback.
package gpg

import (
	"fmt"
	"net/http"

	"github.com/vector-im/riot-provision/internal/utils/logger"
	"github.com/vector-im/riot-provision/internal/utils/shell"
)

// DefaultBinary is the signature-verification tool expected on the host.
const DefaultBinary = "gpg"

// Tool invokes the external verification binary.
type Tool struct {
	// Binary names the executable; empty means DefaultBinary.
	Binary string

	// Client fetches public keys for import; nil means http.DefaultClient.
	Client *http.Client
}

func (t *Tool) binary() string {
	if t.Binary == "" {
		return DefaultBinary
	}
	return t.Binary
}

// Available probes for a working verification binary via --version.
func (t *Tool) Available() bool {
	if !shell.IsCommandExist(t.binary()) {
		return false
	}
	_, err := shell.ExecCmd(t.binary(), "--version")
	return err == nil
}

// ImportKeyFromURL streams the public key served at url directly into the
// standard input of the tool's import subcommand. Nothing is written to
// disk; success is the subprocess exit status.
func (t *Tool) ImportKeyFromURL(url string) error {
	log := logger.Logger()
	log.Infof("importing key from %s", url)

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("fetch key %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("fetch key %s: unexpected status %s", url, resp.Status)
	}

	if _, err := shell.ExecCmdWithInput(resp.Body, t.binary(), "--import"); err != nil {
		return fmt.Errorf("importing key: %w", err)
	}
	log.Info("key imported")
	return nil
}

// VerifyDetached checks the detached signature at sigPath against the file
// at targetPath. A non-zero exit from the tool is a verification failure.
func (t *Tool) VerifyDetached(sigPath, targetPath string) error {
	if _, err := shell.ExecCmd(t.binary(), "--verify", sigPath, targetPath); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}
