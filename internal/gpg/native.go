package gpg

import (
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
)

// VerifyDetachedWithKeyring checks an armored detached signature in-process
// against a public keyring file, so verification works on hosts without a
// gpg binary. The keyring may be armored or binary.
func VerifyDetachedWithKeyring(keyringPath, sigPath, targetPath string) error {
	keyringFile, err := os.Open(keyringPath)
	if err != nil {
		return fmt.Errorf("open keyring: %w", err)
	}
	defer keyringFile.Close()

	keyring, err := openpgp.ReadArmoredKeyRing(keyringFile)
	if err != nil {
		if _, serr := keyringFile.Seek(0, io.SeekStart); serr != nil {
			return fmt.Errorf("rewind keyring: %w", serr)
		}
		keyring, err = openpgp.ReadKeyRing(keyringFile)
		if err != nil {
			return fmt.Errorf("read keyring: %w", err)
		}
	}
	if len(keyring) == 0 {
		return fmt.Errorf("keyring %s is empty", keyringPath)
	}

	target, err := os.Open(targetPath)
	if err != nil {
		return fmt.Errorf("open target: %w", err)
	}
	defer target.Close()

	sig, err := os.Open(sigPath)
	if err != nil {
		return fmt.Errorf("open signature: %w", err)
	}
	defer sig.Close()

	if _, err := openpgp.CheckArmoredDetachedSignature(keyring, target, sig, nil); err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}
