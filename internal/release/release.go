// Package release models one versioned artifact of the Riot web application:
// the names, URLs and directories derived from a (product, version) pair.
package release

import (
	"fmt"
	"path/filepath"
)

const (
	// Product is the artifact name prefix used by the release host.
	Product = "riot"

	// PackageURLPrefix is the base URL release archives are published under.
	PackageURLPrefix = "https://github.com/vector-im/riot-web/releases/download/"

	// PublicKeyURL serves the armored release signing key.
	PublicKeyURL = "https://packages.riot.im/riot-release-key.asc"

	// OutputPackagePath is the fixed path, relative to the working
	// directory, of the final package consumed by the desktop shell.
	OutputPackagePath = "webapp.tar.gz"
)

// Artifact identifies one release of the web application.
type Artifact struct {
	Product string
	Version string
}

// New returns the artifact for a target version of the default product.
func New(version string) Artifact {
	return Artifact{Product: Product, Version: version}
}

// Filename returns the archive filename, e.g. "riot-v1.2.3.tar.gz".
func (a Artifact) Filename() string {
	return fmt.Sprintf("%s-%s.tar.gz", a.Product, a.Version)
}

// SignatureFilename returns the detached signature filename.
func (a Artifact) SignatureFilename() string {
	return a.Filename() + ".asc"
}

// URLUnder returns the archive download URL under an alternate base, for
// callers pointed at a mirror of the release host.
func (a Artifact) URLUnder(base string) string {
	return base + a.Version + "/" + a.Filename()
}

// SignatureURLUnder returns the detached signature URL under an alternate base.
func (a Artifact) SignatureURLUnder(base string) string {
	return a.URLUnder(base) + ".asc"
}

// URL returns the canonical download URL for the archive.
func (a Artifact) URL() string {
	return a.URLUnder(PackageURLPrefix)
}

// SignatureURL returns the download URL for the detached signature.
func (a Artifact) SignatureURL() string {
	return a.URL() + ".asc"
}

// ArchivePath returns the local download destination under packagesDir.
func (a Artifact) ArchivePath(packagesDir string) string {
	return filepath.Join(packagesDir, a.Filename())
}

// SignaturePath returns the local signature destination under packagesDir.
func (a Artifact) SignaturePath(packagesDir string) string {
	return filepath.Join(packagesDir, a.SignatureFilename())
}

// DeployDir returns the directory the archive extracts to under deploysRoot.
// The archive is expected to carry a matching top-level directory.
func (a Artifact) DeployDir(deploysRoot string) string {
	return filepath.Join(deploysRoot, fmt.Sprintf("%s-%s", a.Product, a.Version))
}
