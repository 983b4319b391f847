// Package provision chains the release steps: fetch the archive, verify its
// signature, extract, inject config and package. Each step checks for its
// expected output first, so a failed run is safe to re-invoke.
package provision

import (
	"fmt"
	"net/http"

	"github.com/vector-im/riot-provision/internal/config"
	"github.com/vector-im/riot-provision/internal/deploy"
	"github.com/vector-im/riot-provision/internal/fetch"
	"github.com/vector-im/riot-provision/internal/gpg"
	"github.com/vector-im/riot-provision/internal/release"
	"github.com/vector-im/riot-provision/internal/utils/logger"
	"github.com/vector-im/riot-provision/internal/utils/network"
)

// Pipeline holds the collaborators for one provisioning run.
type Pipeline struct {
	Config *config.Run
	Client *http.Client
	GPG    *gpg.Tool

	// BaseURL, PublicKeyURL and OutputPath default to the release
	// constants; tests override them.
	BaseURL      string
	PublicKeyURL string
	OutputPath   string
}

// New builds a pipeline with the standard collaborators.
func New(cfg *config.Run) *Pipeline {
	client := network.NewSecureHTTPClient()
	return &Pipeline{
		Config:       cfg,
		Client:       client,
		GPG:          &gpg.Tool{Client: client},
		BaseURL:      release.PackageURLPrefix,
		PublicKeyURL: release.PublicKeyURL,
		OutputPath:   release.OutputPackagePath,
	}
}

// Run executes the pipeline top to bottom. In import-key mode only the key
// import runs; otherwise fetch, verify and deploy run in order and the first
// error aborts the whole run.
func (p *Pipeline) Run() error {
	if p.Config.ImportKey {
		return p.importKey()
	}

	art := release.New(p.Config.Version)
	archivePath := art.ArchivePath(p.Config.PackagesDir)

	fetcher := &fetch.Fetcher{Client: p.Client, Progress: true}
	if err := fetcher.Ensure(art.URLUnder(p.BaseURL), archivePath); err != nil {
		return err
	}

	if p.Config.Verify {
		if err := p.verify(art, archivePath); err != nil {
			return err
		}
	}

	builder := &deploy.Builder{
		DeploysDir: p.Config.DeploysDir,
		ConfigDir:  p.Config.ConfigDir,
		OutputPath: p.OutputPath,
	}
	return builder.Build(archivePath, art.DeployDir(p.Config.DeploysDir))
}

// importKey fetches the release public key and imports it into the
// verification tool. This mode is terminal: no other steps run.
func (p *Pipeline) importKey() error {
	if !p.GPG.Available() {
		return fmt.Errorf("%s not found on this system: cannot import key", gpg.DefaultBinary)
	}
	return p.GPG.ImportKeyFromURL(p.PublicKeyURL)
}

// verify downloads the detached signature if needed and checks it against
// the archive, either through the gpg binary or in-process when a keyring
// file was configured.
func (p *Pipeline) verify(art release.Artifact, archivePath string) error {
	log := logger.Logger()

	sigPath := art.SignaturePath(p.Config.PackagesDir)
	sigFetcher := &fetch.Fetcher{Client: p.Client}
	if err := sigFetcher.Ensure(art.SignatureURLUnder(p.BaseURL), sigPath); err != nil {
		return err
	}

	if p.Config.Keyring != "" {
		if err := gpg.VerifyDetachedWithKeyring(p.Config.Keyring, sigPath, archivePath); err != nil {
			return err
		}
		log.Infof("verified %s against keyring %s", archivePath, p.Config.Keyring)
		return nil
	}

	if !p.GPG.Available() {
		return fmt.Errorf("%s not found on this system: cannot verify (use --noverify to skip)", gpg.DefaultBinary)
	}
	if err := p.GPG.VerifyDetached(sigPath, archivePath); err != nil {
		return err
	}
	log.Infof("verified %s", archivePath)
	return nil
}
