// Package deploy turns a downloaded release archive into the packaged
// artifact the desktop shell consumes: extract, inject config, repack.
package deploy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/vector-im/riot-provision/internal/archive"
	"github.com/vector-im/riot-provision/internal/utils/logger"
)

// configSchema is the minimal shape config.json must satisfy before it is
// injected into the deploy.
const configSchema = `{"type": "object"}`

var compiledConfigSchema = jsonschema.MustCompileString("config.schema.json", configSchema)

// Present reports whether the deploy directory for a version already exists,
// which means the extraction step can be skipped entirely.
func Present(deployDir string) bool {
	info, err := os.Stat(deployDir)
	return err == nil && info.IsDir()
}

// OutputPresent reports whether a package from a prior run exists at path.
func OutputPresent(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Builder produces the output package for one extracted release.
type Builder struct {
	// DeploysDir is the root directory archives extract into.
	DeploysDir string

	// ConfigDir holds config.json to inject. The empty string skips
	// injection.
	ConfigDir string

	// OutputPath is where the final package is written. A stale package
	// from a prior run is removed before building.
	OutputPath string
}

// Build runs the deploy steps for the archive at archivePath, whose contents
// extract into deployDir. Extraction is skipped when deployDir already
// exists; the remaining steps always run so a re-invocation refreshes the
// injected config and the output package.
func (b *Builder) Build(archivePath, deployDir string) error {
	log := logger.Logger()

	if Present(deployDir) {
		log.Infof("%s already exists: not extracting", deployDir)
	} else {
		log.Infof("extracting %s -> %s", archivePath, b.DeploysDir)
		if err := os.MkdirAll(b.DeploysDir, 0755); err != nil {
			return fmt.Errorf("creating deploys directory: %w", err)
		}
		if err := archive.Extract(archivePath, b.DeploysDir); err != nil {
			return fmt.Errorf("extracting release: %w", err)
		}
	}

	if OutputPresent(b.OutputPath) {
		log.Infof("removing stale package %s", b.OutputPath)
		if err := os.Remove(b.OutputPath); err != nil {
			return fmt.Errorf("removing stale package: %w", err)
		}
	}

	if b.ConfigDir == "" {
		log.Info("config dir is empty: skipping config injection")
	} else {
		if err := injectConfig(b.ConfigDir, deployDir); err != nil {
			return err
		}
	}

	log.Infof("packaging %s -> %s", deployDir, b.OutputPath)
	if err := archive.PackDir(deployDir, b.OutputPath); err != nil {
		return fmt.Errorf("packaging deploy: %w", err)
	}
	log.Infof("wrote %s", b.OutputPath)
	return nil
}

// injectConfig validates and copies config.json from configDir into the
// deploy directory, overwriting any existing file.
func injectConfig(configDir, deployDir string) error {
	log := logger.Logger()

	src := filepath.Join(configDir, "config.json")
	dst := filepath.Join(deployDir, "config.json")

	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", src, err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing config %s: %w", src, err)
	}
	if err := compiledConfigSchema.Validate(doc); err != nil {
		return fmt.Errorf("validating config %s: %w", src, err)
	}

	log.Infof("copying config: %s -> %s", src, dst)
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("writing config %s: %w", dst, err)
	}
	return nil
}
