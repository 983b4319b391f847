// Package config resolves command-line tokens and workspace defaults into
// the immutable run configuration the provisioning pipeline consumes.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	defaultPackagesDir = "packages"
	defaultDeploysDir  = "deploys"

	// DefaultsFile optionally supplies workspace defaults for the
	// directory flags. Explicit flags always win.
	DefaultsFile = "provision.yml"

	// packageFile provides the fallback target version ("v" + version).
	packageFile = "package.json"
)

// Run is the configuration for one invocation. It is built once from the
// command line and never mutated afterwards.
type Run struct {
	Verify      bool
	ImportKey   bool
	PackagesDir string
	DeploysDir  string

	// ConfigDir holds the directory containing config.json. The empty
	// string is a valid explicit value meaning "skip config injection";
	// ConfigDirSet distinguishes it from "never supplied".
	ConfigDir    string
	ConfigDirSet bool

	// Keyring, when set, switches verification to the in-process OpenPGP
	// path against this armored public keyring file.
	Keyring string

	Version string
}

// fileDefaults mirrors the optional provision.yml in the working directory.
type fileDefaults struct {
	Packages string  `yaml:"packages"`
	Deploys  string  `yaml:"deploys"`
	CfgDir   *string `yaml:"cfgdir"`
	Keyring  string  `yaml:"keyring"`
}

// RegisterFlags declares the provisioning flags on the given flag set so the
// command entry point and tests share one definition.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.Bool("noverify", false, "skip signature download and verification")
	fs.Bool("importkey", false, "import the release public key into gpg and exit")
	fs.String("packages", defaultPackagesDir, "directory to download release archives into")
	fs.String("deploys", defaultDeploysDir, "directory to extract releases into")
	fs.StringP("cfgdir", "d", "", "directory containing config.json to inject (\"\" skips injection)")
	fs.String("keyring", "", "armored public keyring for in-process verification instead of gpg")
}

// Resolve builds the run configuration from parsed flags and the raw
// command-line tokens. The version is found by scanning argv: the last token
// that is not a registered flag or a registered flag's value is the target
// version, so unrecognized flags count as version candidates and are never
// silently dropped. When no candidate exists the version of the local
// package.json is used, prefixed with "v". A missing config directory is a
// fatal configuration error unless import-key mode is requested.
func Resolve(fs *pflag.FlagSet, argv []string) (*Run, error) {
	noverify, err := fs.GetBool("noverify")
	if err != nil {
		return nil, fmt.Errorf("reading noverify flag: %w", err)
	}
	importKey, err := fs.GetBool("importkey")
	if err != nil {
		return nil, fmt.Errorf("reading importkey flag: %w", err)
	}
	packagesDir, err := fs.GetString("packages")
	if err != nil {
		return nil, fmt.Errorf("reading packages flag: %w", err)
	}
	deploysDir, err := fs.GetString("deploys")
	if err != nil {
		return nil, fmt.Errorf("reading deploys flag: %w", err)
	}
	configDir, err := fs.GetString("cfgdir")
	if err != nil {
		return nil, fmt.Errorf("reading cfgdir flag: %w", err)
	}
	keyring, err := fs.GetString("keyring")
	if err != nil {
		return nil, fmt.Errorf("reading keyring flag: %w", err)
	}

	cfg := &Run{
		Verify:       !noverify,
		ImportKey:    importKey,
		PackagesDir:  packagesDir,
		DeploysDir:   deploysDir,
		ConfigDir:    configDir,
		ConfigDirSet: fs.Changed("cfgdir"),
		Keyring:      keyring,
	}

	defaults, err := loadDefaults(DefaultsFile)
	if err != nil {
		return nil, err
	}
	if defaults != nil {
		if !fs.Changed("packages") && defaults.Packages != "" {
			cfg.PackagesDir = defaults.Packages
		}
		if !fs.Changed("deploys") && defaults.Deploys != "" {
			cfg.DeploysDir = defaults.Deploys
		}
		if !fs.Changed("cfgdir") && defaults.CfgDir != nil {
			cfg.ConfigDir = *defaults.CfgDir
			cfg.ConfigDirSet = true
		}
		if !fs.Changed("keyring") && defaults.Keyring != "" {
			cfg.Keyring = defaults.Keyring
		}
	}

	if v := versionToken(fs, argv); v != "" {
		cfg.Version = v
	} else {
		version, err := localPackageVersion(packageFile)
		if err != nil {
			return nil, fmt.Errorf("no version given and none could be read from %s: %w", packageFile, err)
		}
		cfg.Version = "v" + version
	}

	if !cfg.ConfigDirSet && !cfg.ImportKey {
		return nil, fmt.Errorf("no config directory supplied: pass --cfgdir <dir> (or -d \"\" to skip config injection)")
	}

	return cfg, nil
}

// versionToken scans raw command-line tokens for the target version. Every
// token that is not a registered flag or a registered flag's value is a
// candidate and the last candidate wins. pflag drops unknown flags (and
// swallows the token after them as a presumed value), so the scan works on
// the raw argv rather than the parsed positionals.
func versionToken(fs *pflag.FlagSet, argv []string) string {
	version := ""
	for i := 0; i < len(argv); i++ {
		tok := argv[i]
		switch {
		case tok == "--":
			// Everything after the terminator is positional.
			if i+1 < len(argv) {
				version = argv[len(argv)-1]
			}
			return version
		case strings.HasPrefix(tok, "--"):
			name := strings.TrimPrefix(tok, "--")
			if eq := strings.Index(name, "="); eq >= 0 {
				name = name[:eq]
			}
			flag := fs.Lookup(name)
			if flag == nil {
				version = tok
				continue
			}
			if !strings.Contains(tok, "=") && flag.NoOptDefVal == "" && i+1 < len(argv) {
				i++ // the flag's value
			}
		case strings.HasPrefix(tok, "-") && len(tok) > 1:
			flag := fs.ShorthandLookup(tok[1:2])
			if flag == nil {
				version = tok
				continue
			}
			// "-d cfg" takes the next token; "-d=cfg" and "-dcfg"
			// carry the value inline.
			if len(tok) == 2 && flag.NoOptDefVal == "" && i+1 < len(argv) {
				i++
			}
		default:
			version = tok
		}
	}
	return version
}

// localPackageVersion reads the version field of the local package manifest.
func localPackageVersion(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var pkg struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return "", fmt.Errorf("parsing %s: %w", path, err)
	}
	if pkg.Version == "" {
		return "", fmt.Errorf("%s has no version field", path)
	}
	return pkg.Version, nil
}

// loadDefaults reads the optional workspace defaults file. A missing file is
// not an error; a malformed one is.
func loadDefaults(path string) (*fileDefaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var defaults fileDefaults
	if err := yaml.Unmarshal(data, &defaults); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &defaults, nil
}
