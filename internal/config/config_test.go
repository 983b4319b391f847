package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
)

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatalf("restore wd: %v", err)
		}
	})
}

func newFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	return fs
}

func TestResolveRequiresConfigDir(t *testing.T) {
	chdir(t, t.TempDir())

	fs := newFlagSet(t)
	if _, err := Resolve(fs, []string{"v1.2.3"}); err == nil {
		t.Fatal("expected error when no config directory supplied")
	}
}

func TestResolveImportKeyNeedsNoConfigDir(t *testing.T) {
	chdir(t, t.TempDir())

	fs := newFlagSet(t, "--importkey")
	cfg, err := Resolve(fs, []string{"v1.2.3"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !cfg.ImportKey {
		t.Error("expected import-key mode")
	}
}

func TestResolveEmptyConfigDirIsExplicit(t *testing.T) {
	chdir(t, t.TempDir())

	fs := newFlagSet(t, "--cfgdir", "")
	cfg, err := Resolve(fs, []string{"v1.2.3"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !cfg.ConfigDirSet {
		t.Error("expected explicit empty config dir to count as supplied")
	}
	if cfg.ConfigDir != "" {
		t.Errorf("expected empty config dir, got %q", cfg.ConfigDir)
	}
}

func TestResolveLastPositionalVersionWins(t *testing.T) {
	chdir(t, t.TempDir())

	fs := newFlagSet(t, "-d", "cfg")
	cfg, err := Resolve(fs, []string{"v1.0.0", "v2.0.0"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Version != "v2.0.0" {
		t.Errorf("expected last version to win, got %q", cfg.Version)
	}
}

func TestResolveVersionSurvivesUnknownFlag(t *testing.T) {
	chdir(t, t.TempDir())

	// pflag drops --bogus and swallows the next token as its presumed
	// value; the version must still come from the raw argv.
	argv := []string{"-d", "cfg", "--bogus", "v9.9.9"}
	fs := newFlagSet(t, argv...)
	cfg, err := Resolve(fs, argv)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Version != "v9.9.9" {
		t.Errorf("expected explicit version to survive unknown flag, got %q", cfg.Version)
	}
}

func TestResolveUnknownFlagIsVersionCandidate(t *testing.T) {
	chdir(t, t.TempDir())

	argv := []string{"-d", "cfg", "--nightly"}
	fs := newFlagSet(t, argv...)
	cfg, err := Resolve(fs, argv)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Version != "--nightly" {
		t.Errorf("expected unrecognized flag to become the version, got %q", cfg.Version)
	}
}

func TestResolveVersionScanSkipsFlagValues(t *testing.T) {
	chdir(t, t.TempDir())

	argv := []string{"--noverify", "--packages", "pkgs", "-d", "cfg", "v1.2.3"}
	fs := newFlagSet(t, argv...)
	cfg, err := Resolve(fs, argv)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Version != "v1.2.3" {
		t.Errorf("flag values leaked into version resolution: %q", cfg.Version)
	}
	if cfg.PackagesDir != "pkgs" || cfg.ConfigDir != "cfg" {
		t.Errorf("flags not honored: %q %q", cfg.PackagesDir, cfg.ConfigDir)
	}
}

func TestResolveDefaultsFromLocalPackage(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"version": "1.5.2"}`), 0644); err != nil {
		t.Fatalf("write package.json: %v", err)
	}

	fs := newFlagSet(t, "-d", "cfg")
	cfg, err := Resolve(fs, nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Version != "v1.5.2" {
		t.Errorf("expected v1.5.2 from package.json, got %q", cfg.Version)
	}
}

func TestResolveNoVersionAndNoPackageFails(t *testing.T) {
	chdir(t, t.TempDir())

	fs := newFlagSet(t, "-d", "cfg")
	if _, err := Resolve(fs, nil); err == nil {
		t.Fatal("expected error when no version and no package.json")
	}
}

func TestResolveFlagDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	fs := newFlagSet(t, "-d", "cfg")
	cfg, err := Resolve(fs, []string{"v1.2.3"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !cfg.Verify {
		t.Error("expected verification on by default")
	}
	if cfg.PackagesDir != "packages" || cfg.DeploysDir != "deploys" {
		t.Errorf("unexpected directory defaults: %q %q", cfg.PackagesDir, cfg.DeploysDir)
	}
}

func TestResolveNoVerify(t *testing.T) {
	chdir(t, t.TempDir())

	fs := newFlagSet(t, "--noverify", "-d", "cfg")
	cfg, err := Resolve(fs, []string{"v1.2.3"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Verify {
		t.Error("expected --noverify to disable verification")
	}
}

func TestResolveDefaultsFileAppliesWhenFlagsUnset(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	defaults := "packages: cache/pkgs\ndeploys: cache/deploys\ncfgdir: local-config\n"
	if err := os.WriteFile(filepath.Join(dir, DefaultsFile), []byte(defaults), 0644); err != nil {
		t.Fatalf("write defaults: %v", err)
	}

	fs := newFlagSet(t)
	cfg, err := Resolve(fs, []string{"v1.2.3"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.PackagesDir != "cache/pkgs" || cfg.DeploysDir != "cache/deploys" {
		t.Errorf("defaults file not applied: %q %q", cfg.PackagesDir, cfg.DeploysDir)
	}
	if !cfg.ConfigDirSet || cfg.ConfigDir != "local-config" {
		t.Errorf("cfgdir default not applied: %q (set=%v)", cfg.ConfigDir, cfg.ConfigDirSet)
	}
}

func TestResolveExplicitFlagsBeatDefaultsFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	if err := os.WriteFile(filepath.Join(dir, DefaultsFile), []byte("packages: from-file\n"), 0644); err != nil {
		t.Fatalf("write defaults: %v", err)
	}

	fs := newFlagSet(t, "--packages", "from-flag", "-d", "cfg")
	cfg, err := Resolve(fs, []string{"v1.2.3"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.PackagesDir != "from-flag" {
		t.Errorf("expected explicit flag to win, got %q", cfg.PackagesDir)
	}
}

func TestResolveMalformedDefaultsFileFails(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	if err := os.WriteFile(filepath.Join(dir, DefaultsFile), []byte(":\n\t:::"), 0644); err != nil {
		t.Fatalf("write defaults: %v", err)
	}

	fs := newFlagSet(t, "-d", "cfg")
	if _, err := Resolve(fs, []string{"v1.2.3"}); err == nil {
		t.Fatal("expected error for malformed defaults file")
	}
}
