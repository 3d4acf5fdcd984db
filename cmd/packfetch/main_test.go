package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"packfetch/internal/config"
	"packfetch/internal/flame"
	"packfetch/internal/task"
	"packfetch/internal/testsupport"
)

const legacyInstance = `
name = "Legacy"
intended_version = "1.2.5"
traits = ["legacyFML"]

[[components]]
uid = "net.minecraftforge"
version = "3.4.9.171"
`

const customTable = `
[sets.custom]
libraries = [
  { filename = "extra.jar", self_hosted = true },
  { filename = "upstream.jar", self_hosted = false },
]

[versions]
"1.2.5" = "custom"
`

func TestResolveWritesManifest(t *testing.T) {
	env := setupCLITestEnv(t)
	env.upstream.addMod(1, 10, "alpha.jar", "alpha")

	dir := t.TempDir()
	manifestPath := writeManifest(t, dir, [2]int{1, 10})
	outPath := filepath.Join(dir, "resolved.json")

	out, _, err := runCLI(t, []string{"resolve", manifestPath, "--json", "--write", outPath}, env.configPath)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	var result resolveResultJSON
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if result.Resolved != 1 || result.Failed != 0 || result.Error != "" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Files[0].FileName != "alpha.jar" {
		t.Fatalf("file name = %q", result.Files[0].FileName)
	}

	saved, err := flame.LoadManifest(outPath)
	if err != nil {
		t.Fatalf("load saved manifest: %v", err)
	}
	if f := saved.Files[0]; !f.Resolved || f.URL != env.upstream.server.URL+"/files/alpha.jar" {
		t.Fatalf("saved file not resolved: %+v", f)
	}
}

func TestResolvePartialFailureReportsBoth(t *testing.T) {
	env := setupCLITestEnv(t)
	env.upstream.addMod(1, 10, "alpha.jar", "alpha")

	manifestPath := writeManifest(t, t.TempDir(), [2]int{1, 10}, [2]int{2, 20})

	out, _, err := runCLI(t, []string{"resolve", manifestPath}, env.configPath)
	var failure *task.Failure
	if !errors.As(err, &failure) {
		t.Fatalf("expected task failure, got %v", err)
	}
	if failure.Message != "Some mod ID resolving tasks failed." {
		t.Fatalf("message = %q", failure.Message)
	}
	requireContains(t, out, "alpha.jar")
	requireContains(t, out, "failed")
}

func TestResolveGermanMessage(t *testing.T) {
	env := setupCLITestEnv(t)
	manifestPath := writeManifest(t, t.TempDir(), [2]int{9, 90})

	cmd := newRootCommand()
	cmd.SetOut(&strings.Builder{})
	cmd.SetErr(&strings.Builder{})
	cmd.SetArgs([]string{"--lang", "de_DE.UTF-8", "--config", env.configPath, "resolve", manifestPath})
	err := cmd.Execute()
	if err == nil || err.Error() != "Einige Mod-IDs konnten nicht aufgelöst werden." {
		t.Fatalf("expected German failure, got %v", err)
	}
}

func TestInstallResolvesCopiesModsAndLibraries(t *testing.T) {
	tablePath := filepath.Join(t.TempDir(), "table.toml")
	if err := os.WriteFile(tablePath, []byte(customTable), 0o644); err != nil {
		t.Fatal(err)
	}
	env := setupCLITestEnv(t, func(cfg *config.Config) {
		cfg.FMLLibs.TablePath = tablePath
	})
	env.upstream.addMod(1, 10, "alpha.jar", "alpha")
	env.upstream.addMod(2, 20, "beta.jar", "beta")
	env.upstream.files["/ours/extra.jar"] = "extra"
	env.upstream.files["/forge/upstream.jar"] = "upstream"

	instDir := testsupport.WriteInstance(t, filepath.Join(env.cfg.Paths.InstancesDir, "legacy"), legacyInstance)
	manifestPath := writeManifest(t, t.TempDir(), [2]int{1, 10}, [2]int{2, 20})

	out, _, err := runCLI(t, []string{"install", manifestPath, "--instance", instDir}, env.configPath)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	requireContains(t, out, "Installed 2 mods")
	requireContains(t, out, "Installed 2 FML libraries")

	gameDir := filepath.Join(instDir, ".minecraft")
	requireFile(t, filepath.Join(gameDir, "mods", "alpha.jar"), "alpha")
	requireFile(t, filepath.Join(gameDir, "mods", "beta.jar"), "beta")
	requireFile(t, filepath.Join(gameDir, "lib", "extra.jar"), "extra")
	requireFile(t, filepath.Join(gameDir, "lib", "upstream.jar"), "upstream")

	out, _, err = runCLI(t, []string{"cache", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("cache list: %v", err)
	}
	var entries []cacheEntryJSON
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode cache list: %v\n%s", err, out)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 cache entries, got %d: %+v", len(entries), entries)
	}

	out, _, err = runCLI(t, []string{"cache", "verify"}, env.configPath)
	if err != nil {
		t.Fatalf("cache verify: %v\n%s", err, out)
	}
	requireContains(t, out, "4 entries checked, 0 problems")

	if err := os.WriteFile(entries[0].Path, []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, _, err = runCLI(t, []string{"cache", "verify"}, env.configPath)
	if err == nil {
		t.Fatalf("expected verify to fail after tampering\n%s", out)
	}
	requireContains(t, out, "1 problems")

	out, _, err = runCLI(t, []string{"cache", "evict", entries[0].Namespace, entries[0].Key}, env.configPath)
	if err != nil {
		t.Fatalf("cache evict: %v", err)
	}
	requireContains(t, out, "Evicted")
	if _, _, err := runCLI(t, []string{"cache", "evict", entries[0].Namespace, entries[0].Key}, env.configPath); err == nil {
		t.Fatal("expected second evict to fail")
	}
}

func TestInstallDownloadFailureIsFatal(t *testing.T) {
	env := setupCLITestEnv(t)
	env.upstream.addMod(1, 10, "alpha.jar", "alpha")
	delete(env.upstream.files, "/files/alpha.jar")

	instDir := testsupport.WriteInstance(t, filepath.Join(t.TempDir(), "inst"), `intended_version = "1.7.10"`)
	manifestPath := writeManifest(t, t.TempDir(), [2]int{1, 10})

	_, _, err := runCLI(t, []string{"install", manifestPath, "--instance", instDir}, env.configPath)
	if err == nil {
		t.Fatal("expected install to fail")
	}
	requireContains(t, err.Error(), "alpha.jar")
	if _, statErr := os.Stat(filepath.Join(instDir, ".minecraft", "mods", "alpha.jar")); !os.IsNotExist(statErr) {
		t.Fatalf("mod should not be copied, stat err %v", statErr)
	}
}

func TestInstallRequiresInstance(t *testing.T) {
	env := setupCLITestEnv(t)
	manifestPath := writeManifest(t, t.TempDir(), [2]int{1, 10})

	if _, _, err := runCLI(t, []string{"install", manifestPath}, env.configPath); err == nil {
		t.Fatal("expected error without --instance")
	}
}

func TestFMLLibsNothingNeeded(t *testing.T) {
	env := setupCLITestEnv(t)
	instDir := testsupport.WriteInstance(t, filepath.Join(t.TempDir(), "modern"), `intended_version = "1.12.2"`)

	out, _, err := runCLI(t, []string{"fmllibs", instDir}, env.configPath)
	if err != nil {
		t.Fatalf("fmllibs: %v", err)
	}
	requireContains(t, out, "No FML libraries needed")
}

func TestFMLLibsTableFlag(t *testing.T) {
	env := setupCLITestEnv(t)
	env.upstream.files["/ours/extra.jar"] = "extra"
	env.upstream.files["/forge/upstream.jar"] = "upstream"

	tablePath := filepath.Join(t.TempDir(), "table.toml")
	if err := os.WriteFile(tablePath, []byte(customTable), 0o644); err != nil {
		t.Fatal(err)
	}
	instDir := testsupport.WriteInstance(t, filepath.Join(t.TempDir(), "legacy"), legacyInstance)

	out, _, err := runCLI(t, []string{"fmllibs", instDir, "--table", tablePath}, env.configPath)
	if err != nil {
		t.Fatalf("fmllibs: %v", err)
	}
	requireContains(t, out, env.upstream.server.URL+"/ours/extra.jar")
	requireContains(t, out, env.upstream.server.URL+"/forge/upstream.jar")
	requireFile(t, filepath.Join(instDir, ".minecraft", "lib", "extra.jar"), "extra")
}

func TestStatusReportsChecks(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v\n%s", err, out)
	}
	requireContains(t, out, "Preflight\n")
	requireContains(t, out, "  ok   Mod metadata server")
	if strings.Contains(out, "FAIL") {
		t.Fatalf("expected every check to pass:\n%s", out)
	}
	requireContains(t, out, env.configPath)
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "meta_base_url")
	requireContains(t, out, env.upstream.server.URL+"/meta")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	requireContains(t, out, "cache_dir")
	requireContains(t, out, "packfetch --config "+target+" status")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting without --overwrite")
	}
}
