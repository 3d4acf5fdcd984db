package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"packfetch/internal/config"
	"packfetch/internal/testsupport"
)

// upstream serves mod metadata under /meta, mod files under /files and FML
// libraries under /ours and /forge.
type upstream struct {
	server *httptest.Server
	meta   map[string]string
	files  map[string]string
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{meta: map[string]string{}, files: map[string]string{}}
	mux := http.NewServeMux()
	mux.HandleFunc("/meta/", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/meta/"), ".json")
		body, ok := u.meta[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":404,"message":"not found"}`))
			return
		}
		_, _ = w.Write([]byte(body))
	})
	serveFiles := func(w http.ResponseWriter, r *http.Request) {
		body, ok := u.files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}
	mux.HandleFunc("/files/", serveFiles)
	mux.HandleFunc("/ours/", serveFiles)
	mux.HandleFunc("/forge/", serveFiles)

	u.server = httptest.NewServer(mux)
	t.Cleanup(u.server.Close)
	return u
}

// addMod registers metadata for project/file and serves its content.
func (u *upstream) addMod(projectID, fileID int, name, content string) {
	u.meta[fmt.Sprintf("%d/%d", projectID, fileID)] = fmt.Sprintf(
		`{"FileNameOnDisk":%q,"DownloadURL":%q}`, name, u.server.URL+"/files/"+name)
	u.files["/files/"+name] = content
}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	upstream   *upstream
}

func setupCLITestEnv(t *testing.T, mutate ...func(*config.Config)) *cliTestEnv {
	t.Helper()
	t.Setenv("PACKFETCH_FLAME_META_URL", "")

	up := newUpstream(t)
	cfg := testsupport.NewConfig(t, testsupport.WithServer(up.server.URL), testsupport.WithConcurrency(2))
	cfg.Logging.Level = "error"
	for _, fn := range mutate {
		fn(cfg)
	}

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, upstream: up}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--lang", "en"}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeManifest(t *testing.T, dir string, ids ...[2]int) string {
	t.Helper()
	files := make([]string, 0, len(ids))
	for _, id := range ids {
		files = append(files, fmt.Sprintf(`{"projectID":%d,"fileID":%d,"required":true}`, id[0], id[1]))
	}
	body := fmt.Sprintf(`{"manifestType":"minecraftModpack","manifestVersion":1,"name":"Test Pack",`+
		`"minecraft":{"version":"1.2.5"},"files":[%s]}`, strings.Join(files, ","))
	path := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected %q in output:\n%s", needle, haystack)
	}
}

func requireFile(t *testing.T, path, want string) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if string(data) != want {
		t.Fatalf("%s = %q, want %q", path, data, want)
	}
}
