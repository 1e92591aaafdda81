package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const stubConfig = `memory:
  file: memory.bin
  compression: true
  autosave: "0"
embedding:
  provider: stub
  dimensions: 256
  cache_size: 0
search:
  default_limit: 5
`

func newHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte(stubConfig), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return home
}

func run(t *testing.T, home string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--home", home}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, home string, args ...string) string {
	t.Helper()
	out, err := run(t, home, args...)
	if err != nil {
		t.Fatalf("mnemo %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func TestCLI_Root(t *testing.T) {
	root := NewRootCmd()
	want := map[string]bool{"memory": false, "config": false, "tools": false, "browse": false, "plugin": false}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("%s command not found", name)
		}
	}
}

func TestCLI_MemoryLifecycle(t *testing.T) {
	home := newHome(t)

	aliceID := strings.TrimSpace(mustRun(t, home, "memory", "add", "--user", "alice", "likes", "green", "tea"))
	if aliceID == "" {
		t.Fatal("expected an id")
	}
	mustRun(t, home, "memory", "add", "--user", "bob", "plays chess on sundays")

	out := mustRun(t, home, "memory", "search", "--limit", "1", "green tea")
	if strings.TrimSpace(out) != "likes green tea" {
		t.Errorf("unexpected search result %q", out)
	}

	out = mustRun(t, home, "memory", "search", "--user", "bob", "--scores", "green tea")
	if strings.Contains(out, "green") || !strings.Contains(out, "chess") {
		t.Errorf("user filter ignored: %q", out)
	}

	out = mustRun(t, home, "memory", "get", aliceID)
	if !strings.Contains(out, "content: likes green tea") || !strings.Contains(out, "user:    alice") {
		t.Errorf("unexpected get output %q", out)
	}

	out = mustRun(t, home, "memory", "user", "alice")
	if strings.TrimSpace(out) != "likes green tea" {
		t.Errorf("unexpected user output %q", out)
	}

	out = mustRun(t, home, "--json", "memory", "list")
	var listed []entryView
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("list output is not JSON: %v\n%s", err, out)
	}
	if len(listed) != 2 || listed[0].ID != aliceID || listed[0].Dims != 256 {
		t.Errorf("unexpected list %+v", listed)
	}

	mustRun(t, home, "memory", "update", aliceID, "likes black coffee")
	out = mustRun(t, home, "memory", "user", "alice")
	if strings.TrimSpace(out) != "likes black coffee" {
		t.Errorf("update not persisted: %q", out)
	}

	mustRun(t, home, "memory", "delete", aliceID)
	if _, err := run(t, home, "memory", "delete", aliceID); err == nil {
		t.Error("deleting a missing memory should fail")
	}
	if _, err := run(t, home, "memory", "get", aliceID); err == nil {
		t.Error("getting a deleted memory should fail")
	}

	if _, err := run(t, home, "memory", "clear"); err == nil {
		t.Error("clear without --yes should fail")
	}
	out = mustRun(t, home, "memory", "clear", "--yes")
	if !strings.Contains(out, "Cleared 1 memories") {
		t.Errorf("unexpected clear output %q", out)
	}
	if out := mustRun(t, home, "memory", "list"); out != "" {
		t.Errorf("expected empty list, got %q", out)
	}
}

func TestCLI_SearchFlags(t *testing.T) {
	home := newHome(t)
	mustRun(t, home, "memory", "add", "--user", "discord:1", "one")
	mustRun(t, home, "memory", "add", "--user", "slack:2", "two")

	out := mustRun(t, home, "memory", "list", "--user-glob", "discord:*")
	if !strings.Contains(out, "one") || strings.Contains(out, "two") {
		t.Errorf("glob filter ignored: %q", out)
	}

	if _, err := run(t, home, "memory", "search", "--user", "a", "--user-glob", "b*", "q"); err == nil {
		t.Error("expected error for --user with --user-glob")
	}
	if _, err := run(t, home, "memory", "list", "--user-glob", "[bad"); err == nil {
		t.Error("expected error for an invalid glob")
	}

	out = mustRun(t, home, "memory", "search", "nothing", "matches")
	if strings.Count(out, "\n") != 2 {
		t.Errorf("expected both memories as weak matches, got %q", out)
	}
}

func TestCLI_ExportImport(t *testing.T) {
	home := newHome(t)
	id := strings.TrimSpace(mustRun(t, home, "memory", "add", "--user", "u1", "remember the milk"))

	mustRun(t, home, "memory", "export", "backup")
	mustRun(t, home, "memory", "clear", "--yes")

	out := mustRun(t, home, "memory", "snapshots")
	if strings.TrimSpace(out) != "backup" {
		t.Errorf("unexpected snapshots %q", out)
	}

	out = mustRun(t, home, "memory", "import", "--replace", "backup")
	if !strings.Contains(out, "Imported 1 memories") {
		t.Errorf("unexpected import output %q", out)
	}
	out = mustRun(t, home, "memory", "get", id)
	if !strings.Contains(out, "remember the milk") {
		t.Errorf("memory not restored under its id: %q", out)
	}

	if _, err := run(t, home, "memory", "import", "missing"); err == nil {
		t.Error("importing a missing snapshot should fail")
	}
}

func TestCLI_ConfigSecrets(t *testing.T) {
	home := newHome(t)

	if out := mustRun(t, home, "config", "get", "openai.api_key"); strings.TrimSpace(out) != "(not set)" {
		t.Errorf("unexpected output %q", out)
	}

	mustRun(t, home, "config", "set", "openai.api_key", "sk-1234567890abcd")
	mustRun(t, home, "config", "set", "ollama.base_url", "http://gpu:11434")

	if out := mustRun(t, home, "config", "get", "openai.api_key"); strings.TrimSpace(out) != "sk-1234567890abcd" {
		t.Errorf("secret not readable back: %q", out)
	}

	out := mustRun(t, home, "config", "list")
	if strings.Contains(out, "sk-1234567890abcd") {
		t.Errorf("list leaked a secret: %q", out)
	}
	if !strings.Contains(out, "openai.api_key = sk-1...abcd") || !strings.Contains(out, "ollama.base_url = http://gpu:11434") {
		t.Errorf("unexpected list %q", out)
	}

	if _, err := os.Stat(filepath.Join(home, "secret.key")); err != nil {
		t.Errorf("secret key not created: %v", err)
	}

	mustRun(t, home, "config", "delete", "ollama.base_url")
	if out := mustRun(t, home, "config", "get", "ollama.base_url"); strings.TrimSpace(out) != "(not set)" {
		t.Errorf("delete failed: %q", out)
	}

	out = mustRun(t, home, "config", "show")
	if !strings.Contains(out, "provider: stub") {
		t.Errorf("unexpected show output %q", out)
	}
}

func TestCLI_Tools(t *testing.T) {
	home := newHome(t)

	out := mustRun(t, home, "tools", "list")
	if !strings.Contains(out, "insert_archival_memory") || !strings.Contains(out, "search_archival_memory") {
		t.Errorf("unexpected tools list %q", out)
	}

	id := strings.TrimSpace(mustRun(t, home, "tools", "call", "insert_archival_memory", `{"content":"favorite color is blue","user_id":"u1"}`))
	out = mustRun(t, home, "memory", "get", id)
	if !strings.Contains(out, "favorite color is blue") {
		t.Errorf("tool insert not persisted: %q", out)
	}

	out = mustRun(t, home, "tools", "call", "search_archival_memory", `{"query":"favorite color"}`)
	if !strings.HasPrefix(out, "1. ") || !strings.Contains(out, "favorite color is blue") {
		t.Errorf("unexpected search output %q", out)
	}

	if _, err := run(t, home, "tools", "call", "nope", "{}"); err == nil {
		t.Error("expected error for an unknown tool")
	}
	if _, err := run(t, home, "tools", "call", "search_archival_memory", "{not json"); err == nil {
		t.Error("expected error for invalid JSON arguments")
	}
}

func TestCLI_InvalidConfig(t *testing.T) {
	home := t.TempDir()
	path := filepath.Join(home, "bad.yaml")
	os.WriteFile(path, []byte("embedding:\n  provider: bogus\n"), 0600)

	if _, err := run(t, home, "--config", path, "memory", "list"); err == nil {
		t.Error("expected error for an unknown provider")
	}

	broken := filepath.Join(home, "broken.yaml")
	os.WriteFile(broken, []byte("embedding: [unterminated\n"), 0600)
	if _, err := run(t, home, "--config", broken, "memory", "list"); err == nil {
		t.Error("expected error for an unparseable config")
	}
	if _, err := os.Stat(filepath.Join(home, "settings.db")); !os.IsNotExist(err) {
		t.Errorf("a rejected config must not open the settings store: %v", err)
	}
}

func TestResolveHome(t *testing.T) {
	t.Setenv("MNEMO_HOME", "/tmp/from-env")

	if got, _ := resolveHome("/explicit"); got != "/explicit" {
		t.Errorf("flag should win, got %q", got)
	}
	if got, _ := resolveHome(""); got != "/tmp/from-env" {
		t.Errorf("env should be used, got %q", got)
	}
}
