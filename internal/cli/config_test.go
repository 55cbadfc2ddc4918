package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runRootCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	_, err := rootCmd.ExecuteC()
	rootCmd.SetArgs(nil)
	return strings.TrimSpace(buf.String()), err
}

// withHome points every config lookup at a fresh directory and returns the
// data directory.
func withHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USHERBOT_HOME", "")
	t.Setenv("USHERBOT_CONFIG", "")
	t.Setenv("USHERBOT_ENV_FILE", "")
	dataDir := filepath.Join(home, ".usherbot")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("mkdir data dir: %v", err)
	}
	return dataDir
}

func TestVersionCommand(t *testing.T) {
	out, err := runRootCommand(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, version) {
		t.Fatalf("expected version %q in %q", version, out)
	}
}

func TestConfigInitShowValidate(t *testing.T) {
	dataDir := withHome(t)
	t.Cleanup(func() { configInitForce = false })

	out, err := runRootCommand(t, "config", "init")
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if !strings.Contains(out, filepath.Join(dataDir, "config.json")) {
		t.Fatalf("unexpected init output %q", out)
	}
	if _, err := runRootCommand(t, "config", "init"); err == nil {
		t.Fatal("expected second init to refuse overwriting")
	}
	if _, err := runRootCommand(t, "config", "init", "--force"); err != nil {
		t.Fatalf("forced init failed: %v", err)
	}

	out, err = runRootCommand(t, "config", "validate")
	if err != nil || out != "Config OK" {
		t.Fatalf("validate: out=%q err=%v", out, err)
	}

	out, err = runRootCommand(t, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if !strings.Contains(out, `"name": "UsherBot"`) {
		t.Fatalf("expected bot name in %q", out)
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	dataDir := withHome(t)
	body := `{"provider":{"apiKey":"sk-1234567890abcdef"},"bridge":{"authToken":"short"}}`
	if err := os.WriteFile(filepath.Join(dataDir, "config.json"), []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := runRootCommand(t, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	if strings.Contains(out, "sk-1234567890abcdef") || strings.Contains(out, `"short"`) {
		t.Fatalf("secret leaked: %q", out)
	}
	if !strings.Contains(out, "sk-1****cdef") {
		t.Fatalf("expected masked key in %q", out)
	}
}

func TestConfigPathHonoursOverride(t *testing.T) {
	withHome(t)
	custom := filepath.Join(t.TempDir(), "custom.json")
	t.Setenv("USHERBOT_CONFIG", custom)

	out, err := runRootCommand(t, "config", "path")
	if err != nil {
		t.Fatalf("config path failed: %v", err)
	}
	if out != custom {
		t.Fatalf("expected %q, got %q", custom, out)
	}
}

func TestCommandQueuesDirectives(t *testing.T) {
	dataDir := withHome(t)

	if _, err := runRootCommand(t, "command", "lockdown:on", "exit"); err != nil {
		t.Fatalf("command failed: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dataDir, "command_file.txt"))
	if err != nil {
		t.Fatalf("read command file: %v", err)
	}
	if got := strings.Fields(string(data)); len(got) != 2 || got[0] != "lockdown:on" || got[1] != "exit" {
		t.Fatalf("unexpected command file %q", data)
	}

	if _, err := runRootCommand(t, "command", "lockdown:maybe"); err == nil {
		t.Fatal("expected invalid directive to be rejected")
	}
}

func TestUsersCheckAndList(t *testing.T) {
	dataDir := withHome(t)
	if err := os.WriteFile(filepath.Join(dataDir, "good_users.txt"), []byte("Ann Admin|Annie^\nKim\n"), 0o600); err != nil {
		t.Fatalf("write users: %v", err)
	}

	cases := map[string]string{
		"annie":       "annie -> annie: known, admin",
		"Kim (Usher)": "Kim (Usher) -> kim: known",
		"Stranger":    "Stranger -> stranger: unknown",
	}
	for name, want := range cases {
		out, err := runRootCommand(t, "users", "check", name)
		if err != nil {
			t.Fatalf("users check %q failed: %v", name, err)
		}
		if out != want {
			t.Fatalf("users check %q: expected %q, got %q", name, want, out)
		}
	}

	out, err := runRootCommand(t, "users", "list")
	if err != nil {
		t.Fatalf("users list failed: %v", err)
	}
	if !strings.Contains(out, "ann admin") || !strings.Contains(out, "kim") {
		t.Fatalf("unexpected list %q", out)
	}
}

func TestAuditSummaryOnEmptyTrail(t *testing.T) {
	withHome(t)
	t.Cleanup(func() { auditSummary = false })

	out, err := runRootCommand(t, "audit", "--summary")
	if err != nil {
		t.Fatalf("audit failed: %v", err)
	}
	if !strings.HasPrefix(out, "KIND") {
		t.Fatalf("unexpected audit output %q", out)
	}
}

func TestMaskSecret(t *testing.T) {
	for in, want := range map[string]string{
		"":             "",
		"abc":          "****",
		"abcdefghijkl": "abcd****ijkl",
	} {
		if got := maskSecret(in); got != want {
			t.Fatalf("maskSecret(%q) = %q, want %q", in, got, want)
		}
	}
}
