package config

import (
	"strings"
	"testing"

	"claude-supervisor/internal/policy"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Level != policy.LevelPermissive {
		t.Fatalf("Level = %v, want permissive", cfg.Level)
	}
	if !cfg.Bash.BlockDestructive || !cfg.Bash.BlockNetworkExfil || !cfg.Bash.BlockPrivilegeEscalation {
		t.Fatal("expected all default bash block flags to be true")
	}
	if len(cfg.Tools.Allowed) != 3 {
		t.Fatalf("Tools.Allowed = %v, want 3 entries", cfg.Tools.Allowed)
	}
}

func TestParseExpandsEnv(t *testing.T) {
	t.Setenv("TEST_SUPERVISOR_MODEL", "claude-custom")
	yaml := []byte("level: strict\nai:\n  model: ${TEST_SUPERVISOR_MODEL}\n")
	cfg, err := parse(yaml)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Level != policy.LevelStrict {
		t.Fatalf("Level = %v, want strict", cfg.Level)
	}
	if cfg.AI.Model != "claude-custom" {
		t.Fatalf("AI.Model = %q, want claude-custom", cfg.AI.Model)
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := parse([]byte("auto_continue: true\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Level != policy.LevelPermissive {
		t.Fatalf("Level = %v, want default permissive", cfg.Level)
	}
	if cfg.AI.MaxTokens != DefaultMaxTokens {
		t.Fatalf("MaxTokens = %d, want %d", cfg.AI.MaxTokens, DefaultMaxTokens)
	}
}

func TestBuildEngineDisablesCategory(t *testing.T) {
	cfg := Default()
	cfg.Bash.BlockDestructive = false
	e := cfg.BuildEngine()

	d := e.Evaluate("Bash", []byte(`{"command":"rm -rf /"}`))
	if !d.IsAllow() {
		t.Fatalf("expected destructive check disabled to allow, got %+v", d)
	}

	d = e.Evaluate("Bash", []byte(`{"command":"sudo rm /etc/passwd"}`))
	if !d.IsDeny() || !strings.Contains(d.Reason, "privilege") {
		t.Fatalf("expected privilege escalation still blocked, got %+v", d)
	}
}

func TestBuildEngineToolSets(t *testing.T) {
	cfg := Default()
	cfg.Tools.Denied = []string{"Dangerous"}
	e := cfg.BuildEngine()

	d := e.Evaluate("Dangerous", []byte(`{}`))
	if !d.IsDeny() {
		t.Fatalf("expected explicit deny, got %+v", d)
	}
	d = e.Evaluate("Read", []byte(`{}`))
	if !d.IsAllow() {
		t.Fatalf("expected Read allowed by default tool set, got %+v", d)
	}
}

func TestBuildEngineEscalatedTools(t *testing.T) {
	cfg := Default()
	cfg.Tools.Escalate = []string{"Bash"}
	e := cfg.BuildEngine()

	d := e.Evaluate("Bash", []byte(`{"command":"echo hi"}`))
	if d.Kind != policy.Escalate {
		t.Fatalf("expected Bash to always escalate, got %+v", d)
	}
}

func TestBuildEngineFileExceptions(t *testing.T) {
	cfg := Default()
	e := cfg.BuildEngine()
	d := e.Evaluate("Write", []byte(`{"file_path":"/project/.env"}`))
	if !d.IsDeny() {
		t.Fatalf("expected .env write denied by default, got %+v", d)
	}

	cfg = Default()
	cfg.Files.AllowEnvFiles = true
	cfg.Files.AllowSSHDir = true
	e = cfg.BuildEngine()

	d = e.Evaluate("Write", []byte(`{"file_path":"/project/.env"}`))
	if !d.IsAllow() {
		t.Fatalf("expected .env write allowed once exempted, got %+v", d)
	}
	d = e.Evaluate("Write", []byte(`{"file_path":"/home/user/.ssh/id_rsa"}`))
	if !d.IsAllow() {
		t.Fatalf("expected .ssh write allowed once exempted, got %+v", d)
	}
	d = e.Evaluate("Write", []byte(`{"file_path":"/etc/passwd"}`))
	if !d.IsDeny() {
		t.Fatalf("expected /etc/passwd write to remain denied, got %+v", d)
	}
}
