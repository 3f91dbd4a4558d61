// Package config loads the supervisor's YAML configuration file.
package config

import "claude-supervisor/internal/policy"

// Config is the top-level supervisor configuration.
type Config struct {
	Level        policy.Level `yaml:"level"`
	AutoContinue bool         `yaml:"auto_continue"`
	Bash         BashConfig   `yaml:"bash"`
	Files        FilesConfig  `yaml:"files"`
	Tools        ToolsConfig  `yaml:"tools"`
	AI           AIConfig     `yaml:"ai"`
	Stop         StopConfig   `yaml:"stop"`
}

// BashConfig controls which default blocklist categories are active and
// lets the operator append custom patterns.
type BashConfig struct {
	BlockDestructive         bool     `yaml:"block_destructive"`
	BlockNetworkExfil        bool     `yaml:"block_network_exfil"`
	BlockPrivilegeEscalation bool     `yaml:"block_privilege_escalation"`
	BlockedPatterns          []string `yaml:"blocked_patterns"`
}

// FilesConfig controls sensitive-path protection for Write/Edit tools.
type FilesConfig struct {
	SensitivePaths []string `yaml:"sensitive_paths"`
	AllowEnvFiles  bool     `yaml:"allow_env_files"`
	AllowSSHDir    bool     `yaml:"allow_ssh_dir"`
}

// ToolsConfig holds explicit per-tool overrides.
type ToolsConfig struct {
	Allowed  []string `yaml:"allowed"`
	Denied   []string `yaml:"denied"`
	Escalate []string `yaml:"escalate"`
}

// AIConfig configures the external advisor used for escalations.
type AIConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// StopConfig controls the Stop-hook's continuation behavior (§3.1
// completion status and iteration tracking).
type StopConfig struct {
	AutoContinueLimit int `yaml:"auto_continue_limit"`
}

// DefaultModel and DefaultMaxTokens seed AIConfig when unset.
const (
	DefaultModel     = "claude-3-5-sonnet-20240620"
	DefaultMaxTokens = 1024
)

// Default returns the built-in configuration used when no config file is
// found on the search path.
func Default() *Config {
	return &Config{
		Level:        policy.LevelPermissive,
		AutoContinue: false,
		Bash: BashConfig{
			BlockDestructive:         true,
			BlockNetworkExfil:        true,
			BlockPrivilegeEscalation: true,
		},
		Files: FilesConfig{
			SensitivePaths: append([]string(nil), policy.DefaultSensitivePaths...),
		},
		Tools: ToolsConfig{
			Allowed: []string{"Read", "Glob", "Grep"},
		},
		AI: AIConfig{
			Provider:  "claude",
			Model:     DefaultModel,
			MaxTokens: DefaultMaxTokens,
			APIKeyEnv: "ANTHROPIC_API_KEY",
		},
		Stop: StopConfig{
			AutoContinueLimit: 0,
		},
	}
}

// BuildEngine constructs a policy.Engine reflecting this configuration: the
// configured level, explicit tool sets, sensitive paths, and a blocklist
// assembled from whichever default categories are enabled plus any custom
// patterns.
func (c *Config) BuildEngine() *policy.Engine {
	bl := policy.NewBlocklist()
	if c.Bash.BlockDestructive || c.Bash.BlockNetworkExfil || c.Bash.BlockPrivilegeEscalation {
		defaults := policy.NewDefaultBlocklist()
		for _, r := range defaults.Rules() {
			switch r.Category {
			case policy.CategoryDestructive:
				if !c.Bash.BlockDestructive {
					continue
				}
			case policy.CategoryNetworkExfil:
				if !c.Bash.BlockNetworkExfil {
					continue
				}
			case policy.CategoryPrivilege:
				if !c.Bash.BlockPrivilegeEscalation {
					continue
				}
			}
			bl.AddRule(r)
		}
	}
	for _, p := range c.Bash.BlockedPatterns {
		rule, err := policy.NewBlocklistRule(policy.CategorySystemModification, p, "custom pattern")
		if err == nil {
			bl.AddRule(rule)
		}
	}

	e := policy.WithBlocklist(c.Level, bl)
	if len(c.Files.SensitivePaths) > 0 {
		e.SetSensitivePaths(c.Files.SensitivePaths)
	}
	if c.Files.AllowEnvFiles {
		e.AllowPathException(".env")
	}
	if c.Files.AllowSSHDir {
		e.AllowPathException(".ssh/")
	}
	for _, t := range c.Tools.Allowed {
		e.AllowTool(t)
	}
	for _, t := range c.Tools.Denied {
		e.DenyTool(t)
	}
	for _, t := range c.Tools.Escalate {
		e.EscalateTool(t)
	}
	return e
}
