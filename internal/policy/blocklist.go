package policy

import (
	"fmt"
	"log/slog"
	"regexp"
)

// RuleCategory classifies the kind of risk a blocklist rule guards against.
type RuleCategory string

const (
	CategoryDestructive         RuleCategory = "destructive"
	CategoryPrivilege           RuleCategory = "privilege"
	CategoryNetworkExfil        RuleCategory = "network_exfil"
	CategorySecretAccess        RuleCategory = "secret_access"
	CategorySystemModification  RuleCategory = "system_modification"
)

// categoryName returns the human-readable label used in denial messages.
func categoryName(c RuleCategory) string {
	switch c {
	case CategoryDestructive:
		return "destructive"
	case CategoryPrivilege:
		return "privilege escalation"
	case CategoryNetworkExfil:
		return "network exfiltration"
	case CategorySecretAccess:
		return "secret access"
	case CategorySystemModification:
		return "system modification"
	default:
		return string(c)
	}
}

// BlocklistRule pairs a compiled regex against shell commands with the
// category and human description surfaced in denial reasons.
type BlocklistRule struct {
	Category    RuleCategory
	Pattern     *regexp.Regexp
	Description string
}

// NewBlocklistRule compiles pattern and returns the rule, or an error if the
// pattern does not compile.
func NewBlocklistRule(category RuleCategory, pattern, description string) (BlocklistRule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return BlocklistRule{}, fmt.Errorf("invalid regex pattern: %w", err)
	}
	return BlocklistRule{Category: category, Pattern: re, Description: description}, nil
}

// Matches reports whether command matches this rule's pattern.
func (r BlocklistRule) Matches(command string) bool {
	return r.Pattern.MatchString(command)
}

// Blocklist is an ordered collection of rules; the first match wins.
type Blocklist struct {
	rules []BlocklistRule
}

// NewBlocklist returns an empty blocklist.
func NewBlocklist() *Blocklist {
	return &Blocklist{}
}

// NewDefaultBlocklist returns a blocklist seeded with the built-in security
// rules. A rule whose pattern fails to compile is skipped with a warning; it
// never prevents the rest of the defaults from loading.
func NewDefaultBlocklist() *Blocklist {
	bl := &Blocklist{}
	for _, spec := range defaultRuleSpecs {
		rule, err := NewBlocklistRule(spec.category, spec.pattern, spec.description)
		if err != nil {
			slog.Warn("skipping default blocklist rule", "pattern", spec.pattern, "error", err)
			continue
		}
		bl.AddRule(rule)
	}
	return bl
}

// AddRule appends rule to the blocklist.
func (b *Blocklist) AddRule(rule BlocklistRule) {
	b.rules = append(b.rules, rule)
}

// Check returns the first rule matching command, or nil if none match.
func (b *Blocklist) Check(command string) *BlocklistRule {
	for i := range b.rules {
		if b.rules[i].Matches(command) {
			return &b.rules[i]
		}
	}
	return nil
}

// IsEmpty reports whether the blocklist has no rules.
func (b *Blocklist) IsEmpty() bool { return len(b.rules) == 0 }

// Len returns the number of rules.
func (b *Blocklist) Len() int { return len(b.rules) }

// Rules returns all rules in evaluation order.
func (b *Blocklist) Rules() []BlocklistRule { return b.rules }

type ruleSpec struct {
	category    RuleCategory
	pattern     string
	description string
}

var defaultRuleSpecs = []ruleSpec{
	// Destructive
	{CategoryDestructive, `rm\s+(-[a-zA-Z]*\s+)*-?[a-zA-Z]*r[a-zA-Z]*f[a-zA-Z]*\s+/($|\s)`, "Recursive forced delete from root"},
	{CategoryDestructive, `rm\s+(-[a-zA-Z]*\s+)*-?[a-zA-Z]*f[a-zA-Z]*r[a-zA-Z]*\s+/($|\s)`, "Recursive forced delete from root (fr variant)"},
	{CategoryDestructive, `mkfs\.`, "Filesystem formatting"},
	{CategoryDestructive, `dd\s+.*if=.*of=/dev/`, "Raw disk write"},
	{CategoryDestructive, `>\s*/dev/sd[a-z]`, "Direct write to block device"},
	// Privilege escalation
	{CategoryPrivilege, `sudo\s+rm\s`, "Privileged deletion"},
	{CategoryPrivilege, `chmod\s+777\s`, "Overly permissive permissions"},
	{CategoryPrivilege, `chown\s+root\s`, "Changing ownership to root"},
	{CategoryPrivilege, `sudo\s+chmod\s`, "Privileged permission change"},
	// Network exfiltration
	{CategoryNetworkExfil, `curl\s+.*\|\s*(ba)?sh`, "Piped remote code execution (curl)"},
	{CategoryNetworkExfil, `wget\s+.*\|\s*(ba)?sh`, "Piped remote code execution (wget)"},
	{CategoryNetworkExfil, `wget\s+.*-O\s*-?\s*\|\s*(ba)?sh`, "Piped remote code execution (wget -O)"},
	{CategoryNetworkExfil, `curl\s+.*-o\s*-?\s*\|\s*(ba)?sh`, "Piped remote code execution (curl -o)"},
	// Secret access
	{CategorySecretAccess, `>\s*~?/?\.ssh/`, "Writing to SSH directory"},
	{CategorySecretAccess, `>\s*~?/?\.aws/`, "Writing to AWS credentials"},
	{CategorySecretAccess, `>\s*/etc/shadow`, "Writing to shadow file"},
	{CategorySecretAccess, `cat\s+.*\.ssh/id_`, "Reading SSH private key"},
	{CategorySecretAccess, `cat\s+/etc/shadow`, "Reading shadow file"},
	// System modification
	{CategorySystemModification, `>\s*/etc/passwd`, "Writing to passwd file"},
	{CategorySystemModification, `>\s*/etc/sudoers`, "Writing to sudoers file"},
	{CategorySystemModification, `:\(\)\s*\{\s*:\|:`, "Fork bomb pattern"},
	{CategorySystemModification, `crontab\s+-r`, "Removing crontab"},
}

// DefaultSensitivePaths are substrings that mark a file path as sensitive
// regardless of policy level.
var DefaultSensitivePaths = []string{
	"/etc/passwd",
	"/etc/shadow",
	"/etc/sudoers",
	".ssh/",
	".aws/",
	".gnupg/",
	".env",
	"id_rsa",
	"id_ed25519",
}
