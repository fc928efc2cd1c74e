package warden

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy declares the moderation rules the warden enforces. Deployments
// override the defaults with a YAML policy file.
type Policy struct {
	// BannedPhrases are matched by case-insensitive substring containment.
	BannedPhrases []string `yaml:"banned_phrases"`
	// BannedWords are matched only at word boundaries, so "scam" never
	// fires on "scamper".
	BannedWords []string `yaml:"banned_words"`
	// StrikeLimit is the violation count at which an agent is banned.
	StrikeLimit int `yaml:"strike_limit"`
	// Whitelist names agent ids that bypass inspection entirely.
	Whitelist []string `yaml:"whitelist"`
}

// DefaultPolicy returns the built-in rule set.
func DefaultPolicy() Policy {
	return Policy{
		BannedPhrases: []string{
			"buy now", "sell now", "pump it", "rug pull", "get rich",
			"airdrop", "presale", "ico ", " nft mint", "xxx", "onlyfans",
		},
		BannedWords: []string{"scam", "spam", "phishing"},
		StrikeLimit: 3,
		Whitelist: []string{
			"el-verdugo", "github-actions-validator",
			"fran-validator-1", "fran-validator-2", "fran-validator-3",
		},
	}
}

// LoadPolicy reads a YAML policy file. Fields absent from the file fall
// back to the defaults, so a file may override only the whitelist or only
// the strike limit.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	policy := Policy{}
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return Policy{}, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	defaults := DefaultPolicy()
	if len(policy.BannedPhrases) == 0 {
		policy.BannedPhrases = defaults.BannedPhrases
	}
	if len(policy.BannedWords) == 0 {
		policy.BannedWords = defaults.BannedWords
	}
	if policy.StrikeLimit <= 0 {
		policy.StrikeLimit = defaults.StrikeLimit
	}
	if len(policy.Whitelist) == 0 {
		policy.Whitelist = defaults.Whitelist
	}
	return policy, nil
}

func (p Policy) whitelisted(agentID string) bool {
	for _, id := range p.Whitelist {
		if id == agentID {
			return true
		}
	}
	return false
}

func (p Policy) normalizedPhrases() []string {
	phrases := make([]string, 0, len(p.BannedPhrases))
	for _, phrase := range p.BannedPhrases {
		phrases = append(phrases, strings.ToLower(phrase))
	}
	return phrases
}
