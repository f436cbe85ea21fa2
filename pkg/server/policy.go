package server

import (
	"fmt"
	"strings"

	"github.com/harun/toolgate/pkg/toolexecutor"
	"github.com/rs/zerolog"
)

// ToolPolicy restricts which tools inbound callers may execute.
// Patterns are exact ids, "*" or a prefix ending in "*" (e.g. "mcp-github-*").
type ToolPolicy struct {
	Allow []string
	Deny  []string
}

// AllowAll permits every tool
func AllowAll() *ToolPolicy {
	return &ToolPolicy{Allow: []string{"*"}}
}

// IsToolAllowed checks deny first, then allow. Tools matching neither are denied.
func (p *ToolPolicy) IsToolAllowed(toolID string) bool {
	if p == nil {
		return true
	}
	for _, pattern := range p.Deny {
		if matchPattern(pattern, toolID) {
			return false
		}
	}
	for _, pattern := range p.Allow {
		if matchPattern(pattern, toolID) {
			return true
		}
	}
	return false
}

// Filter keeps the descriptors the policy allows
func (p *ToolPolicy) Filter(tools []*toolexecutor.Descriptor) []*toolexecutor.Descriptor {
	out := make([]*toolexecutor.Descriptor, 0, len(tools))
	for _, d := range tools {
		if p.IsToolAllowed(d.ID) {
			out = append(out, d)
		}
	}
	return out
}

// Validate rejects malformed patterns and warns about rules that shadow each other
func (p *ToolPolicy) Validate(logger zerolog.Logger) error {
	if p == nil {
		return nil
	}

	hasAllowWildcard := false
	hasDenyWildcard := false
	for _, pattern := range p.Allow {
		if err := validatePattern(pattern); err != nil {
			return err
		}
		if pattern == "*" {
			hasAllowWildcard = true
		}
	}
	for _, pattern := range p.Deny {
		if err := validatePattern(pattern); err != nil {
			return err
		}
		if pattern == "*" {
			hasDenyWildcard = true
		}
	}

	if hasAllowWildcard && hasDenyWildcard {
		logger.Warn().Msg("Tool policy has both allow and deny wildcards - deny will override allow")
	}
	if len(p.Allow) == 0 {
		logger.Warn().Msg("Tool policy has empty allow list - all tools will be denied")
	}
	return nil
}

func matchPattern(pattern, toolID string) bool {
	if pattern == "*" {
		return true
	}
	if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		return strings.HasPrefix(toolID, prefix)
	}
	return pattern == toolID
}

func validatePattern(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return fmt.Errorf("empty tool pattern")
	}
	if i := strings.Index(pattern, "*"); i >= 0 && i != len(pattern)-1 {
		return fmt.Errorf("invalid tool pattern %q: wildcard must be the last character", pattern)
	}
	return nil
}
