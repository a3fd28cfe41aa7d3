// Package agentyaml validates generated agent configuration documents
// against the structural rules every emitted artifact must satisfy:
// a non-empty description, at least one scheduled task, and secrets
// referenced only through indirections.
package agentyaml

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValidationError lists every structural rule the document breaks. The
// generation stage feeds the violations back to the model as a correction
// note before giving up.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "agentyaml: " + strings.Join(e.Violations, "; ")
}

// Requirements are the conversation-derived sections the document must carry in
// addition to the always-on rules.
type Requirements struct {
	// NotificationChannel, when set, requires a matching integration
	// section (e.g. "slack" or "email") somewhere under integrations.
	NotificationChannel string
}

var (
	secretKeyRE   = regexp.MustCompile(`(?i)(api_?key|token|secret|password|credential)$`)
	envNameRE     = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
	placeholderRE = regexp.MustCompile(`^\$\{?[A-Za-z_][A-Za-z0-9_]*\}?$`)
)

// Validate parses doc and checks the structural rules. A nil return means
// the document may be surfaced to the user.
func Validate(doc string, req Requirements) error {
	var root map[string]any
	if err := yaml.Unmarshal([]byte(doc), &root); err != nil {
		return &ValidationError{Violations: []string{fmt.Sprintf("document is not valid YAML: %v", err)}}
	}
	if len(root) == 0 {
		return &ValidationError{Violations: []string{"document is empty"}}
	}

	var violations []string
	if description(root) == "" {
		violations = append(violations, "missing non-empty description (metadata.description or agent.description)")
	}
	if !hasInterval(root) {
		violations = append(violations, "missing scheduled task: intervals must declare at least one entry")
	}
	violations = append(violations, literalSecrets(root, "")...)
	if ch := strings.TrimSpace(req.NotificationChannel); ch != "" {
		if !hasIntegration(root, ch) {
			violations = append(violations, fmt.Sprintf("notification channel %q has no matching integrations section", ch))
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

func description(root map[string]any) string {
	for _, section := range []string{"metadata", "agent"} {
		m, ok := root[section].(map[string]any)
		if !ok {
			continue
		}
		if d, ok := m["description"].(string); ok && strings.TrimSpace(d) != "" {
			return strings.TrimSpace(d)
		}
	}
	return ""
}

func hasInterval(root map[string]any) bool {
	switch v := root["intervals"].(type) {
	case []any:
		return len(v) > 0
	case map[string]any:
		return len(v) > 0
	default:
		return false
	}
}

// literalSecrets walks the document and reports credential-bearing keys
// whose value is a literal rather than an indirection. Keys ending in
// _env always pass: their value names the variable, not the secret.
func literalSecrets(v any, path string) []string {
	var out []string
	switch x := v.(type) {
	case map[string]any:
		for k, vv := range x {
			p := k
			if path != "" {
				p = path + "." + k
			}
			if strings.HasSuffix(strings.ToLower(k), "_env") {
				continue
			}
			if secretKeyRE.MatchString(k) {
				if s, ok := vv.(string); ok && strings.TrimSpace(s) != "" && !isIndirection(s) {
					out = append(out, fmt.Sprintf("literal credential at %s; use an env indirection", p))
				}
				continue
			}
			out = append(out, literalSecrets(vv, p)...)
		}
	case []any:
		for i, vv := range x {
			out = append(out, literalSecrets(vv, fmt.Sprintf("%s[%d]", path, i))...)
		}
	}
	return out
}

func isIndirection(s string) bool {
	s = strings.TrimSpace(s)
	if placeholderRE.MatchString(s) {
		return true
	}
	if strings.HasPrefix(s, "env:") {
		return true
	}
	return envNameRE.MatchString(s)
}

func hasIntegration(root map[string]any, channel string) bool {
	integrations, ok := root["integrations"].(map[string]any)
	if !ok {
		return false
	}
	return containsKey(integrations, strings.ToLower(channel))
}

func containsKey(v any, key string) bool {
	switch x := v.(type) {
	case map[string]any:
		for k, vv := range x {
			if strings.ToLower(k) == key {
				return true
			}
			if containsKey(vv, key) {
				return true
			}
		}
	case []any:
		for _, vv := range x {
			if containsKey(vv, key) {
				return true
			}
		}
	}
	return false
}
