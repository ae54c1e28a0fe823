// Package normalize strips supplier-name noise from product labels.
package normalize

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Policy rewrites a raw label into its comparable form.
type Policy interface {
	Normalize(label string) string
}

// Normalize applies the token policy for the given source names.
func Normalize(label string, sourceNames []string) string {
	return NewTokenPolicy(sourceNames...).Normalize(label)
}

// TokenPolicy removes a source name only when it is a standalone leading or trailing token.
type TokenPolicy struct {
	names []string
}

// NewTokenPolicy keeps the order of names; empty names are ignored.
func NewTokenPolicy(names ...string) *TokenPolicy {
	return &TokenPolicy{names: cleanNames(names)}
}

// Normalize strips one leading "<name> " and one trailing " <name>" per name, in order.
// Passes repeat until the label is stable so the result is idempotent.
func (p *TokenPolicy) Normalize(label string) string {
	return untilStable(label, func(s string) string {
		for _, name := range p.names {
			if rest, ok := strings.CutPrefix(s, name+" "); ok {
				s = strings.TrimSpace(rest)
			}
			if rest, ok := strings.CutSuffix(s, " "+name); ok {
				s = strings.TrimSpace(rest)
			}
		}
		return s
	})
}

// SubstringPolicy replaces " <name>" and "<name> " anywhere in the label. This is
// how the first import job cleaned names and it also eats names glued mid-label.
type SubstringPolicy struct {
	names []string
}

// NewSubstringPolicy keeps the order of names; empty names are ignored.
func NewSubstringPolicy(names ...string) *SubstringPolicy {
	return &SubstringPolicy{names: cleanNames(names)}
}

// Normalize removes every spaced occurrence of each name, in order.
func (p *SubstringPolicy) Normalize(label string) string {
	return untilStable(label, func(s string) string {
		for _, name := range p.names {
			s = strings.ReplaceAll(s, " "+name, "")
			s = strings.ReplaceAll(s, name+" ", "")
		}
		return strings.TrimSpace(s)
	})
}

// ForStrategy picks a policy by config name; unknown names fall back to the token policy.
func ForStrategy(strategy string, names []string) Policy {
	if strings.EqualFold(strings.TrimSpace(strategy), "substring") {
		return NewSubstringPolicy(names...)
	}
	return NewTokenPolicy(names...)
}

func untilStable(label string, pass func(string) string) string {
	current := strings.TrimSpace(norm.NFC.String(label))
	for {
		next := pass(current)
		if next == current {
			return current
		}
		current = next
	}
}

func cleanNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(norm.NFC.String(name))
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}
