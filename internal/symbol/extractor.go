// Package symbol classifies top-level MeTTa forms and groups them by the
// symbol they define, call, assert or type.
package symbol

import (
	"fmt"
	"regexp"

	"github.com/randalmurphal/metta-indexer/internal/parser"
)

// Role is the part a top-level form plays for its head symbol.
type Role string

const (
	RoleDefinition Role = "def"
	RoleCall       Role = "call"
	RoleAssert     Role = "assert"
	RoleType       Role = "type"
	RoleUnknown    Role = "unknown"
)

// Roles lists the indexable roles in bucket order. Chunk coherence depends
// on definitions coming before calls, asserts and types.
var Roles = []Role{RoleDefinition, RoleCall, RoleAssert, RoleType}

const assertHead = "assertEqual"

var (
	rulePattern   = regexp.MustCompile(`^\(\s*=\s*\(\s*([A-Za-z0-9_-]+)`)
	callPattern   = regexp.MustCompile(`^!\s*\(\s*([A-Za-z0-9_-]+)`)
	assertPattern = regexp.MustCompile(`^!\s*\(\s*assertEqual\s*\(\s*([A-Za-z0-9_-]+)`)
	typePattern   = regexp.MustCompile(`^\(\s*:\s*([A-Za-z0-9_-]+)`)
)

// Head is the classification of one top-level node.
type Head struct {
	Name string
	Role Role
}

// Indexable reports whether the head should be added to an index.
func (h Head) Indexable() bool {
	return h.Role != RoleUnknown && h.Name != ""
}

// Extract classifies a top-level node. position is the node's index among
// the file's top-level nodes and names comments, which always index as
// their own definition.
func Extract(n parser.Node, source string, position int) Head {
	text := parser.Text(n, source)

	switch n.Kind() {
	case parser.KindRuleGroup:
		if m := rulePattern.FindStringSubmatch(text); m != nil {
			return Head{Name: m[1], Role: RoleDefinition}
		}

	case parser.KindCallGroup, parser.KindExpressionGroup:
		m := callPattern.FindStringSubmatch(text)
		if m == nil {
			break
		}
		if m[1] != assertHead {
			return Head{Name: m[1], Role: RoleCall}
		}
		if inner := assertPattern.FindStringSubmatch(text); inner != nil {
			return Head{Name: inner[1], Role: RoleAssert}
		}
		return Head{Role: RoleAssert}

	case parser.KindTypeCheckGroup:
		if m := typePattern.FindStringSubmatch(text); m != nil {
			return Head{Name: m[1], Role: RoleType}
		}

	case parser.KindComment:
		return Head{Name: fmt.Sprintf("comment_%d", position), Role: RoleDefinition}
	}

	return Head{Role: RoleUnknown}
}
