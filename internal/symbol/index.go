package symbol

import (
	"context"
	"fmt"
	"sync"
)

// Fragment references a piece of source belonging to a symbol. It holds
// either the literal text or the id of a stored text node.
type Fragment struct {
	Path   string `json:"path"`
	Text   string `json:"text,omitempty"`
	NodeID string `json:"node_id,omitempty"`
}

// Entry is one row of the index: every fragment seen for a symbol name,
// bucketed by role.
type Entry struct {
	Name        string     `json:"name"`
	Definitions []Fragment `json:"definitions,omitempty"`
	Calls       []Fragment `json:"calls,omitempty"`
	Asserts     []Fragment `json:"asserts,omitempty"`
	Types       []Fragment `json:"types,omitempty"`
}

// Bucket returns the fragment list for role, or nil for RoleUnknown.
func (e *Entry) Bucket(role Role) *[]Fragment {
	switch role {
	case RoleDefinition:
		return &e.Definitions
	case RoleCall:
		return &e.Calls
	case RoleAssert:
		return &e.Asserts
	case RoleType:
		return &e.Types
	}
	return nil
}

// Fragments returns the row's fragments in bucket order.
func (e *Entry) Fragments() []Fragment {
	out := make([]Fragment, 0, len(e.Definitions)+len(e.Calls)+len(e.Asserts)+len(e.Types))
	for _, role := range Roles {
		out = append(out, *e.Bucket(role)...)
	}
	return out
}

// Index is a scoped multi-map from symbol name to role-bucketed fragments.
// Adding the same fragment to the same bucket twice has no effect. A scope
// accumulates until it is cleared; callers must clear a scope before it is
// reused for unrelated files.
//
// AddAll applies a batch atomically: on error none of it is visible in
// the scope.
type Index interface {
	Add(ctx context.Context, scope, name string, role Role, frag Fragment) error
	AddAll(ctx context.Context, scope string, adds []Addition) error
	Rows(ctx context.Context, scope string) ([]Entry, error)
	Clear(ctx context.Context, scope string) error
}

// Addition is one fragment to add under a symbol name and role.
type Addition struct {
	Name     string
	Role     Role
	Fragment Fragment
}

func (a Addition) validate() error {
	if a.Name == "" {
		return fmt.Errorf("empty symbol name")
	}
	if (&Entry{}).Bucket(a.Role) == nil {
		return fmt.Errorf("symbol %q: role %q is not indexable", a.Name, a.Role)
	}
	return nil
}

type fragmentKey struct {
	name string
	role Role
	frag Fragment
}

type scopeRows struct {
	order   []string
	entries map[string]*Entry
	seen    map[fragmentKey]struct{}
}

// MemoryIndex is an in-process Index. It is safe for concurrent use; rows
// are returned in the order their names were first added.
type MemoryIndex struct {
	mu     sync.Mutex
	scopes map[string]*scopeRows
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{scopes: make(map[string]*scopeRows)}
}

// Add appends frag to the role bucket of name within scope.
func (m *MemoryIndex) Add(ctx context.Context, scope, name string, role Role, frag Fragment) error {
	return m.AddAll(ctx, scope, []Addition{{Name: name, Role: role, Fragment: frag}})
}

// AddAll adds every addition to scope, or none if any is invalid.
func (m *MemoryIndex) AddAll(_ context.Context, scope string, adds []Addition) error {
	for _, a := range adds {
		if err := a.validate(); err != nil {
			return err
		}
	}
	if len(adds) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.scopes[scope]
	if !ok {
		rows = &scopeRows{
			entries: make(map[string]*Entry),
			seen:    make(map[fragmentKey]struct{}),
		}
		m.scopes[scope] = rows
	}

	for _, a := range adds {
		entry, ok := rows.entries[a.Name]
		if !ok {
			entry = &Entry{Name: a.Name}
			rows.entries[a.Name] = entry
			rows.order = append(rows.order, a.Name)
		}

		key := fragmentKey{name: a.Name, role: a.Role, frag: a.Fragment}
		if _, dup := rows.seen[key]; dup {
			continue
		}
		rows.seen[key] = struct{}{}
		bucket := entry.Bucket(a.Role)
		*bucket = append(*bucket, a.Fragment)
	}

	return nil
}

// Rows returns a copy of every entry in scope.
func (m *MemoryIndex) Rows(_ context.Context, scope string) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rows, ok := m.scopes[scope]
	if !ok {
		return nil, nil
	}

	out := make([]Entry, 0, len(rows.order))
	for _, name := range rows.order {
		e := rows.entries[name]
		out = append(out, Entry{
			Name:        e.Name,
			Definitions: append([]Fragment(nil), e.Definitions...),
			Calls:       append([]Fragment(nil), e.Calls...),
			Asserts:     append([]Fragment(nil), e.Asserts...),
			Types:       append([]Fragment(nil), e.Types...),
		})
	}
	return out, nil
}

// Clear drops every entry in scope.
func (m *MemoryIndex) Clear(_ context.Context, scope string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.scopes, scope)
	return nil
}
