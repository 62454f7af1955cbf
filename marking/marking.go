package marking

import (
	"sort"

	"github.com/project-flogo/petriflow/identifier"
)

// Marking is the distribution of the tokens of one case over the elements
// of its net.  Tokens on a condition are waiting to be consumed, tokens on a
// task belong to running instances of that task.  The tokens of an element
// are kept in arrival order.
type Marking struct {
	tokens map[string][]*identifier.Identifier
}

// New creates an empty marking
func New() *Marking {
	return &Marking{tokens: make(map[string][]*identifier.Identifier)}
}

// Add puts the token on the specified element
func (m *Marking) Add(elementID string, token *identifier.Identifier) {
	token.MoveTo(elementID)
	m.tokens[elementID] = append(m.tokens[elementID], token)
}

// Remove takes the token with the specified id off the element, it returns
// false if the element does not hold it
func (m *Marking) Remove(elementID string, tokenID string) bool {
	tokens := m.tokens[elementID]
	for idx, token := range tokens {
		if token.ID() == tokenID {
			tokens = append(tokens[:idx:idx], tokens[idx+1:]...)
			if len(tokens) == 0 {
				delete(m.tokens, elementID)
			} else {
				m.tokens[elementID] = tokens
			}
			return true
		}
	}
	return false
}

// RemoveAll takes every token off the element and returns them
func (m *Marking) RemoveAll(elementID string) []*identifier.Identifier {
	tokens := m.tokens[elementID]
	delete(m.tokens, elementID)
	return tokens
}

// Tokens returns the tokens on the element in arrival order
func (m *Marking) Tokens(elementID string) []*identifier.Identifier {
	tokens := m.tokens[elementID]
	if len(tokens) == 0 {
		return nil
	}
	cp := make([]*identifier.Identifier, len(tokens))
	copy(cp, tokens)
	return cp
}

// Find returns the token with the specified id on the element
func (m *Marking) Find(elementID string, tokenID string) *identifier.Identifier {
	for _, token := range m.tokens[elementID] {
		if token.ID() == tokenID {
			return token
		}
	}
	return nil
}

// Count returns the number of tokens on the element
func (m *Marking) Count(elementID string) int {
	return len(m.tokens[elementID])
}

// IsMarked indicates if the element holds at least one token
func (m *Marking) IsMarked(elementID string) bool {
	return len(m.tokens[elementID]) > 0
}

// Total returns the number of tokens in the marking
func (m *Marking) Total() int {
	total := 0
	for _, tokens := range m.tokens {
		total += len(tokens)
	}
	return total
}

// Marked returns the ids of the elements holding tokens, sorted
func (m *Marking) Marked() []string {
	ids := make([]string, 0, len(m.tokens))
	for id := range m.tokens {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns the ids of the tokens per element
func (m *Marking) Snapshot() map[string][]string {
	snapshot := make(map[string][]string, len(m.tokens))
	for elementID, tokens := range m.tokens {
		ids := make([]string, len(tokens))
		for idx, token := range tokens {
			ids[idx] = token.ID()
		}
		snapshot[elementID] = ids
	}
	return snapshot
}

// Clear removes every token and returns them
func (m *Marking) Clear() []*identifier.Identifier {
	var all []*identifier.Identifier
	for _, elementID := range m.Marked() {
		all = append(all, m.tokens[elementID]...)
	}
	m.tokens = make(map[string][]*identifier.Identifier)
	return all
}

// Clone returns a copy of the marking sharing the tokens
func (m *Marking) Clone() *Marking {
	clone := New()
	for elementID, tokens := range m.tokens {
		cp := make([]*identifier.Identifier, len(tokens))
		copy(cp, tokens)
		clone.tokens[elementID] = cp
	}
	return clone
}
