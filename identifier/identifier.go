package identifier

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/project-flogo/petriflow/util"
)

// Identifier is a unit of case identity flowing through a net. Identifiers
// are owned by the child collection of their parent; the parent itself is
// only referenced by id and resolved through the owning Tree.
type Identifier struct {
	tree     *Tree
	id       string
	parentID string
	children []*Identifier
	childSeq int

	location string
	data     map[string]interface{}
	live     bool
}

// ID returns the id of the identifier
func (i *Identifier) ID() string {
	return i.id
}

// ParentID returns the id of the parent, empty for the root
func (i *Identifier) ParentID() string {
	return i.parentID
}

// Parent resolves the parent of the identifier, nil for the root
func (i *Identifier) Parent() *Identifier {
	if i.parentID == "" {
		return nil
	}
	return i.tree.nodes[i.parentID]
}

// Children returns the children currently owned by the identifier
func (i *Identifier) Children() []*Identifier {
	children := make([]*Identifier, len(i.children))
	copy(children, i.children)
	return children
}

// Location returns the id of the net element the identifier is located on
func (i *Identifier) Location() string {
	return i.location
}

// MoveTo updates the location of the identifier
func (i *Identifier) MoveTo(elementID string) {
	i.location = elementID
}

// Data returns a copy of the data payload of the identifier
func (i *Identifier) Data() map[string]interface{} {
	return util.DeepCopyMap(i.data)
}

// SetValue sets a value in the data payload of the identifier
func (i *Identifier) SetValue(name string, value interface{}) {
	if i.data == nil {
		i.data = make(map[string]interface{})
	}
	i.data[name] = value
}

// IsLive indicates if the identifier has not been released
func (i *Identifier) IsLive() bool {
	return i.live
}

// CreateChild creates a new live identifier whose parent is i. The child
// inherits a copy of the data payload of its parent. An empty id generates
// one of the form "<parent>.<n>". CreateChild panics if the id is already
// used in the tree.
func (i *Identifier) CreateChild(id string) *Identifier {
	i.childSeq++
	if id == "" {
		id = i.id + "." + strconv.Itoa(i.childSeq)
		for i.tree.exists(id) {
			i.childSeq++
			id = i.id + "." + strconv.Itoa(i.childSeq)
		}
	} else if i.tree.exists(id) {
		panic(fmt.Sprintf("identifier: duplicate identifier '%s'", id))
	}

	child := &Identifier{
		tree:     i.tree,
		id:       id,
		parentID: i.id,
		location: i.location,
		data:     util.DeepCopyMap(i.data),
		live:     true,
	}
	i.children = append(i.children, child)
	i.tree.nodes[id] = child

	return child
}

// Root returns the root of the lineage of the identifier
func (i *Identifier) Root() *Identifier {
	return i.tree.root
}

// IsAncestorOf indicates if i is a strict ancestor of other
func (i *Identifier) IsAncestorOf(other *Identifier) bool {
	if other == nil || other.tree != i.tree {
		return false
	}
	for p := other.Parent(); p != nil; p = p.Parent() {
		if p == i {
			return true
		}
	}
	return false
}

// Depth returns the number of ancestors of the identifier, 0 for the root
func (i *Identifier) Depth() int {
	depth := 0
	for p := i.Parent(); p != nil; p = p.Parent() {
		depth++
	}
	return depth
}

// Ancestors returns the ancestors of the identifier, nearest first
func (i *Identifier) Ancestors() []*Identifier {
	var ancestors []*Identifier
	for p := i.Parent(); p != nil; p = p.Parent() {
		ancestors = append(ancestors, p)
	}
	return ancestors
}

func (i *Identifier) String() string {
	return i.id
}

// Tree is the arena holding the lineage of one case. The case owns the
// root; every other identifier is owned by its parent.
type Tree struct {
	root  *Identifier
	nodes map[string]*Identifier
}

// NewTree creates a lineage tree with a live root identifier
func NewTree(rootID string, data map[string]interface{}) *Tree {
	t := &Tree{nodes: make(map[string]*Identifier)}
	t.root = &Identifier{tree: t, id: rootID, data: util.DeepCopyMap(data), live: true}
	t.nodes[rootID] = t.root
	return t
}

// Root returns the root identifier of the tree
func (t *Tree) Root() *Identifier {
	return t.root
}

// Get returns the identifier with the specified id
func (t *Tree) Get(id string) (*Identifier, bool) {
	ident, ok := t.nodes[id]
	return ident, ok
}

// Len returns the number of identifiers held by the tree, live or not
func (t *Tree) Len() int {
	return len(t.nodes)
}

// All returns every identifier of the tree, parents before children
func (t *Tree) All() []*Identifier {
	all := make([]*Identifier, 0, len(t.nodes))
	var walk func(i *Identifier)
	walk = func(i *Identifier) {
		all = append(all, i)
		for _, child := range i.children {
			walk(child)
		}
	}
	walk(t.root)
	return all
}

func (t *Tree) exists(id string) bool {
	_, ok := t.nodes[id]
	return ok
}

// NearestCommonAncestor returns the deepest identifier that is the same as,
// or an ancestor of, every specified identifier. It returns nil if the
// identifiers do not share a tree.
func (t *Tree) NearestCommonAncestor(idents ...*Identifier) *Identifier {
	if len(idents) == 0 {
		return nil
	}

	nca := idents[0]
	if nca.tree != t {
		return nil
	}

	for _, other := range idents[1:] {
		if other.tree != t {
			return nil
		}
		for nca != other && !nca.IsAncestorOf(other) {
			nca = nca.Parent()
			if nca == nil {
				return nil
			}
		}
	}

	return nca
}

// Release marks the identifier as no longer live. Released identifiers are
// pruned from the tree as soon as they own no children; the root is never
// pruned.
func (t *Tree) Release(ident *Identifier) {
	if ident == nil || ident.tree != t || !t.exists(ident.id) {
		return
	}
	ident.live = false
	ident.location = ""

	for n := ident; n != t.root && !n.live && len(n.children) == 0; {
		parent := n.Parent()
		parent.removeChild(n)
		delete(t.nodes, n.id)
		n = parent
	}
}

func (i *Identifier) removeChild(child *Identifier) {
	for idx, c := range i.children {
		if c == child {
			i.children = append(i.children[:idx], i.children[idx+1:]...)
			return
		}
	}
}

// Restore re-creates an identifier of a previously captured lineage. The
// parent must already be restored; an empty parentID updates the root.
func (t *Tree) Restore(id, parentID, location string, live bool, data map[string]interface{}) (*Identifier, error) {
	if parentID == "" {
		if id != t.root.id {
			return nil, fmt.Errorf("identifier '%s' has no parent and is not the root '%s'", id, t.root.id)
		}
		t.root.location = location
		t.root.live = live
		t.root.data = util.DeepCopyMap(data)
		return t.root, nil
	}

	if t.exists(id) {
		return nil, fmt.Errorf("identifier '%s' already restored", id)
	}

	parent, ok := t.nodes[parentID]
	if !ok {
		return nil, fmt.Errorf("parent '%s' of identifier '%s' not found", parentID, id)
	}

	ident := &Identifier{
		tree:     t,
		id:       id,
		parentID: parentID,
		location: location,
		data:     util.DeepCopyMap(data),
		live:     live,
	}
	parent.children = append(parent.children, ident)
	if seq, ok := childSeq(parentID, id); ok && seq > parent.childSeq {
		parent.childSeq = seq
	}
	t.nodes[id] = ident

	return ident, nil
}

func childSeq(parentID, id string) (int, bool) {
	if !strings.HasPrefix(id, parentID+".") {
		return 0, false
	}
	seq, err := strconv.Atoi(id[len(parentID)+1:])
	if err != nil {
		return 0, false
	}
	return seq, true
}
