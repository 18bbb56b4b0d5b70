package course

import (
	"fmt"
	"sort"

	"github.com/openedx/edxoffline/internal/domain"
)

// Tree is an immutable, validated course content tree. It is replaced wholesale
// whenever the course is re-synced.
type Tree struct {
	courseID string
	root     string
	nodes    map[string]*domain.ContentNode
	parents  map[string]string
}

// NewTree validates nodes and builds a tree rooted at root. Every child id must
// resolve, no node may be reachable from two parents, and a node with children
// never carries a download spec.
func NewTree(courseID, root string, nodes []domain.ContentNode) (*Tree, error) {
	t := &Tree{
		courseID: courseID,
		root:     root,
		nodes:    make(map[string]*domain.ContentNode, len(nodes)),
		parents:  make(map[string]string, len(nodes)),
	}

	for i := range nodes {
		n := nodes[i]
		if n.ID == "" {
			return nil, fmt.Errorf("%w: node at index %d has no id", domain.ErrInvalidTree, i)
		}
		if _, dup := t.nodes[n.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate node %s", domain.ErrInvalidTree, n.ID)
		}
		if len(n.Children) > 0 && n.Download != nil {
			return nil, fmt.Errorf("%w: node %s has children and a download spec", domain.ErrInvalidTree, n.ID)
		}
		n.Children = append([]string(nil), n.Children...)
		t.nodes[n.ID] = &n
	}

	if _, ok := t.nodes[root]; !ok {
		return nil, fmt.Errorf("%w: root %q not found", domain.ErrInvalidTree, root)
	}

	for id, n := range t.nodes {
		for _, child := range n.Children {
			if _, ok := t.nodes[child]; !ok {
				return nil, fmt.Errorf("%w: node %s references unknown child %s", domain.ErrInvalidTree, id, child)
			}
			if child == root {
				return nil, fmt.Errorf("%w: root %s is a child of %s", domain.ErrInvalidTree, root, id)
			}
			if prev, seen := t.parents[child]; seen {
				return nil, fmt.Errorf("%w: node %s has two parents (%s, %s)", domain.ErrInvalidTree, child, prev, id)
			}
			t.parents[child] = id
		}
	}

	// With single parents and a parentless root, any node not reachable from the
	// root sits on a cycle or in a detached fragment.
	reached := 0
	t.Walk(root, func(*domain.ContentNode) bool {
		reached++
		return true
	})
	if reached != len(t.nodes) {
		for id := range t.nodes {
			if _, ok := t.parents[id]; ok || id == root {
				continue
			}
			// detached fragments are tolerated
			reached += t.countFrom(id)
		}
		if reached != len(t.nodes) {
			return nil, fmt.Errorf("%w: cycle detected", domain.ErrInvalidTree)
		}
	}

	return t, nil
}

func (t *Tree) countFrom(id string) int {
	n := 0
	t.Walk(id, func(*domain.ContentNode) bool {
		n++
		return true
	})
	return n
}

func (t *Tree) CourseID() string { return t.courseID }
func (t *Tree) Root() string     { return t.root }
func (t *Tree) Len() int         { return len(t.nodes) }

// Node returns the node with the given id.
func (t *Tree) Node(id string) (*domain.ContentNode, bool) {
	n, ok := t.nodes[id]
	return n, ok
}

// Parent returns the parent id of a node; the root has none.
func (t *Tree) Parent(id string) (string, bool) {
	p, ok := t.parents[id]
	return p, ok
}

// Tops returns the root followed by the tops of any detached fragments, in a
// stable order.
func (t *Tree) Tops() []string {
	tops := []string{t.root}
	var extra []string
	for id := range t.nodes {
		if _, ok := t.parents[id]; !ok && id != t.root {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	return append(tops, extra...)
}

// Children returns the ordered children of id.
func (t *Tree) Children(id string) []*domain.ContentNode {
	n, ok := t.nodes[id]
	if !ok {
		return nil
	}
	out := make([]*domain.ContentNode, 0, len(n.Children))
	for _, c := range n.Children {
		out = append(out, t.nodes[c])
	}
	return out
}

// Walk visits id and its descendants in pre-order. Returning false from fn
// skips the subtree below the current node.
func (t *Tree) Walk(id string, fn func(*domain.ContentNode) bool) {
	n, ok := t.nodes[id]
	if !ok {
		return
	}
	stack := []*domain.ContentNode{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !fn(cur) {
			continue
		}
		for i := len(cur.Children) - 1; i >= 0; i-- {
			stack = append(stack, t.nodes[cur.Children[i]])
		}
	}
}

// DownloadableLeaves returns the downloadable leaves under the given nodes in
// tree order, without duplicates. With no ids it covers the whole course.
func (t *Tree) DownloadableLeaves(ids ...string) []*domain.ContentNode {
	if len(ids) == 0 {
		ids = []string{t.root}
	}
	seen := make(map[string]struct{})
	var out []*domain.ContentNode
	for _, id := range ids {
		t.Walk(id, func(n *domain.ContentNode) bool {
			if _, ok := seen[n.ID]; ok {
				return false
			}
			seen[n.ID] = struct{}{}
			if n.IsDownloadable() {
				out = append(out, n)
			}
			return true
		})
	}
	return out
}

// NodesOfKind returns every node of the given kind in tree order.
func (t *Tree) NodesOfKind(kind domain.NodeKind) []*domain.ContentNode {
	var out []*domain.ContentNode
	t.Walk(t.root, func(n *domain.ContentNode) bool {
		if n.Kind == kind {
			out = append(out, n)
		}
		return true
	})
	return out
}
