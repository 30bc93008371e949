package transform

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// NoParent marks a root node.
const NoParent = -1

var (
	ErrNodeRange = errors.New("transform: node index out of range")
	ErrCycle     = errors.New("transform: parent would create a cycle")
)

type node struct {
	local  Transform
	parent int
}

// Arena stores transforms addressed by index. A node's parent is another
// index into the same arena, never a pointer.
type Arena struct {
	nodes []node
}

// Len returns the number of nodes.
func (a *Arena) Len() int {
	return len(a.nodes)
}

// Add appends a node with the given local transform and parent and returns
// its index. parent must be NoParent or an existing node.
func (a *Arena) Add(local Transform, parent int) (int, error) {
	if parent != NoParent && !a.valid(parent) {
		return 0, fmt.Errorf("adding node with parent %d: %w", parent, ErrNodeRange)
	}
	a.nodes = append(a.nodes, node{local: local, parent: parent})
	return len(a.nodes) - 1, nil
}

// AddRoot appends a node without a parent.
func (a *Arena) AddRoot(local Transform) int {
	a.nodes = append(a.nodes, node{local: local, parent: NoParent})
	return len(a.nodes) - 1
}

// Local returns a pointer to the local transform of node i for in-place edits.
// The pointer is invalidated by the next Add.
func (a *Arena) Local(i int) *Transform {
	return &a.nodes[i].local
}

// Parent returns the parent index of node i, or NoParent.
func (a *Arena) Parent(i int) int {
	return a.nodes[i].parent
}

// SetParent reparents node i. Reparenting under a descendant is rejected.
func (a *Arena) SetParent(i, parent int) error {
	if !a.valid(i) {
		return fmt.Errorf("reparenting node %d: %w", i, ErrNodeRange)
	}
	if parent == NoParent {
		a.nodes[i].parent = NoParent
		return nil
	}
	if !a.valid(parent) {
		return fmt.Errorf("reparenting node %d under %d: %w", i, parent, ErrNodeRange)
	}
	for p := parent; p != NoParent; p = a.nodes[p].parent {
		if p == i {
			return fmt.Errorf("reparenting node %d under %d: %w", i, parent, ErrCycle)
		}
	}
	a.nodes[i].parent = parent
	return nil
}

// ParentWorld returns the composed world matrix of node i's ancestors, or
// identity for a root.
func (a *Arena) ParentWorld(i int) mgl32.Mat4 {
	p := a.nodes[i].parent
	if p == NoParent {
		return mgl32.Ident4()
	}
	return a.World(p)
}

// World returns ParentWorld(i) * Local(i).
func (a *Arena) World(i int) mgl32.Mat4 {
	return a.ParentWorld(i).Mul4(a.nodes[i].local.Matrix())
}

// Roots returns the indices of nodes without a parent, in insertion order.
func (a *Arena) Roots() []int {
	var out []int
	for i, n := range a.nodes {
		if n.parent == NoParent {
			out = append(out, i)
		}
	}
	return out
}

func (a *Arena) valid(i int) bool {
	return i >= 0 && i < len(a.nodes)
}
