package search

import "github.com/emc2314/cczero/internal/xiangqi"

// NodeTree pairs the shared search tree with the position history that
// gives each Node meaning, the external collaborator spec.md's Search and
// SearchWorker hold onto. It owns tree-reuse: advancing the game by a
// move reuses the matching child subtree instead of discarding the tree,
// the way the teacher's examples reuse a *NodeBase across moves.
type NodeTree struct {
	history *xiangqi.PositionHistory
	root    *Node
}

// NewNodeTree starts a tree at the standard starting position.
func NewNodeTree() *NodeTree {
	t := &NodeTree{history: xiangqi.NewHistory()}
	t.resetRoot()
	return t
}

// NewNodeTreeFromHistory starts a tree at an arbitrary already-played
// history (e.g. set up by a UCI-like "position" command external to this
// package).
func NewNodeTreeFromHistory(h *xiangqi.PositionHistory) *NodeTree {
	t := &NodeTree{history: h}
	t.resetRoot()
	return t
}

func (t *NodeTree) resetRoot() {
	over, draw, winner := t.history.Terminal()
	value := float32(0)
	if over && !draw {
		value = -1 // side to move has no legal reply: a loss from their perspective
		_ = winner
	}
	t.root = NewRootNode(over, value)
}

// Root returns the current root node.
func (t *NodeTree) Root() *Node { return t.root }

// History returns the position history ending at the current root.
func (t *NodeTree) History() *xiangqi.PositionHistory { return t.history }

// MakeMove advances the tree by m, reusing the existing child subtree
// rooted at that edge if one was already grown during the prior search
// (spec.md's "reusable tree" non-goal boundary: the caller supplies and
// owns this tree across searches, this method just keeps it consistent).
func (t *NodeTree) MakeMove(m xiangqi.Move) {
	t.history.Append(m)

	for i, e := range t.root.edges {
		if e.Move.Equal(m) {
			if child := ChildAt(t.root, i); child != nil {
				TrimTreeAtHead(child)
				t.root = child
				return
			}
			break
		}
	}
	t.resetRoot()
}
