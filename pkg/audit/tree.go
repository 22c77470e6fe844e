package audit

// TreeNode is one decision in a reconstructed tree.
type TreeNode struct {
	Entry    *DecisionEntry
	Children []*TreeNode

	// CycleBroken marks an entry whose parent chain led back to itself.
	// Such entries are re-rooted rather than followed, so a corrupted
	// parent link can never loop tree construction.
	CycleBroken bool
}

// DecisionTree is the forest of decisions recorded for one task.
type DecisionTree struct {
	TaskID        string
	Roots         []*TreeNode
	DecisionCount int
}

// BuildDecisionTree reconstructs the decision forest for a task from the
// flat entries using ParentID links. Entries whose parent is absent or
// unknown become roots; an entry that is its own ancestor is treated as
// a root and flagged CycleBroken.
func (t *Trail) BuildDecisionTree(taskID string) (*DecisionTree, error) {
	entries, err := t.DecisionsForTask(taskID)
	if err != nil {
		return nil, err
	}

	nodes := make(map[string]*TreeNode, len(entries))
	for _, e := range entries {
		nodes[e.ID] = &TreeNode{Entry: e}
	}

	parentOf := func(e *DecisionEntry) string {
		if e.ParentID == "" {
			return ""
		}
		if _, known := nodes[e.ParentID]; !known {
			return ""
		}
		return e.ParentID
	}

	tree := &DecisionTree{TaskID: taskID, DecisionCount: len(entries)}
	for _, e := range entries {
		node := nodes[e.ID]
		pid := parentOf(e)
		if pid == "" {
			tree.Roots = append(tree.Roots, node)
			continue
		}
		if inOwnAncestry(e, nodes) {
			node.CycleBroken = true
			tree.Roots = append(tree.Roots, node)
			continue
		}
		parent := nodes[pid]
		parent.Children = append(parent.Children, node)
	}
	return tree, nil
}

// inOwnAncestry walks the parent chain of e and reports whether it leads
// back to e itself. The walk is bounded by the node count, so malformed
// links terminate regardless.
func inOwnAncestry(e *DecisionEntry, nodes map[string]*TreeNode) bool {
	current := e.ParentID
	for steps := 0; steps <= len(nodes); steps++ {
		if current == "" {
			return false
		}
		if current == e.ID {
			return true
		}
		node, ok := nodes[current]
		if !ok {
			return false
		}
		current = node.Entry.ParentID
	}
	return true
}
