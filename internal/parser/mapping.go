package parser

import (
	"fmt"
	"strings"
)

// BranchPolicy selects which children are walked when a node has
// more than one (edits and regenerations create siblings).
type BranchPolicy string

const (
	// BranchAll walks every child in declared order, flattening
	// sibling branches into one pre-order sequence.
	BranchAll BranchPolicy = "all"
	// BranchLatest follows only the last declared child, which
	// is the most recent edit or regeneration.
	BranchLatest BranchPolicy = "latest"
)

// ParseBranchPolicy parses a policy name. The empty string
// selects BranchAll.
func ParseBranchPolicy(s string) (BranchPolicy, error) {
	switch BranchPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", BranchAll:
		return BranchAll, nil
	case BranchLatest:
		return BranchLatest, nil
	default:
		return "", fmt.Errorf(
			"unknown branch policy %q (want %q or %q)",
			s, BranchAll, BranchLatest,
		)
	}
}

// Root returns the id of the mapping's root node. When several
// nodes have a null parent, the last one in document order wins.
func (m Mapping) Root() (string, bool) {
	root, found := "", false
	for _, id := range m.order {
		if m.nodes[id].Parent == nil {
			root, found = id, true
		}
	}
	return root, found
}

// Reconstruct walks the mapping depth-first in pre-order from its
// root and returns one Message per node with non-blank text.
// Nodes without text are skipped but their children are still
// visited. A mapping without a root yields no messages. Each node
// is visited at most once, so disagreeing parent/children links
// cannot loop.
func Reconstruct(m Mapping, policy BranchPolicy) []Message {
	root, ok := m.Root()
	if !ok {
		return nil
	}

	var (
		messages []Message
		visited  = make(map[string]bool, m.Len())
		stack    = []string{root}
	)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[id] {
			continue
		}
		node, ok := m.nodes[id]
		if !ok {
			continue
		}
		visited[id] = true

		if msg, ok := extractMessage(node.Message); ok {
			messages = append(messages, msg)
		}

		next := m.nextChildren(node, policy, visited)
		// Push in reverse so the first child is popped first.
		for i := len(next) - 1; i >= 0; i-- {
			stack = append(stack, next[i])
		}
	}
	return messages
}

// nextChildren returns the children to descend into, in walk
// order. Ids missing from the mapping are dropped.
func (m Mapping) nextChildren(
	node MessageNode, policy BranchPolicy, visited map[string]bool,
) []string {
	var present []string
	for _, c := range node.Children {
		if _, ok := m.nodes[c]; ok && !visited[c] {
			present = append(present, c)
		}
	}
	if policy == BranchLatest && len(present) > 1 {
		return present[len(present)-1:]
	}
	return present
}
