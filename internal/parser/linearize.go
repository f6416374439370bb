package parser

import "sort"

// linearize walks conv's message graph from its root, following
// current_node when present and otherwise the latest-timestamp child
// (lexicographic-smallest-id tie-break), per spec.md §3 "Linearization
// algorithm". It returns the ordered sequence of node IDs retained as
// Messages: system nodes with empty content are dropped, tool nodes are
// kept.
func linearize(conv rawConversation) []string {
	root := findRoot(conv.Mapping)
	if root == "" {
		return nil
	}

	path := walkToLeaf(conv, root)

	ordered := make([]string, 0, len(path))
	for _, id := range path {
		node, ok := conv.Mapping[id]
		if !ok || node.Message == nil {
			continue
		}
		if isEmptySystemNode(node.Message) {
			continue
		}
		ordered = append(ordered, id)
	}
	return ordered
}

// findRoot returns the one node in mapping with no parent (or whose
// parent is absent from the mapping). ChatGPT-style exports root the
// tree at a synthetic "client-created-root" node with an empty message;
// that node is still the correct walk start even though it produces no
// Message itself.
func findRoot(mapping map[string]rawNode) string {
	for id, node := range mapping {
		if node.Parent == "" {
			return id
		}
		if _, ok := mapping[node.Parent]; !ok {
			return id
		}
	}
	return ""
}

// walkToLeaf follows the chosen linearization path from root to the last
// reachable node.
func walkToLeaf(conv rawConversation, root string) []string {
	path := []string{root}
	current := root

	// current_node, when present, names the tail of the path directly:
	// build the path backwards from it via parent pointers, which is
	// cheaper and unambiguous compared to re-deriving the same leaf by
	// forward choices.
	if conv.CurrentNode != "" {
		if _, ok := conv.Mapping[conv.CurrentNode]; ok {
			return pathFromLeaf(conv.Mapping, conv.CurrentNode)
		}
	}

	for {
		node, ok := conv.Mapping[current]
		if !ok || len(node.Children) == 0 {
			break
		}
		next := pickChild(conv.Mapping, node.Children)
		if next == "" {
			break
		}
		path = append(path, next)
		current = next
	}
	return path
}

// pathFromLeaf rebuilds root-to-leaf order by following parent pointers
// up from leaf.
func pathFromLeaf(mapping map[string]rawNode, leaf string) []string {
	var reversed []string
	seen := map[string]bool{}
	current := leaf
	for current != "" {
		if seen[current] {
			break // defend against a cyclic parent chain in a malformed export
		}
		seen[current] = true
		reversed = append(reversed, current)
		node, ok := mapping[current]
		if !ok {
			break
		}
		current = node.Parent
	}

	path := make([]string, len(reversed))
	for i, id := range reversed {
		path[len(reversed)-1-i] = id
	}
	return path
}

// pickChild selects the child with the latest message create_time,
// tie-breaking on the lexicographically smallest child id. A child with
// no message (or missing from the mapping) sorts last.
func pickChild(mapping map[string]rawNode, children []string) string {
	type candidate struct {
		id  string
		ts  float64
		has bool
	}
	cands := make([]candidate, 0, len(children))
	for _, id := range children {
		node, ok := mapping[id]
		if !ok {
			continue
		}
		if node.Message != nil {
			cands = append(cands, candidate{id: id, ts: node.Message.CreateTime, has: true})
		} else {
			cands = append(cands, candidate{id: id, has: false})
		}
	}
	if len(cands) == 0 {
		return ""
	}

	sort.Slice(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.has != b.has {
			return a.has // timestamped candidates sort before untimestamped ones
		}
		if a.ts != b.ts {
			return a.ts > b.ts
		}
		return a.id < b.id
	})
	return cands[0].id
}

func isEmptySystemNode(msg *rawMessage) bool {
	if msg.Author.Role != "system" {
		return false
	}
	return len(msg.Content.Parts) == 0 && msg.Content.Text == "" && msg.Content.Result == ""
}
