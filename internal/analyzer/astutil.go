package analyzer

import sitter "github.com/tree-sitter/go-tree-sitter"

// nodeText returns the source slice node spans, or "" for a nil node or
// an out-of-range span.
func nodeText(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if start > uint(len(content)) || end > uint(len(content)) || start > end {
		return ""
	}
	return string(content[start:end])
}

// nodePosition returns node's 1-based line/column, tree-sitter's own
// positions being 0-based.
func nodePosition(node *sitter.Node) (line, col int) {
	if node == nil {
		return 0, 0
	}
	p := node.StartPosition()
	return int(p.Row) + 1, int(p.Column) + 1
}

func nodeEndPosition(node *sitter.Node) (line, col int) {
	if node == nil {
		return 0, 0
	}
	p := node.EndPosition()
	return int(p.Row) + 1, int(p.Column) + 1
}

func firstChildOfKind(node *sitter.Node, kind string) *sitter.Node {
	if node == nil {
		return nil
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}

func childrenOfKind(node *sitter.Node, kind string) []*sitter.Node {
	if node == nil {
		return nil
	}
	var out []*sitter.Node
	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil && child.Kind() == kind {
			out = append(out, child)
		}
	}
	return out
}

// walk depth-first traverses node, calling visit for every descendant
// (node included). visit returns false to skip node's children.
func walk(node *sitter.Node, visit func(n *sitter.Node) bool) {
	if node == nil {
		return
	}
	if !visit(node) {
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		walk(node.Child(i), visit)
	}
}
