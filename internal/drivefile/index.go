package drivefile

import (
	"sort"
	"strings"
)

const pathSeparator = "/"

// Index is a lookup over a normalized collection with a derived
// parent-to-children view. It never mutates the records it was built from.
type Index struct {
	records  []Normalized
	byID     map[string]int
	children map[string][]string
}

func NewIndex(records []Normalized) *Index {
	index := &Index{
		records:  records,
		byID:     make(map[string]int, len(records)),
		children: make(map[string][]string),
	}
	for position, record := range records {
		if _, seen := index.byID[record.ID]; seen {
			continue
		}
		index.byID[record.ID] = position
	}
	for position, record := range records {
		if index.byID[record.ID] != position {
			continue
		}
		index.children[record.CurrentParent] = append(index.children[record.CurrentParent], record.ID)
	}
	return index
}

func (index *Index) Len() int { return len(index.byID) }

func (index *Index) Lookup(id string) (Normalized, bool) {
	if index == nil {
		return Normalized{}, false
	}
	position, ok := index.byID[id]
	if !ok {
		return Normalized{}, false
	}
	return index.records[position], true
}

func (index *Index) Contains(id string) bool {
	_, ok := index.Lookup(id)
	return ok
}

// ChildIDs lists the members whose resolved parent is parentID, in input order.
func (index *Index) ChildIDs(parentID string) []string {
	return append([]string(nil), index.children[parentID]...)
}

// Depth counts parent links from id up to root or to the first unknown
// parent. A cycle stops the walk at the first revisited node.
func (index *Index) Depth(id string) int {
	depth := 0
	visited := map[string]struct{}{id: {}}
	current, ok := index.Lookup(id)
	if !ok {
		return 0
	}
	for {
		parentID := current.CurrentParent
		if parentID == "" || parentID == RootID {
			return depth
		}
		if _, seen := visited[parentID]; seen {
			return depth
		}
		visited[parentID] = struct{}{}
		parent, found := index.Lookup(parentID)
		if !found {
			return depth
		}
		depth++
		current = parent
	}
}

// Path joins the names from the top-most resolvable ancestor down to id.
// Parents missing from this index are looked up in fallback, if given.
// Unknown ancestors end the walk without error.
func (index *Index) Path(id string, fallback *Index) string {
	segments := index.PathSegments(id, fallback)
	return strings.Join(segments, pathSeparator)
}

func (index *Index) PathSegments(id string, fallback *Index) []string {
	current, ok := index.lookupWithFallback(id, fallback)
	if !ok {
		return nil
	}
	segments := []string{current.Name}
	visited := map[string]struct{}{id: {}}
	for {
		parentID := current.CurrentParent
		if parentID == "" || parentID == RootID {
			break
		}
		if _, seen := visited[parentID]; seen {
			break
		}
		visited[parentID] = struct{}{}
		parent, found := index.lookupWithFallback(parentID, fallback)
		if !found {
			break
		}
		segments = append(segments, parent.Name)
		current = parent
	}
	for left, right := 0, len(segments)-1; left < right; left, right = left+1, right-1 {
		segments[left], segments[right] = segments[right], segments[left]
	}
	return segments
}

func (index *Index) lookupWithFallback(id string, fallback *Index) (Normalized, bool) {
	if record, ok := index.Lookup(id); ok {
		return record, true
	}
	return fallback.Lookup(id)
}

// Node is one entry of a materialized tree view.
type Node struct {
	Record   Normalized
	Children []*Node
}

// BuildTree materializes the derived children view. Records whose parent is
// unknown attach at the top level. Members of a parent cycle are broken out
// at the first member in input order so every record appears exactly once.
// Siblings sort folders first, then by name.
func BuildTree(records []Normalized) []*Node {
	index := NewIndex(records)
	nodes := make(map[string]*Node, index.Len())
	var ordered []*Node
	for position, record := range records {
		if index.byID[record.ID] != position {
			continue
		}
		node := &Node{Record: record}
		nodes[record.ID] = node
		ordered = append(ordered, node)
	}

	attached := make(map[string]bool, len(ordered))
	var roots []*Node
	for _, node := range ordered {
		parent, ok := nodes[node.Record.CurrentParent]
		if !ok || parent == node {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
		attached[node.Record.ID] = true
	}

	reached := make(map[*Node]bool, len(ordered))
	markReached(roots, reached)
	for _, node := range ordered {
		if reached[node] {
			continue
		}
		if attached[node.Record.ID] {
			parent := nodes[node.Record.CurrentParent]
			parent.Children = removeNode(parent.Children, node)
		}
		roots = append(roots, node)
		markReached([]*Node{node}, reached)
	}

	sortTree(roots)
	return roots
}

func markReached(start []*Node, reached map[*Node]bool) {
	stack := append([]*Node(nil), start...)
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if reached[current] {
			continue
		}
		reached[current] = true
		stack = append(stack, current.Children...)
	}
}

func removeNode(nodes []*Node, target *Node) []*Node {
	kept := nodes[:0]
	for _, node := range nodes {
		if node != target {
			kept = append(kept, node)
		}
	}
	return kept
}

func sortTree(roots []*Node) {
	stack := []([]*Node){roots}
	for len(stack) > 0 {
		siblings := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		sort.SliceStable(siblings, func(left, right int) bool {
			leftFolder := siblings[left].Record.IsFolder()
			rightFolder := siblings[right].Record.IsFolder()
			if leftFolder != rightFolder {
				return leftFolder
			}
			return siblings[left].Record.Name < siblings[right].Record.Name
		})
		for _, sibling := range siblings {
			if len(sibling.Children) > 0 {
				stack = append(stack, sibling.Children)
			}
		}
	}
}
