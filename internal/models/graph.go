package models

// CommitGraph maps a commit ID to the set of its parent commit IDs.
// A commit with no known parents maps to an empty set.
type CommitGraph map[string]map[string]bool

// Add records a parent edge for a commit. An empty parent marks the commit
// as known without adding an edge (root commits, shallow boundaries).
func (g CommitGraph) Add(commit, parent string) {
	if g[commit] == nil {
		g[commit] = make(map[string]bool)
	}
	if parent != "" {
		g[commit][parent] = true
	}
}

// Merge unions another graph's parent sets into this one. Merging is
// idempotent and order-independent, so fragments discovered from different
// anchor commits can be combined safely.
func (g CommitGraph) Merge(other CommitGraph) {
	for commit, parents := range other {
		if g[commit] == nil {
			g[commit] = make(map[string]bool)
		}
		for parent := range parents {
			g[commit][parent] = true
		}
	}
}

// Ancestors returns all commit IDs reachable from the given commit via BFS
// over parent edges, including the commit itself.
func (g CommitGraph) Ancestors(commit string) map[string]bool {
	ancestors := make(map[string]bool)
	queue := []string{commit}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current == "" || ancestors[current] {
			continue
		}
		ancestors[current] = true

		for parent := range g[current] {
			queue = append(queue, parent)
		}
	}

	return ancestors
}
