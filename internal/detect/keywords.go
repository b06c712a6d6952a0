package detect

// keywordMatcher is an Aho-Corasick automaton over the error-keyword table,
// so every failing case's error text is scanned once regardless of how many
// keywords the table grows.
type keywordMatcher struct {
	nodes []kwNode
}

type kwNode struct {
	next map[byte]int
	fail int
	out  []string
}

func newKeywordMatcher(patterns []string) *keywordMatcher {
	nodes := []kwNode{{next: map[byte]int{}, fail: 0}}
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		current := 0
		for i := 0; i < len(pattern); i++ {
			b := pattern[i]
			next, ok := nodes[current].next[b]
			if !ok {
				nodes = append(nodes, kwNode{next: map[byte]int{}, fail: 0})
				next = len(nodes) - 1
				nodes[current].next[b] = next
			}
			current = next
		}
		nodes[current].out = append(nodes[current].out, pattern)
	}

	queue := make([]int, 0)
	for _, next := range nodes[0].next {
		nodes[next].fail = 0
		queue = append(queue, next)
	}

	for len(queue) > 0 {
		state := queue[0]
		queue = queue[1:]

		for b, next := range nodes[state].next {
			fail := nodes[state].fail
			for fail != 0 {
				if _, ok := nodes[fail].next[b]; ok {
					break
				}
				fail = nodes[fail].fail
			}
			if target, ok := nodes[fail].next[b]; ok && target != next {
				nodes[next].fail = target
			} else {
				nodes[next].fail = 0
			}
			nodes[next].out = append(nodes[next].out, nodes[nodes[next].fail].out...)
			queue = append(queue, next)
		}
	}

	return &keywordMatcher{nodes: nodes}
}

// MatchAll returns every table keyword found in input, deduplicated.
func (m *keywordMatcher) MatchAll(input string) []string {
	seen := map[string]bool{}
	var found []string

	state := 0
	for i := 0; i < len(input); i++ {
		b := input[i]
		for state != 0 {
			if _, ok := m.nodes[state].next[b]; ok {
				break
			}
			state = m.nodes[state].fail
		}
		if next, ok := m.nodes[state].next[b]; ok {
			state = next
		}

		for _, pattern := range m.nodes[state].out {
			if !seen[pattern] {
				seen[pattern] = true
				found = append(found, pattern)
			}
		}
	}

	return found
}
