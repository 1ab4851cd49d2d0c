package cypher

import "strconv"

// Symbols hands out statement-unique variable names per prefix
// (n0, n1, ... for nodes; a0, a1, ... for aggregates).
// A Symbols value is not safe for concurrent use.
type Symbols struct {
	next map[string]int
}

// Next returns the next unused name for prefix.
func (s *Symbols) Next(prefix string) string {
	if s.next == nil {
		s.next = make(map[string]int)
	}
	n := s.next[prefix]
	s.next[prefix] = n + 1
	return prefix + strconv.Itoa(n)
}
