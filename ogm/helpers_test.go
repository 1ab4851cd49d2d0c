package ogm

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"
)

// --- Test models ---

type testBook struct {
	Id       int64
	Name     string
	Chapters []*testChapter
	Author   *testAuthor
	Draft    string
}

type testChapter struct {
	Id   int64
	Name string
	Book *testBook
}

type testAuthor struct {
	Name string `ogm:",key"`
	Born time.Time
}

type testReview struct {
	Id    string
	Stars int
	Book  *testBook
}

type testPeer struct {
	Code  string `ogm:"code,key"`
	Next  *testPeer
	Peers []*testPeer
}

// registerTestTypes registers the test types fresh (clears first).
func registerTestTypes(t *testing.T) {
	t.Helper()
	ClearRegistry()
	MustRegister[testBook](WithLabel("Book"))
	MustRegister[testChapter](WithLabel("Chapter"))
	MustRegister[testAuthor](WithLabel("Author"))
	MustRegister[testReview](WithLabel("Review"))
	MustRegister[testPeer](WithLabel("Peer"))
	if err := RegisterRelation[testBook, testChapter]("Chapters", "Book"); err != nil {
		t.Fatalf("register relation: %v", err)
	}
	if err := RegisterRelation[testBook, testReview]("", "x => x.Book"); err != nil {
		t.Fatalf("register relation: %v", err)
	}
	t.Cleanup(ClearRegistry)
}

func assertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Errorf("expected to contain %q, got:\n%s", substr, s)
	}
}

// --- Recording executor ---

type mockExecutor struct {
	stmts     []Statement
	responses [][]map[string]any
	idx       int
	failAt    int // 1-based statement number to fail, 0 for never
}

func (m *mockExecutor) Execute(ctx context.Context, stmt Statement) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.stmts = append(m.stmts, stmt)
	if m.failAt == len(m.stmts) {
		return nil, fmt.Errorf("mock failure at statement %d", m.failAt)
	}
	if m.idx < len(m.responses) {
		resp := m.responses[m.idx]
		m.idx++
		return resp, nil
	}
	m.idx++
	// Writes echo their key and property parameters back as the node;
	// creates get the statement number as their Id.
	switch stmt.Op {
	case OpCreateNode:
		node := copyProps(stmt.Params["props"].(map[string]any))
		if strings.Contains(stmt.Text, "randomUUID()") {
			node["Id"] = fmt.Sprintf("uuid-%d", len(m.stmts))
		} else {
			node["Id"] = int64(len(m.stmts))
		}
		return []map[string]any{{"n": node}}, nil
	case OpUpsertNode:
		node := map[string]any{}
		if props, ok := stmt.Params["props"].(map[string]any); ok {
			for k, v := range props {
				node[k] = v
			}
		}
		for k, v := range stmt.Params {
			if strings.HasPrefix(k, "key_") {
				node[strings.TrimPrefix(k, "key_")] = v
			}
		}
		return []map[string]any{{"n": node}}, nil
	}
	return nil, nil
}

func (m *mockExecutor) ops() []string {
	out := make([]string, len(m.stmts))
	for i, s := range m.stmts {
		out[i] = s.Op
	}
	return out
}

// --- In-memory graph store ---

type memNode struct {
	label string
	props map[string]any
}

type memEdge struct {
	from, to *memNode
	property string
	version  int64
	props    map[string]any
}

// memStore interprets the statements of a save pass against an in-memory
// graph, keyed on each statement's Op and parameters.
type memStore struct {
	nodes   []*memNode
	edges   []*memEdge
	counter int64
	stmts   []Statement
	query   func(s *memStore, stmt Statement) []map[string]any
	failOp  string
}

var labelPattern = regexp.MustCompile(`\((\w+):(\w+)`)

func labelsIn(text string) map[string]string {
	out := make(map[string]string)
	for _, m := range labelPattern.FindAllStringSubmatch(text, -1) {
		out[m[1]] = m[2]
	}
	return out
}

func keysWithPrefix(params map[string]any, prefix string) map[string]any {
	out := make(map[string]any)
	for k, v := range params {
		if strings.HasPrefix(k, prefix+"_") {
			out[strings.TrimPrefix(k, prefix+"_")] = v
		}
	}
	return out
}

func (s *memStore) find(label string, keys map[string]any) *memNode {
	for _, n := range s.nodes {
		if n.label != label {
			continue
		}
		match := true
		for k, v := range keys {
			if !reflect.DeepEqual(n.props[k], v) {
				match = false
				break
			}
		}
		if match {
			return n
		}
	}
	return nil
}

func copyProps(p map[string]any) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func (s *memStore) Execute(ctx context.Context, stmt Statement) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.stmts = append(s.stmts, stmt)
	if s.failOp != "" && stmt.Op == s.failOp {
		return nil, fmt.Errorf("store failure on %s", stmt.Op)
	}
	labels := labelsIn(stmt.Text)

	switch stmt.Op {
	case OpUpsertNode:
		keys := keysWithPrefix(stmt.Params, "key")
		n := s.find(labels["n"], keys)
		if n == nil {
			n = &memNode{label: labels["n"], props: copyProps(keys)}
			s.nodes = append(s.nodes, n)
		}
		for k, v := range stmt.Params["props"].(map[string]any) {
			n.props[k] = v
		}
		return []map[string]any{{"n": copyProps(n.props)}}, nil

	case OpCreateNode:
		s.counter++
		n := &memNode{label: labels["n"], props: copyProps(stmt.Params["props"].(map[string]any))}
		if strings.Contains(stmt.Text, "randomUUID()") {
			n.props["Id"] = fmt.Sprintf("uuid-%d", s.counter)
		} else {
			n.props["Id"] = s.counter
		}
		s.nodes = append(s.nodes, n)
		return []map[string]any{{"n": copyProps(n.props)}}, nil

	case OpLink:
		from := s.find(labels["a"], keysWithPrefix(stmt.Params, "from"))
		to := s.find(labels["b"], keysWithPrefix(stmt.Params, "to"))
		if from == nil || to == nil {
			return nil, nil
		}
		prop := stmt.Params["property"].(string)
		version := stmt.Params["version"].(int64)
		edge, _ := stmt.Params["edge"].(map[string]any)
		for _, e := range s.edges {
			if e.from == from && e.to == to && e.property == prop {
				e.version = version
				for k, v := range edge {
					e.props[k] = v
				}
				return nil, nil
			}
		}
		s.edges = append(s.edges, &memEdge{from: from, to: to, property: prop, version: version, props: copyProps(edge)})
		return nil, nil

	case OpUnlinkStale:
		from := s.find(labels["a"], keysWithPrefix(stmt.Params, "from"))
		prop := stmt.Params["property"].(string)
		version := stmt.Params["version"].(int64)
		kept := s.edges[:0]
		for _, e := range s.edges {
			if e.from == from && e.property == prop && e.version != version {
				continue
			}
			kept = append(kept, e)
		}
		s.edges = kept
		return nil, nil

	case OpDeleteNode:
		n := s.find(labels["n"], keysWithPrefix(stmt.Params, "key"))
		if n == nil {
			return nil, nil
		}
		kept := s.edges[:0]
		for _, e := range s.edges {
			if e.from != n && e.to != n {
				kept = append(kept, e)
			}
		}
		s.edges = kept
		for i, x := range s.nodes {
			if x == n {
				s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
				break
			}
		}
		return nil, nil

	case OpQuery:
		if s.query != nil {
			return s.query(s, stmt), nil
		}
	}
	return nil, nil
}

func (s *memStore) nodesWithLabel(label string) []*memNode {
	var out []*memNode
	for _, n := range s.nodes {
		if n.label == label {
			out = append(out, n)
		}
	}
	return out
}

func (s *memStore) targets(from *memNode, property string) []*memNode {
	var out []*memNode
	for _, e := range s.edges {
		if e.from == from && e.property == property {
			out = append(out, e.to)
		}
	}
	return out
}

// bookChaptersRows answers the Book -> Chapters include query the way the
// store would: one row per book carrying the folded chapter maps.
func bookChaptersRows(s *memStore, _ Statement) []map[string]any {
	var rows []map[string]any
	for _, b := range s.nodesWithLabel("Book") {
		chapters := []any{}
		for _, c := range s.targets(b, "Chapters") {
			chapters = append(chapters, map[string]any{"this": copyProps(c.props)})
		}
		rows = append(rows, map[string]any{
			"n0": copyProps(b.props),
			"a1": map[string]any{"this": copyProps(b.props), "Chapters": chapters},
		})
	}
	return rows
}
