package ogm

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

type testReader struct {
	Id      int64
	Name    string
	Ratings []*testRating
	Loans   []*testLoan
	Notes   []*testNote
}

type testRating struct {
	Stars  int
	Note   string `ogm:"note"`
	Reader *testReader
	Book   *testBook
}

type testCopy struct {
	Barcode string `ogm:",key"`
	Loans   []*testLoan
}

type testLoan struct {
	Days   int
	Reader *testReader
	Copy   *testCopy
}

type testNote struct {
	Text   string
	Copy   *testCopy
	Reader *testReader
}

type testEdgeFree struct {
	Reader *testReader
	Book   *testBook
}

type testEdgeNoEnd struct {
	Stars  int
	Reader *testReader
}

type testEdgeReserved struct {
	Version int
	Reader  *testReader
	Book    *testBook
}

type testEdgeMany struct {
	Readers []*testReader
	Book    *testBook
}

// registerConnectionTypes registers the test types plus readers, copies and
// the connections between them.
func registerConnectionTypes(t *testing.T) {
	t.Helper()
	registerTestTypes(t)
	MustRegister[testReader](WithLabel("Reader"))
	MustRegister[testCopy](WithLabel("Copy"))
	for _, err := range []error{
		RegisterConnection[testReader, testRating, testBook]("Ratings", ""),
		RegisterConnection[testReader, testLoan, testCopy]("Loans", "x => x.Loans"),
		RegisterConnection[testCopy, testNote, testReader]("", "Notes"),
	} {
		if err != nil {
			t.Fatalf("register connection: %v", err)
		}
	}
}

func TestRegisterConnection(t *testing.T) {
	registerConnectionTypes(t)

	conn, ok := LookupConnection(reflect.TypeOf(&testRating{}))
	if !ok {
		t.Fatal("testRating is not registered")
	}
	if conn.Source.FieldName != "Reader" || conn.Destination.FieldName != "Book" {
		t.Errorf("endpoints: got %s, %s", conn.Source.FieldName, conn.Destination.FieldName)
	}
	var props []string
	for _, f := range conn.Fields() {
		props = append(props, f.Property)
	}
	if !reflect.DeepEqual(props, []string{"Stars", "note"}) {
		t.Errorf("Fields: got %v", props)
	}
	if got := conn.Binding.String(); got != "Reader.Ratings <-> Book via testRating" {
		t.Errorf("String: got %q", got)
	}

	inv, ok := InverseOf("Reader", "Loans")
	if !ok || inv != (PropertyRef{Label: "Copy", Property: "Loans"}) {
		t.Errorf("InverseOf(Reader.Loans): got %+v, %v", inv, ok)
	}
	b, ok := anonymousSourceBinding("Copy", "Reader", "testNote")
	if !ok || b.Destination.Property != "Notes" {
		t.Errorf("anonymousSourceBinding: got %+v, %v", b, ok)
	}
	if _, ok := anonymousSourceBinding("Copy", "Reader", ""); ok {
		t.Error("a connection must not satisfy a plain reverse include")
	}

	if err := RegisterConnection[testReader, testLoan, testCopy]("Loans", "Loans"); err != nil {
		t.Errorf("identical connection: %v", err)
	}
	if n := len(RelationsOf("Copy")); n != 2 {
		t.Errorf("RelationsOf(Copy): got %d, want 2", n)
	}
	if _, ok := LookupConnection(reflect.TypeOf(testBook{})); ok {
		t.Error("node type reported as connection")
	}
}

func TestRegisterConnection_Errors(t *testing.T) {
	registerConnectionTypes(t)

	var argErr *ArgumentError
	if err := RegisterConnection[testReader, testEdgeFree, testBook]("", ""); !errors.As(err, &argErr) {
		t.Errorf("both anonymous: expected ArgumentError, got %v", err)
	}

	var unmapped *UnmappedTypeError
	if err := RegisterConnection[testNoKey, testEdgeFree, testBook]("Title", ""); !errors.As(err, &unmapped) {
		t.Errorf("unregistered source: expected UnmappedTypeError, got %v", err)
	}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"node type", RegisterConnection[testReader, testBook, testCopy]("Loans", ""), "registered as a node type"},
		{"missing endpoint", RegisterConnection[testReader, testEdgeNoEnd, testBook]("Ratings", ""), "no *testBook field"},
		{"reserved property", RegisterConnection[testReader, testEdgeReserved, testBook]("Ratings", ""), "reserved"},
		{"collection endpoint", RegisterConnection[testReader, testEdgeMany, testBook]("Ratings", ""), "single pointer"},
		{"scalar property", RegisterConnection[testReader, testEdgeFree, testBook]("Name", ""), "not a navigation property"},
		{"other connection's property", RegisterConnection[testReader, testEdgeFree, testBook]("Ratings", ""), "targets testRating"},
		{"rebinding", RegisterConnection[testReader, testLoan, testCopy]("Loans", ""), "already connects"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfgErr *ConfigurationError
			if !errors.As(tt.err, &cfgErr) {
				t.Fatalf("expected ConfigurationError, got %v", tt.err)
			}
			assertContains(t, tt.err.Error(), tt.want)
		})
	}
	if _, ok := LookupConnection(reflect.TypeOf(testEdgeFree{})); ok {
		t.Error("failed registration must not record the connection")
	}
}

func TestBuildObjectGraphIndex_Connections(t *testing.T) {
	registerConnectionTypes(t)

	book := &testBook{Id: 1, Name: "Dune"}
	reader := &testReader{Name: "Ann"}
	r1 := &testRating{Stars: 5, Book: book}
	r2 := &testRating{Stars: 1, Book: book}
	r3 := &testRating{Stars: 3}
	reader.Ratings = []*testRating{r1, nil, r2, r3}

	idx, err := BuildObjectGraphIndex([]any{reader})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(idx.Objects) != 2 || idx.Objects[1] != any(book) {
		t.Fatalf("Objects: got %v", idx.Objects)
	}
	if len(idx.Edges) != 1 {
		t.Fatalf("Edges: got %+v", idx.Edges)
	}
	e := idx.Edges[0]
	if e.Property != "Ratings" || e.Via == nil || e.Via.GoType != reflect.TypeOf(testRating{}) {
		t.Errorf("edge: got %+v", e)
	}
	// The second rating of the same book and the one without a book are dropped.
	if len(e.Targets) != 1 || e.Targets[0] != 1 {
		t.Errorf("Targets: got %v", e.Targets)
	}
	if len(e.Connections) != 1 || e.Connections[0] != any(r1) {
		t.Errorf("Connections: got %v", e.Connections)
	}
}

func TestSave_ConnectionProperties(t *testing.T) {
	registerConnectionTypes(t)
	mock := &mockExecutor{}
	gc := NewGraphContext()

	reader := &testReader{Id: 7, Name: "Ann"}
	cp := &testCopy{Barcode: "C-1"}
	loan := &testLoan{Days: 14, Reader: reader, Copy: cp}
	reader.Loans = []*testLoan{loan}
	cp.Loans = []*testLoan{loan}

	if err := gc.Track(reader); err != nil {
		t.Fatal(err)
	}
	if err := gc.Save(context.Background(), mock); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantOps := []string{OpUpsertNode, OpUpsertNode, OpLink, OpUnlinkStale, OpLink, OpUnlinkStale}
	if got := mock.ops(); !reflect.DeepEqual(got, wantOps) {
		t.Fatalf("ops: got %v, want %v", got, wantOps)
	}
	for _, i := range []int{2, 4} {
		stmt := mock.stmts[i]
		assertContains(t, stmt.Text, "SET r += $edge, r.Version = $version")
		if !reflect.DeepEqual(stmt.Params["edge"], map[string]any{"Days": int64(14)}) {
			t.Errorf("statement %d edge: got %v", i, stmt.Params["edge"])
		}
		if stmt.Params["property"] != "Loans" {
			t.Errorf("statement %d property: got %v", i, stmt.Params["property"])
		}
	}
	// The copy's side is walked first because it is reached through the reader.
	if mock.stmts[2].Params["from_Barcode"] != "C-1" || mock.stmts[2].Params["to_Id"] != int64(7) {
		t.Errorf("copy link params: got %v", mock.stmts[2].Params)
	}
	if mock.stmts[4].Params["from_Id"] != int64(7) || mock.stmts[4].Params["to_Barcode"] != "C-1" {
		t.Errorf("reader link params: got %v", mock.stmts[4].Params)
	}
}

func TestSave_ConnectionReplacesEdges(t *testing.T) {
	registerConnectionTypes(t)
	store := &memStore{}
	gc := NewGraphContext()

	b1 := &testBook{Name: "Dune"}
	b2 := &testBook{Name: "Emma"}
	reader := &testReader{Name: "Ann"}
	reader.Ratings = []*testRating{
		{Stars: 5, Note: "again", Book: b1},
		{Stars: 3, Book: b2},
	}
	if err := gc.Track(reader); err != nil {
		t.Fatal(err)
	}
	if err := gc.Save(context.Background(), store); err != nil {
		t.Fatal(err)
	}

	ratings := func() []*memEdge {
		var out []*memEdge
		for _, e := range store.edges {
			if e.property == "Ratings" {
				out = append(out, e)
			}
		}
		return out
	}
	got := ratings()
	if len(got) != 2 {
		t.Fatalf("edges: got %d, want 2", len(got))
	}
	if got[0].props["Stars"] != int64(5) || got[0].props["note"] != "again" {
		t.Errorf("edge props: got %v", got[0].props)
	}

	reader.Ratings = []*testRating{{Stars: 4, Book: b2}}
	if err := gc.Save(context.Background(), store); err != nil {
		t.Fatal(err)
	}
	got = ratings()
	if len(got) != 1 {
		t.Fatalf("after replace: got %d edges, want 1", len(got))
	}
	if got[0].to.props["Name"] != "Emma" || got[0].props["Stars"] != int64(4) {
		t.Errorf("after replace: got edge to %v with %v", got[0].to.props, got[0].props)
	}
}

func TestQuery_CompileVia(t *testing.T) {
	registerConnectionTypes(t)

	q, _ := NewQuery[testReader]()
	books, err := IncludeCollectionVia[testRating, testBook](q.Root(), "Ratings")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p := books.Path()
	if p.Via == nil || p.Edge != "r0" || p.Symbol != "n1" || p.Property != "Ratings" {
		t.Errorf("Path: got %+v", p)
	}
	if _, err := IncludeCollection[testChapter](books, "Chapters"); err != nil {
		t.Fatal(err)
	}

	stmt, err := q.Statement()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := `MATCH (n0:Reader)
OPTIONAL MATCH (n0)-[r0:Connection {PropertyName: 'Ratings'}]->(n1:Book)
OPTIONAL MATCH (n1)-[:Connection {PropertyName: 'Chapters'}]->(n2:Chapter)
WITH n0, n1, r0, n2, CASE WHEN n2 IS NULL THEN NULL ELSE {this: n2} END AS a0
WITH n0, n1, r0, CASE WHEN n1 IS NULL THEN NULL ELSE {this: n1, edge: r0, Chapters: collect(DISTINCT a0)} END AS a1
WITH n0, {this: n0, Ratings: collect(DISTINCT a1)} AS a2
RETURN n0, a2`
	if stmt.Text != want {
		t.Errorf("got:\n%s\nwant:\n%s", stmt.Text, want)
	}
}

func TestIncludeVia_Errors(t *testing.T) {
	registerConnectionTypes(t)

	tests := []struct {
		name string
		run  func(root *Branch[testReader]) error
		want string
	}{
		{"single on collection", func(r *Branch[testReader]) error {
			_, err := IncludeVia[testRating, testBook](r, "Ratings")
			return err
		}, "use IncludeCollectionVia"},
		{"plain include of connections", func(r *Branch[testReader]) error {
			_, err := IncludeCollection[testBook](r, "Ratings")
			return err
		}, "holds testRating connections, use IncludeCollectionVia"},
		{"other connection type", func(r *Branch[testReader]) error {
			_, err := IncludeCollectionVia[testLoan, testCopy](r, "Ratings")
			return err
		}, "does not hold testLoan connections"},
		{"wrong far side", func(r *Branch[testReader]) error {
			_, err := IncludeCollectionVia[testRating, testChapter](r, "Ratings")
			return err
		}, "leads to testBook, not testChapter"},
		{"scalar property", func(r *Branch[testReader]) error {
			_, err := IncludeCollectionVia[testRating, testBook](r, "Name")
			return err
		}, "not a navigation property"},
		{"empty without anonymous connection", func(r *Branch[testReader]) error {
			_, err := IncludeCollectionVia[testRating, testBook](r, "")
			return err
		}, "without a source property"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := NewQuery[testReader]()
			err := tt.run(q.Root())
			var argErr *ArgumentError
			if !errors.As(err, &argErr) {
				t.Fatalf("expected ArgumentError, got %v", err)
			}
			assertContains(t, err.Error(), tt.want)
			if len(q.Tree().Branches) != 0 {
				t.Error("failed include must not change the tree")
			}
		})
	}

	q, _ := NewQuery[testReader]()
	var unmapped *UnmappedTypeError
	if _, err := IncludeCollectionVia[testEdgeFree, testBook](q.Root(), "Ratings"); !errors.As(err, &unmapped) {
		t.Errorf("unregistered connection: expected UnmappedTypeError, got %v", err)
	}
}

func TestQuery_HydrateVia(t *testing.T) {
	registerConnectionTypes(t)

	q, _ := NewQuery[testReader]()
	if _, err := IncludeCollectionVia[testLoan, testCopy](q.Root(), "Loans"); err != nil {
		t.Fatal(err)
	}

	ann := nodeProps(7, "Ann")
	mock := &mockExecutor{responses: [][]map[string]any{{
		{"n0": ann, "a1": map[string]any{
			"this": ann,
			"Loans": []any{
				map[string]any{
					"this": map[string]any{"Barcode": "C-1"},
					"edge": map[string]any{"Days": int64(14), "PropertyName": "Loans", "Version": int64(9)},
				},
				map[string]any{
					"this": map[string]any{"Barcode": "C-2"},
					"edge": map[string]any{"Days": int64(7)},
				},
			},
		}},
	}}}

	readers, err := q.Execute(context.Background(), mock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(readers) != 1 || len(readers[0].Loans) != 2 {
		t.Fatalf("readers: got %+v", readers)
	}
	r := readers[0]
	l := r.Loans[0]
	if l.Days != 14 || l.Reader != r || l.Copy == nil || l.Copy.Barcode != "C-1" {
		t.Errorf("loan: got %+v", l)
	}
	if len(l.Copy.Loans) != 1 || l.Copy.Loans[0] != l {
		t.Error("the copy must hold the same loan")
	}
	if r.Loans[1].Days != 7 || r.Loans[1].Copy.Barcode != "C-2" {
		t.Errorf("second loan: got %+v", r.Loans[1])
	}
}

func TestQuery_HydrateReverseVia(t *testing.T) {
	registerConnectionTypes(t)

	q, _ := NewQuery[testCopy]()
	readers, err := IncludeCollectionVia[testNote, testReader](q.Root(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p := readers.Path(); !p.Reverse || p.Property != "Notes" {
		t.Errorf("Path: got %+v", p)
	}
	stmt, _ := q.Statement()
	assertContains(t, stmt.Text, "OPTIONAL MATCH (n0)<-[r0:Connection {PropertyName: 'Notes'}]-(n1:Reader)")

	cp := map[string]any{"Barcode": "C-1"}
	mock := &mockExecutor{responses: [][]map[string]any{{
		{"n0": cp, "a1": map[string]any{
			"this": cp,
			"n1": []any{map[string]any{
				"this": nodeProps(7, "Ann"),
				"edge": map[string]any{"Text": "worn spine"},
			}},
		}},
	}}}

	rows, err := q.Rows(context.Background(), mock)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || len(rows[0].Related) != 1 {
		t.Fatalf("rows: got %+v", rows)
	}
	rel := rows[0].Related[0]
	if rel.Property != "Notes" || len(rel.Objects) != 1 {
		t.Fatalf("related: got %+v", rel)
	}
	reader, ok := rel.Objects[0].(*testReader)
	if !ok || len(reader.Notes) != 1 {
		t.Fatalf("reader: got %#v", rel.Objects[0])
	}
	note := reader.Notes[0]
	if note.Text != "worn spine" || note.Copy != rows[0].Value || note.Reader != reader {
		t.Errorf("note: got %+v", note)
	}
}

func TestIncludeVia_ReverseNeedsCollection(t *testing.T) {
	registerConnectionTypes(t)

	q, _ := NewQuery[testCopy]()
	_, err := IncludeVia[testNote, testReader](q.Root(), "")
	var argErr *ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatalf("expected ArgumentError, got %v", err)
	}
	if !strings.Contains(err.Error(), "use IncludeCollectionVia") {
		t.Errorf("got %v", err)
	}
}
