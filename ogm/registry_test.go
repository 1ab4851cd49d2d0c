package ogm

import (
	"errors"
	"reflect"
	"testing"
)

type testEdition struct {
	Isbn    string
	Edition int
	Title   string
}

type testNoKey struct {
	Title string
}

func TestRegister(t *testing.T) {
	registerTestTypes(t)

	desc, ok := Lookup("Book")
	if !ok {
		t.Fatal("expected to find Book")
	}
	if desc.GoType != reflect.TypeOf(testBook{}) {
		t.Errorf("GoType: got %v", desc.GoType)
	}
	if !reflect.DeepEqual(desc.Key, []string{"Id"}) || !desc.StoreAssignedKey {
		t.Errorf("Key: got %v (assigned %v), want [Id] assigned", desc.Key, desc.StoreAssignedKey)
	}

	byType, ok := LookupType(reflect.TypeOf(&testBook{}))
	if !ok || byType != desc {
		t.Error("expected same descriptor from both lookups")
	}

	if len(desc.Navigations) != 2 {
		t.Fatalf("Navigations: got %d, want 2", len(desc.Navigations))
	}
	chapters, ok := desc.Navigation("Chapters")
	if !ok || !chapters.Collection || chapters.Target != reflect.TypeOf(testChapter{}) {
		t.Errorf("Chapters navigation: got %+v", chapters)
	}
	if _, ok := desc.Field("Author"); ok {
		t.Error("navigation property must not be a scalar field")
	}
}

func TestRegister_TagKey(t *testing.T) {
	registerTestTypes(t)

	desc, _ := Lookup("Author")
	if !reflect.DeepEqual(desc.Key, []string{"Name"}) || desc.StoreAssignedKey {
		t.Errorf("Key: got %v (assigned %v)", desc.Key, desc.StoreAssignedKey)
	}
	peer, _ := Lookup("Peer")
	if !reflect.DeepEqual(peer.Key, []string{"code"}) {
		t.Errorf("Peer key: got %v", peer.Key)
	}
}

func TestRegister_WithKey(t *testing.T) {
	ClearRegistry()
	t.Cleanup(ClearRegistry)

	if err := Register[testEdition](WithKey("x => new { x.Isbn, x.Edition }")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	desc, _ := Lookup("testEdition")
	if !reflect.DeepEqual(desc.Key, []string{"Isbn", "Edition"}) {
		t.Errorf("Key: got %v", desc.Key)
	}
	if len(desc.KeyFields()) != 2 {
		t.Errorf("KeyFields: got %d", len(desc.KeyFields()))
	}
}

func TestRegister_Idempotent(t *testing.T) {
	registerTestTypes(t)

	if err := Ignore[testBook]("Draft"); err != nil {
		t.Fatalf("ignore: %v", err)
	}
	if err := Register[testBook](WithLabel("Book")); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	desc, _ := Lookup("Book")
	if !desc.IsIgnored("Draft") {
		t.Error("re-registration dropped ignored property")
	}
	if len(RelationsOf("Book")) != 2 {
		t.Errorf("re-registration dropped relations: %v", RelationsOf("Book"))
	}
}

func TestRegister_Conflicts(t *testing.T) {
	ClearRegistry()
	t.Cleanup(ClearRegistry)

	MustRegister[testEdition](WithKey("Isbn"))

	var cfgErr *ConfigurationError
	if err := Register[testEdition](WithKey("Title")); !errors.As(err, &cfgErr) {
		t.Errorf("different key: expected ConfigurationError, got %v", err)
	}
	if err := Register[testEdition](WithKey("Isbn"), WithLabel("Other")); !errors.As(err, &cfgErr) {
		t.Errorf("different label: expected ConfigurationError, got %v", err)
	}
	if err := Register[testNoKey](WithKey("Title"), WithLabel("testEdition")); !errors.As(err, &cfgErr) {
		t.Errorf("label taken: expected ConfigurationError, got %v", err)
	}
}

func TestRegister_MissingKey(t *testing.T) {
	ClearRegistry()
	t.Cleanup(ClearRegistry)

	var cfgErr *ConfigurationError
	if err := Register[testNoKey](); !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
	if err := Register[testBook](WithKey("Chapters")); !errors.As(err, &cfgErr) {
		t.Errorf("navigation key: expected ConfigurationError, got %v", err)
	}
	var argErr *ArgumentError
	if err := Register[testBook](WithKey("{}")); !errors.As(err, &argErr) {
		t.Errorf("empty key: expected ArgumentError, got %v", err)
	}
}

func TestMustRegister_Panics(t *testing.T) {
	ClearRegistry()
	t.Cleanup(ClearRegistry)

	defer func() {
		if recover() == nil {
			t.Error("expected panic")
		}
	}()
	MustRegister[testNoKey]()
}

func TestIgnore(t *testing.T) {
	registerTestTypes(t)

	if err := Ignore[testBook]("x => new { x.Draft, x.Author }"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	desc, _ := Lookup("Book")
	if !desc.IsIgnored("Draft") || !desc.IsIgnored("Author") {
		t.Errorf("Ignored: got %v", desc.Ignored)
	}
	for _, f := range desc.writableFields() {
		if f.Property == "Draft" {
			t.Error("ignored field still writable")
		}
	}
	for _, n := range desc.traversable() {
		if n.Property == "Author" {
			t.Error("ignored navigation still traversable")
		}
	}
}

func TestIgnore_Errors(t *testing.T) {
	registerTestTypes(t)

	var cfgErr *ConfigurationError
	if err := Ignore[testBook]("Id"); !errors.As(err, &cfgErr) {
		t.Errorf("key: expected ConfigurationError, got %v", err)
	}
	if err := Ignore[testBook]("Missing"); !errors.As(err, &cfgErr) {
		t.Errorf("unknown: expected ConfigurationError, got %v", err)
	}
	var unmapped *UnmappedTypeError
	if err := Ignore[testNoKey]("Title"); !errors.As(err, &unmapped) {
		t.Errorf("unregistered: expected UnmappedTypeError, got %v", err)
	}
	// A failed Ignore leaves nothing half-applied.
	if err := Ignore[testBook]("{Draft, Id}"); err == nil {
		t.Fatal("expected error")
	}
	desc, _ := Lookup("Book")
	if desc.IsIgnored("Draft") {
		t.Error("partial ignore was applied")
	}
}

func TestRegisteredTypes_Sorted(t *testing.T) {
	registerTestTypes(t)

	var labels []string
	for _, d := range RegisteredTypes() {
		labels = append(labels, d.Label)
	}
	want := []string{"Author", "Book", "Chapter", "Peer", "Review"}
	if !reflect.DeepEqual(labels, want) {
		t.Errorf("got %v, want %v", labels, want)
	}
}

func TestRegisterRelation(t *testing.T) {
	registerTestTypes(t)

	inv, ok := InverseOf("Book", "Chapters")
	if !ok || inv != (PropertyRef{Label: "Chapter", Property: "Book"}) {
		t.Errorf("InverseOf(Book.Chapters): got %+v, %v", inv, ok)
	}
	inv, ok = InverseOf("Chapter", "Book")
	if !ok || inv != (PropertyRef{Label: "Book", Property: "Chapters"}) {
		t.Errorf("InverseOf(Chapter.Book): got %+v, %v", inv, ok)
	}
	if _, ok := InverseOf("Review", "Book"); ok {
		t.Error("anonymous source side must have no inverse")
	}

	b, ok := anonymousSourceBinding("Book", "Review", "")
	if !ok || b.Destination.Property != "Book" {
		t.Errorf("anonymousSourceBinding: got %+v, %v", b, ok)
	}
	if got := b.String(); got != "Book <-> Review.Book" {
		t.Errorf("String: got %q", got)
	}

	// Registering the same binding again is a no-op.
	if err := RegisterRelation[testBook, testChapter]("Chapters", "x => x.Book"); err != nil {
		t.Errorf("identical binding: %v", err)
	}
	if n := len(RelationsOf("Chapter")); n != 1 {
		t.Errorf("RelationsOf(Chapter): got %d, want 1", n)
	}
}

func TestRegisterRelation_Errors(t *testing.T) {
	registerTestTypes(t)

	var argErr *ArgumentError
	if err := RegisterRelation[testBook, testChapter]("", ""); !errors.As(err, &argErr) {
		t.Errorf("both anonymous: expected ArgumentError, got %v", err)
	}
	if err := RegisterRelation[testBook, testChapter]("x => new { x.Chapters, x.Author }", "Book"); !errors.As(err, &argErr) {
		t.Errorf("two properties: expected ArgumentError, got %v", err)
	}

	var cfgErr *ConfigurationError
	if err := RegisterRelation[testBook, testChapter]("Name", "Book"); !errors.As(err, &cfgErr) {
		t.Errorf("scalar property: expected ConfigurationError, got %v", err)
	}
	if err := RegisterRelation[testBook, testChapter]("Author", "Book"); !errors.As(err, &cfgErr) {
		t.Errorf("wrong target: expected ConfigurationError, got %v", err)
	}
	if err := RegisterRelation[testBook, testChapter]("", "Book"); !errors.As(err, &cfgErr) {
		t.Errorf("rebinding destination: expected ConfigurationError, got %v", err)
	}
	if err := RegisterRelation[testPeer, testPeer]("Next", ""); err != nil {
		t.Fatalf("self relation: %v", err)
	}
	if err := RegisterRelation[testPeer, testPeer]("Next", "Next"); !errors.As(err, &cfgErr) {
		t.Errorf("rebinding source: expected ConfigurationError, got %v", err)
	}

	var unmapped *UnmappedTypeError
	if err := RegisterRelation[testBook, testNoKey]("Chapters", ""); !errors.As(err, &unmapped) {
		t.Errorf("unregistered: expected UnmappedTypeError, got %v", err)
	}
}
