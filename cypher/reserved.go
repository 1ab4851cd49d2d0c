package cypher

import (
	"fmt"
	"strings"
	"unicode"
)

// ReservedWords is the set of Cypher keywords that must be quoted when used
// as labels, relationship types or property keys.
var ReservedWords = map[string]bool{
	// Reading clauses
	"match": true, "optional": true, "where": true, "with": true, "return": true,
	"unwind": true, "call": true, "yield": true, "union": true, "all": true,
	// Writing clauses
	"create": true, "merge": true, "set": true, "remove": true, "delete": true,
	"detach": true, "on": true, "foreach": true, "load": true, "csv": true,
	// Projection modifiers
	"distinct": true, "order": true, "by": true, "skip": true, "limit": true,
	"asc": true, "ascending": true, "desc": true, "descending": true, "as": true,
	// Expressions
	"case": true, "when": true, "then": true, "else": true, "end": true,
	"and": true, "or": true, "xor": true, "not": true, "in": true, "is": true,
	"starts": true, "ends": true, "contains": true, "exists": true,
	// Literals
	"true": true, "false": true, "null": true,
	// Schema
	"constraint": true, "index": true, "unique": true, "drop": true,
	"assert": true, "node": true, "key": true, "for": true, "require": true,
	// Reserved for future use
	"add": true, "do": true, "mandatory": true, "scalar": true, "of": true,
}

// IsReservedWord returns true if the given name is a Cypher reserved keyword.
// The check is case-insensitive.
func IsReservedWord(name string) bool {
	return ReservedWords[strings.ToLower(name)]
}

// isPlainIdent reports whether name can be written without backticks.
func isPlainIdent(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}
	return true
}

// QuoteIdent renders name as a Cypher symbolic name, wrapping it in
// backticks when it is reserved or contains characters outside
// letters, digits and underscores. Embedded backticks are doubled.
func QuoteIdent(name string) string {
	if isPlainIdent(name) && !IsReservedWord(name) {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// ValidateIdentifier checks that a name can be used as a label, relationship
// type or property key. Returns nil if valid, or an error describing the problem.
func ValidateIdentifier(name, context string) error {
	if name == "" {
		return &InvalidIdentifierError{Name: name, Context: context, Reason: "must not be empty"}
	}
	for i, r := range name {
		if unicode.IsControl(r) {
			return &InvalidIdentifierError{
				Name:    name,
				Context: context,
				Reason:  fmt.Sprintf("invalid character %q at position %d", r, i),
			}
		}
	}
	return nil
}

// InvalidIdentifierError is returned when a name cannot be used as a Cypher
// symbolic name.
type InvalidIdentifierError struct {
	Name    string
	Context string
	Reason  string
}

func (e *InvalidIdentifierError) Error() string {
	return fmt.Sprintf("invalid %s name %q: %s", e.Context, e.Name, e.Reason)
}
