// Package document provides a generic, schema-unaware tree representation of
// a GraphQL query document.
//
// The tree only records what structural analysis needs: definitions, their
// operation type, and nested selection sets. It is shaped like the graphql-js
// AST so that documents produced elsewhere can be decoded from JSON, and it
// tolerates partial input: a nil definition list or a nil selection set simply
// contributes nothing.
package document

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/llehouerou/go-graphql-guard/types"
)

// Document is the root of a parsed query.
type Document struct {
	Kind        string        `json:"kind"`
	Definitions []*Definition `json:"definitions"`

	// Source is the query text the document was parsed from, if any.
	Source string `json:"-"`
}

// Definition is an operation or fragment definition.
type Definition struct {
	Kind         string        `json:"kind"`
	Operation    string        `json:"operation,omitempty"`
	Name         string        `json:"name,omitempty"`
	SelectionSet *SelectionSet `json:"selectionSet,omitempty"`
}

// SelectionSet is the list of selections under a definition or a selection.
type SelectionSet struct {
	Kind       string       `json:"kind"`
	Selections []*Selection `json:"selections"`
}

// Selection is a field, inline fragment or fragment spread.
type Selection struct {
	Kind         string        `json:"kind"`
	Name         string        `json:"name,omitempty"`
	Alias        string        `json:"alias,omitempty"`
	SelectionSet *SelectionSet `json:"selectionSet,omitempty"`
}

// Parse parses GraphQL query text into a Document.
//
// Only syntax is checked; the document is not validated against any schema.
// Fragment spreads are kept as leaf selections and are not expanded.
func Parse(src string) (*Document, error) {
	qd, err := parser.ParseQuery(&ast.Source{Input: src})
	if err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}

	doc := &Document{
		Kind:        types.KindDocument,
		Definitions: make([]*Definition, 0, len(qd.Operations)+len(qd.Fragments)),
		Source:      src,
	}
	for _, op := range qd.Operations {
		doc.Definitions = append(doc.Definitions, &Definition{
			Kind:         types.KindOperationDefinition,
			Operation:    string(op.Operation),
			Name:         op.Name,
			SelectionSet: convertSelectionSet(op.SelectionSet),
		})
	}
	for _, frag := range qd.Fragments {
		doc.Definitions = append(doc.Definitions, &Definition{
			Kind:         types.KindFragmentDefinition,
			Name:         frag.Name,
			SelectionSet: convertSelectionSet(frag.SelectionSet),
		})
	}
	return doc, nil
}

// MustParse is like Parse but panics on error. It is intended for
// package-level query declarations and tests.
func MustParse(src string) *Document {
	doc, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return doc
}

func convertSelectionSet(set ast.SelectionSet) *SelectionSet {
	if len(set) == 0 {
		return nil
	}
	out := &SelectionSet{
		Kind:       types.KindSelectionSet,
		Selections: make([]*Selection, 0, len(set)),
	}
	for _, sel := range set {
		switch sel := sel.(type) {
		case *ast.Field:
			s := &Selection{
				Kind:         types.KindField,
				Name:         sel.Name,
				SelectionSet: convertSelectionSet(sel.SelectionSet),
			}
			if sel.Alias != sel.Name {
				s.Alias = sel.Alias
			}
			out.Selections = append(out.Selections, s)
		case *ast.InlineFragment:
			out.Selections = append(out.Selections, &Selection{
				Kind:         types.KindInlineFragment,
				Name:         sel.TypeCondition,
				SelectionSet: convertSelectionSet(sel.SelectionSet),
			})
		case *ast.FragmentSpread:
			out.Selections = append(out.Selections, &Selection{
				Kind: types.KindFragmentSpread,
				Name: sel.Name,
			})
		}
	}
	return out
}

// OperationType returns the operation type ("query", "mutation" or
// "subscription") of the first operation definition, or an empty string if
// the document has none.
func (d *Document) OperationType() string {
	if d == nil {
		return ""
	}
	for _, def := range d.Definitions {
		if def != nil && def.Operation != "" {
			return def.Operation
		}
	}
	return ""
}

// OperationName returns the name of the first named operation definition.
func (d *Document) OperationName() string {
	if d == nil {
		return ""
	}
	for _, def := range d.Definitions {
		if def != nil && def.Kind == types.KindOperationDefinition && def.Name != "" {
			return def.Name
		}
	}
	return ""
}
