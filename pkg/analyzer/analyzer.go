// Package analyzer computes structural depth and complexity of GraphQL
// documents and validates them against configured limits.
//
// Analysis works purely on the shape of the document tree; it has no schema
// and never resolves fragment spreads.
package analyzer

import (
	"errors"
	"fmt"
	"math"

	"github.com/llehouerou/go-graphql-guard/pkg/document"
)

const (
	// DefaultMaxDepth is the default maximum selection set nesting.
	DefaultMaxDepth = 10
	// DefaultMaxComplexity is the default maximum weighted field count.
	DefaultMaxComplexity = 1000

	// maxWalkDepth bounds recursion so that cyclic or pathological trees
	// fail analysis instead of exhausting the stack.
	maxWalkDepth = 1024
)

// Error messages reported by Validate.
const (
	ErrMsgNoDefinitions  = "Query must contain at least one definition"
	ErrMsgAnalysisFailed = "Failed to analyze query structure"
)

var errTooDeep = errors.New("selection nesting exceeds analysis bound")

// ValidationResult is the verdict of a single Validate call.
// Valid is true exactly when Errors is empty.
type ValidationResult struct {
	Valid      bool
	Errors     []string
	Depth      int
	Complexity int
}

// Analyzer validates documents against depth and complexity limits.
//
// Limits are float64 so that an unparseable configured limit (NaN) disables
// the corresponding check: every comparison against NaN is false.
type Analyzer struct {
	maxDepth      float64
	maxComplexity float64
}

// New creates an Analyzer with the given limits.
func New(maxDepth, maxComplexity float64) *Analyzer {
	return &Analyzer{
		maxDepth:      maxDepth,
		maxComplexity: maxComplexity,
	}
}

// NewDefault creates an Analyzer with DefaultMaxDepth and
// DefaultMaxComplexity.
func NewDefault() *Analyzer {
	return New(DefaultMaxDepth, DefaultMaxComplexity)
}

// MaxDepth returns the configured depth limit.
func (a *Analyzer) MaxDepth() float64 { return a.maxDepth }

// MaxComplexity returns the configured complexity limit.
func (a *Analyzer) MaxComplexity() float64 { return a.maxComplexity }

// Validate checks doc against the configured limits. Errors accumulate: a
// document that is both too deep and too complex reports both.
// Analysis failures are reported as a single generic error.
func (a *Analyzer) Validate(doc *document.Document) (result ValidationResult) {
	defer func() {
		if r := recover(); r != nil {
			result = failed()
		}
	}()

	depth, err := documentDepth(doc)
	if err != nil {
		return failed()
	}
	complexity, err := documentComplexity(doc)
	if err != nil {
		return failed()
	}

	var errs []string
	if float64(depth) > a.maxDepth {
		errs = append(errs, fmt.Sprintf(
			"Query depth %d exceeds maximum allowed depth of %s",
			depth, formatLimit(a.maxDepth)))
	}
	if float64(complexity) > a.maxComplexity {
		errs = append(errs, fmt.Sprintf(
			"Query complexity %d exceeds maximum allowed complexity of %s",
			complexity, formatLimit(a.maxComplexity)))
	}
	if doc == nil || len(doc.Definitions) == 0 {
		errs = append(errs, ErrMsgNoDefinitions)
	}

	return ValidationResult{
		Valid:      len(errs) == 0,
		Errors:     errs,
		Depth:      depth,
		Complexity: complexity,
	}
}

func failed() ValidationResult {
	return ValidationResult{
		Valid:  false,
		Errors: []string{ErrMsgAnalysisFailed},
	}
}

func formatLimit(f float64) string {
	return fmt.Sprintf("%g", f)
}

// Depth returns the maximum nesting depth of selection sets across all
// definitions of doc. A document whose top-level fields have no children has
// depth 1; a document without definitions or selection sets has depth 0.
// Trees that cannot be analyzed yield 0.
func Depth(doc *document.Document) int {
	d, err := documentDepth(doc)
	if err != nil {
		return 0
	}
	return d
}

// Complexity returns the weighted field count of doc: each selection
// contributes its multiplier, and the multiplier doubles on every level of
// nesting, starting at 1 for top-level selections. Trees that cannot be
// analyzed yield 0.
func Complexity(doc *document.Document) int {
	c, err := documentComplexity(doc)
	if err != nil {
		return 0
	}
	return c
}

func documentDepth(doc *document.Document) (int, error) {
	if doc == nil {
		return 0, nil
	}
	maxDepth := 0
	for _, def := range doc.Definitions {
		if def == nil {
			continue
		}
		d, err := selectionSetDepth(def.SelectionSet, 0)
		if err != nil {
			return 0, err
		}
		maxDepth = max(maxDepth, d)
	}
	return maxDepth, nil
}

func selectionSetDepth(set *document.SelectionSet, level int) (int, error) {
	if set == nil {
		return 0, nil
	}
	if level >= maxWalkDepth {
		return 0, errTooDeep
	}
	maxDepth := 0
	for _, sel := range set.Selections {
		if sel == nil {
			continue
		}
		child, err := selectionSetDepth(sel.SelectionSet, level+1)
		if err != nil {
			return 0, err
		}
		maxDepth = max(maxDepth, 1+child)
	}
	return maxDepth, nil
}

func documentComplexity(doc *document.Document) (int, error) {
	if doc == nil {
		return 0, nil
	}
	total := 0
	for _, def := range doc.Definitions {
		if def == nil {
			continue
		}
		c, err := selectionSetComplexity(def.SelectionSet, 1, 0)
		if err != nil {
			return 0, err
		}
		total = saturatingAdd(total, c)
	}
	return total, nil
}

func selectionSetComplexity(set *document.SelectionSet, multiplier, level int) (int, error) {
	if set == nil {
		return 0, nil
	}
	if level >= maxWalkDepth {
		return 0, errTooDeep
	}
	total := 0
	for _, sel := range set.Selections {
		if sel == nil {
			continue
		}
		total = saturatingAdd(total, multiplier)
		child, err := selectionSetComplexity(sel.SelectionSet, saturatingAdd(multiplier, multiplier), level+1)
		if err != nil {
			return 0, err
		}
		total = saturatingAdd(total, child)
	}
	return total, nil
}

func saturatingAdd(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}
