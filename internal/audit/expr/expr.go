// Package expr defines a store-agnostic predicate form for audit queries.
// The query engine compiles filter specifications into predicates and each
// store translates them into its native filter grammar.
package expr

// Op enumerates the operators every store must support.
type Op string

const (
	OpEq      Op = "eq"
	OpBetween Op = "between"
)

// Predicate is a single field-level condition. Predicates in a query combine
// conjunctively.
type Predicate struct {
	Field string
	Op    Op

	// Value holds the comparison operand for OpEq.
	Value any

	// Lo and Hi hold the inclusive range bounds for OpBetween.
	Lo, Hi any
}

// Eq builds an equality predicate.
func Eq(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpEq, Value: value}
}

// Between builds an inclusive range predicate.
func Between(field string, lo, hi any) Predicate {
	return Predicate{Field: field, Op: OpBetween, Lo: lo, Hi: hi}
}
