package types

// GraphQL AST constants used throughout the codebase.
// Centralizing these prevents typos and makes refactoring safer.
const (
	// KindDocument is the kind of the root node of a parsed query document.
	KindDocument = "Document"

	// KindOperationDefinition is the kind of a query, mutation or
	// subscription definition.
	KindOperationDefinition = "OperationDefinition"

	// KindFragmentDefinition is the kind of a named fragment definition.
	KindFragmentDefinition = "FragmentDefinition"

	// KindSelectionSet is the kind of the braces-delimited list of
	// selections under a definition or a field.
	KindSelectionSet = "SelectionSet"

	// KindField is the kind of a plain field selection.
	KindField = "Field"

	// KindInlineFragment is the kind of an inline fragment
	// (e.g., "... on Droid { ... }").
	KindInlineFragment = "InlineFragment"

	// KindFragmentSpread is the kind of a named fragment spread
	// (e.g., "...CharacterFields").
	KindFragmentSpread = "FragmentSpread"
)

// Operation types as they appear in a document.
const (
	OperationQuery        = "query"
	OperationMutation     = "mutation"
	OperationSubscription = "subscription"
)

// Audit tags attached to audit log entries emitted by the secure client.
const (
	// AuditQueryBlocked tags an operation that failed structural
	// validation and never reached the transport.
	AuditQueryBlocked = "UNSAFE_QUERY_BLOCKED"

	// AuditOperationCompleted tags an operation whose transport call
	// returned data without errors.
	AuditOperationCompleted = "OPERATION_COMPLETED"

	// AuditOperationFailed tags an operation whose transport call failed.
	AuditOperationFailed = "OPERATION_FAILED"
)

// DefaultEndpoint is the public GraphQL endpoint used when none is configured.
const DefaultEndpoint = "https://rickandmortyapi.com/graphql"
