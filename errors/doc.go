// Package errors provides structured error types for the workspace.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the field path, Go/WIT type names and the cause chain.
//
// Four families matter to callers and have predicates:
//
//	IsDecode      guest presented malformed or out-of-bounds data
//	IsLink        imports/exports do not line up; nothing ran
//	IsCapability  a host side effect failed; the guest saw the engine text
//	IsTrap        the guest faulted or ran past its deadline
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindInvalidVariant).
//		Path("bookmark-node", "parent-id").
//		Detail("discriminant 7").
//		Build()
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
