// Package errors provides application error types for EvalForge.
//
// Errors are created through constructor functions and carry a
// machine-readable code plus an HTTP status mapping:
//
//	return apperrors.NotFound("experiment")
//	return apperrors.Validation("dataset version id is required")
//
// Check error classes with the Is* helpers:
//
//	if apperrors.IsNotFound(err) {
//	    // reject before any state change
//	}
//
// AppError supports wrapping with fmt.Errorf("...: %w", err), so callers
// can classify errors that crossed several layers.
package errors
