// Package domain contains the core business entities for EvalForge.
//
// This package defines:
//   - Entity types (Experiment, ExperimentRun, DatasetItem, Trace, Span, etc.)
//   - Value objects and enums
//   - Input/output types for service operations
//
// Domain types are persistence-agnostic and represent the core
// business concepts independent of how they are stored or transmitted.
//
// Types ending in "Input" are used for create/update operations.
// Types ending in "Filter" are used for query operations.
package domain
