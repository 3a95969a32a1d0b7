// Package state defines persistence-facing contracts for loading and saving
// per-scope overlay documents, plus a resolver that loads the documents of
// several scopes and merges them with the core layering primitives.
//
// Stores persist explicit documents: only the values a scope actually set are
// written, so a stored layer never pins defaults it did not choose.
//
//   - Store[T] loads and saves the document of a single Ref.
//   - Resolver[T] loads documents for multiple scopes and merges them through
//     overlay.NewStack(...).Merge(...).
//   - The core overlay package stays persistence-agnostic.
//
// Data flow:
//
//	Store -> Resolver -> overlay.NewStack(...).Merge(...) -> *overlay.Overlay[T]
//
// Provenance:
//
//	Meta.SnapshotID is mapped onto overlay.Layer[T].SnapshotID (via
//	overlay.WithSnapshotID), which is then observable through
//	Overlay.ResolveWithTrace(...), Overlay.FlattenWithProvenance() and
//	SchemaDocument.Scopes.
//
// Deterministic keys:
//
//	Ref.Identifier() provides a canonical storage key based on the scope model
//	(`system/tenant/org/team/user`).
package state
