// Package rbac implements role-based access control over users, groups and
// the group hierarchy.
//
// Authorization questions come in two shapes. State-aware checks intersect the
// role types a principal holds on an object with the reader or writer list of
// a workflow state. State-free checks intersect the principal's role type
// names with a required set, with an administrator override. Both are answered
// by the Checker, which aggregates roles through the mastergroup ancestor
// chain via the Engine.
//
// Per-request entity lookups go through Loaders, which memoize by id so a
// single request never fetches the same row twice. Mutations re-run their
// permission checks at execution time against current data, never against
// values cached from an earlier read.
package rbac
