// Package binding implements the lifecycle of a device binding: a user id bound to a
// push channel id, confirmed with a one-time code and later renamed or removed.
//
// Per channel id the lifecycle is
//
//	ABSENT --new--> PENDING --verify--> VERIFIED --update--> ABSENT (+ VERIFIED under the new id)
//	any state --del--> ABSENT
//
// A VERIFIED binding never returns to PENDING without a delete in between.
//
// Service keeps no state of its own. Every read-modify-write goes through the
// conditional writes of store.IStore (CreateIfAbsent, CompareAndSwap, CompareAndDelete).
// A lost conditional write is reported as ErrConflict and the request can be resent.
// Domain outcomes are Result values, never errors.
package binding
