// Package core provides the business logic for spreadsheet import sessions.
//
// It holds the domain logic independent of any transport or storage, so it
// can be driven by the web handlers, a CLI or tests without modification.
//
// # Pipeline
//
// An import moves through four stages, each a pure function over records:
//
//  1. [ParseRows] maps header-keyed rows onto a [Profile]'s fields, drops
//     blank rows and normalizes dates.
//  2. [Validate] checks picklists, applies "Other" companions and enforces
//     the milestone date rule. Problems go into Record.FieldErrors.
//  3. [Resolver.Resolve] attaches owner identifiers in a single
//     [OwnerDirectory] call and dependency identifiers from known records.
//  4. [State] keeps the base records plus a draft overlay of user edits;
//     [State.PrepareCommit] produces the payloads for one all-or-nothing save.
//
// # Profiles
//
// Import kinds are registered at init time using [Register]:
//
//	core.Register(&core.Profile{
//	    Key:   "ssr_records",
//	    Table: "ssr_records",
//	    Columns: []core.Column{
//	        {Header: "Review Date", Field: "Review_Date__c", DBColumn: "review_date", Kind: core.KindDate},
//	    },
//	})
//
// # Sessions
//
// [Service] owns the sessions and serializes the operations on each one.
// Calls to collaborators run outside the session lock while the session is
// marked busy; overlapping imports, edits and commits get [ErrSessionBusy].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - DB001-DB007: Database errors (duplicates, constraints, connections)
//   - VAL001-VAL007: Validation errors (formats, fields, commit refusals)
//   - FILE001-FILE006: File errors (size, encoding, format)
//   - IMP001-IMP007: Import session errors (busy, not found, cancelled)
//   - RES001, SAV001: Owner resolution and save failures
package core
