// Package session manages live token-by-token generations, one per
// conversation. It is the concurrency core of the module: everything else is
// request/response.
//
// Lifecycle:
//
//	Pending -> Streaming -> Completed | Failed | Cancelled
//
// A session is created by Registry.Send, moves to Streaming on the first
// provider token, and is removed from the registry the moment it enters a
// terminal state. Terminal states are absorbing. The token buffer only grows;
// no token is removed or reordered once appended. Usage is finalized exactly
// once, on the transition into Completed.
//
// Guarantees enforced here:
//   - at most one Pending/Streaming session per conversation at any instant;
//     a second send fails with aierr.CodeSendWhileBusy instead of queueing
//   - tokens reach the subscriber in exact provider arrival order
//   - OnComplete and OnError fire at most once each, never both
//   - a failed session discards its partial buffer rather than delivering a
//     partial completion
//   - cancel racing a send resolves deterministically: whichever observes the
//     session first wins, and a send arriving after a completed session was
//     removed starts a fresh one
package session
