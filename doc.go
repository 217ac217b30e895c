// Package sendq is the durable outgoing-message pipeline of a messaging
// client: it turns a compose action (text, media, stickers, quoted replies,
// link previews) into a persisted, retry-capable send job.
//
// Typical flow:
//  1. Resolve compose input into a Draft with ResolveText, ResolveMedia or the
//     sticker resolvers. Resolution is pure and touches no storage.
//  2. Enqueue the draft through a Pipeline. Creation of the message record,
//     persistence of its attachments, the pending-send tag and the thread
//     visibility promotion all commit in one write transaction; the call
//     returns only once the message durably exists.
//  3. Run a Scheduler with a Transport to claim pending messages and put them
//     on the wire. Transmission never happens inside the enqueue path.
//
// For the bundled client-local SQLite store, see the sqlite package.
package sendq
