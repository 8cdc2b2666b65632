// Package jsonbody binds JSON request bodies to typed values and reports
// decode failures with the document path of the rejected node.
//
// A failed bind is one of two errors. *ReadError means the body never
// arrived: the connection dropped or the size cap was hit. *Diagnostic means
// the bytes arrived but were rejected, and carries a Path such as
// "items[3].name" pointing at the offending node. Both render stable
// client-facing messages through Error().
//
// Parsing is done by encoding/json; this package adds localization on top
// by replaying the body's token stream up to the reported error offset.
// Presence rules come from validate struct tags, so a missing required
// member is reported at its own path just like a type mismatch.
package jsonbody
