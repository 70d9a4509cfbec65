// Package simpleevents manages events and their registered attendees with
// pluggable repository and blob storage backends.
//
// It exposes a single Service interface that coordinates operations spanning
// the record store and the blob store: event creation and update with banner
// upload, event deletion with attendee cascade and banner cleanup, and
// attendee registration with capacity and duplicate checks. Implementations of
// repositories (memory, Postgres, MongoDB) and blob stores (memory,
// filesystem, S3) are provided under subpackages.
//
// Consistency Strategy
//
// The two stores share no transaction. Operations run as ordered steps so that
// a failure part way through can at worst leave an unreferenced blob behind:
// new blobs are uploaded before any record points at them, old blobs are
// deleted only after the record stops pointing at them, and attendees are
// removed before their event. Blob cleanup failures are logged and reported
// to the EventSink as orphans; they never fail an operation whose record
// change has already committed.
package simpleevents
