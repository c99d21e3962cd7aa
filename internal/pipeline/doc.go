// Package pipeline implements resumable ticket issuance.
//
// A Poller reads the registration sheet on an interval and hands each data
// row to the Processor, which resolves the attendee's identity, renders and
// publishes the ticket, emails it, and writes per-row status back to the
// sheet and the attendee store. Every step is re-entrant: a row that fails
// part way is picked up again on a later run and converges on the same
// attendee_id.
//
// The package depends only on the interfaces in interfaces.go. Concrete
// collaborators live in sheets/, render/, publish/, notify/ and
// repository/.
package pipeline
