// Package domain defines the core business types for the ticket issuance
// pipeline.
//
// Types in this package are pure value objects with no behavior beyond
// small helpers. They are the shared language between the pipeline, the
// attendee repositories, and the status API.
//
// Rules for this package:
//   - No imports from other internal/ packages
//   - No *sql.DB, no http.Request, no context.Context in struct fields
//   - JSON/DB/BSON tags are allowed (they're metadata, not behavior)
//   - Constants and enums belong here
package domain
