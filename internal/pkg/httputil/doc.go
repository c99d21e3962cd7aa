// Package httputil provides shared HTTP response helpers for the status API.
//
// Handlers use these helpers instead of writing raw http.ResponseWriter
// calls, which keeps JSON formatting and error envelopes consistent.
package httputil
