// Package reporting turns a symptom submission into signed reports and
// hands them to the transport.
//
// Every key still inside its acceptance window reports its own broadcast
// history, so rotation never hides earlier tokens. Each range is capped at
// the maximum report length and starts where the key's previous report
// stopped; the memo records when the range's first token went on air. The
// published marks are persisted before any report leaves the device, so a
// crash after sending never leads to a report that reaches back into an
// already published range.
package reporting
