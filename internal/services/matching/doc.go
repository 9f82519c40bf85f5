// Package matching tests published reports against the local observation
// log and turns hits into alerts.
//
// # Processing a report
//
// A report is decoded and verified first; rejected reports leave no trace in
// storage. A verified report is then matched against observations whose Seq
// is above the report's recorded mark, inside the plausible time window
// derived from the report time and range length. The resulting status, and
// the alert when something matched, are committed in one write.
//
// # Re-delivery
//
// The same report arriving again is a no-op unless the observation log has
// grown since it was last processed. In that case only the new observations
// are matched and merged into the existing alert, so contact samples are
// never counted twice and a NoMatch report can still become Matched.
//
// # Concurrency
//
// ProcessNewReports verifies and matches reports on a bounded pool of
// goroutines. Each report is processed under a lock striped by report ID, and
// the context is checked before each report starts.
package matching
