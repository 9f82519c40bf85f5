// Package alerts manages the alerts shown to the user.
//
// An alert exists at most once per report. Later matches for the same report
// only widen it: the contact window grows, the minimum distance can only
// drop, and the average is re-weighted by sample count. Deleting an alert
// dismisses it for good; re-delivery of the report never brings it back.
package alerts
