package interfaces

import "context"

// FetchedReport is one opaque report as handed out by a relay.
type FetchedReport struct {
	// Seq is the relay's position for the report, used as fetch cursor.
	Seq  uint64
	Data []byte
}

// ReportTransport moves encoded reports to and from a relay. The core treats
// reports as opaque bytes; the transport never inspects them.
type ReportTransport interface {
	SubmitReport(ctx context.Context, report []byte) error
	// FetchReports returns up to limit reports with Seq greater than after.
	FetchReports(ctx context.Context, after uint64, limit int) ([]FetchedReport, error)
}
