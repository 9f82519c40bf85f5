// Package relay moves signed reports between devices.
//
// HTTP is the client side: it implements domain.ReportTransport against a
// relay base URL. Server is a development relay that keeps an append-only,
// in-memory feed of reports and serves it in sequence order.
//
// Wire format:
//
//	POST /reports                 {"report": "<base64>"}   -> {"id", "seq"}
//	GET  /reports?after=N&limit=M                          -> {"reports": [{"seq", "report"}]}
//
// Reports are opaque bytes to the client. The server only accepts reports
// that verify, and stores each report once; resubmitting returns the
// original sequence number. Non-2xx statuses are returned as errors carrying
// the method, path and status text.
package relay
