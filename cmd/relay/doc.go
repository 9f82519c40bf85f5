// Command relay runs a development report relay.
//
// It accepts signed reports over HTTP, keeps them in memory in arrival
// order, and serves them to devices polling with a sequence cursor. Reports
// are lost on restart.
//
// Usage:
//
//	relay -addr :8080 -log-format json
package main
