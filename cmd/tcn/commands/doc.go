// Package commands defines the tcn CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init      Create the data directory, config file and first key
//   - rotate    Retire the current key and start a new one
//   - keys      List report authorization keys
//   - token     Print the token to broadcast now
//   - record    Record an observed token
//   - report    Sign and submit a symptom report
//   - sync      Fetch new reports from the relay and match them
//   - process   Match reports read from files
//   - alerts    List exposure alerts
//   - read      Mark an alert read or unread
//   - dismiss   Dismiss an alert for good
//   - prune     Drop expired observations and keys
//
// # Implementation
//
// The root command loads the config file, applies flag overrides, and builds
// the dependency graph (stores, services, relay client) before any
// subcommand runs. Logs go to stderr; command output goes to stdout.
package commands
