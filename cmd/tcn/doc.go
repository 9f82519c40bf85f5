// Command tcn is the host-side CLI for the TCN exposure-notification engine.
//
// See package commands for the available subcommands.
package main
