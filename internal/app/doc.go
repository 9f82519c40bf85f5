// Package app wires application dependencies for the CLI.
//
// It loads Config (YAML file plus flag overrides), builds the process
// logger, and constructs the concrete stores, relay client and services,
// exposing them via the Wire struct for commands to use.
package app
