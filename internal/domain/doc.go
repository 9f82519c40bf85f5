// Package domain defines core data models and interfaces shared across the app.
// It contains plain types (tokens, keys, reports, alerts) and contracts
// (interfaces) only; nothing here touches disk or the network.
package domain
