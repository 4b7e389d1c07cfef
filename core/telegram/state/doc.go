// Package state keeps per-user conversation state for the bot: which flow a user
// is in and where inside it. Sessions are transient; they are lost on eviction
// and never hold durable data.
package state
