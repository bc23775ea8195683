// Package state provides JSON-file-backed persistence for local CLI
// state: saved macros and the cached session tokens. All writes are
// atomic (temp file + rename).
package state
