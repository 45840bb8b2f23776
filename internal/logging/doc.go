// Package logging builds the slog loggers used across lectern.
//
// Console output renders a compact single-line format keyed for humans; JSON
// output targets log shippers. The format is auto-selected with isatty unless
// configured explicitly. Standard field keys live here so components agree on
// attribute names, and WithContext lifts segment/stage/correlation identifiers
// out of a context into logger attributes.
package logging
