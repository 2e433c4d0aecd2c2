// Package assertions reads page state and checks it against expectations.
//
// Observable properties:
//   - url, title of the page
//   - value, checked, text, inner_text of one element
//   - visible (false when nothing matches) and count of matches
//   - style:<css-property> (computed) and attr:<name>
//
// Operators: ==, !=, >, >=, <, <=, contains, startsWith, endsWith, matches,
// in, !in, empty, !empty and schema (JSON Schema, inline or from a file).
// Numeric strings compare equal to numbers, so count == "2" holds.
package assertions
