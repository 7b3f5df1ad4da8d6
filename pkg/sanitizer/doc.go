// Package sanitizer normalizes free-text input before validation and storage.
//
// All functions are idempotent: applying them repeatedly yields the same result.
// They never fail; invalid input collapses to the empty string.
//
// Normalization includes:
//   - Strings: collapse internal whitespace runs to one space, trim the ends
//   - Resource keys: whitespace-normalized, case preserved, used as exact-match keys
//   - Clock labels: whitespace-normalized with an upper-case AM/PM marker
package sanitizer
