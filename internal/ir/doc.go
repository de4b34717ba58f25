// Package ir provides the value model for Overfall state.
//
// State is an IRObject: a mapping from string key to IRValue. IRValue is a
// sealed interface implemented only by IRNull, IRString, IRInt, IRBool,
// IRArray and IRObject. ir imports nothing internal; every other package
// builds on it.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers. Hashes and golden
//     traces must be byte-stable.
//   - Values crossing a package boundary are deep-copied with Clone. Callers
//     never share backing maps or slices with an engine.
//   - Object iteration that leaks into output uses SortedKeys (RFC 8785
//     order), never Go map order.
package ir
