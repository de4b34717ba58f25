// Package loader reads state documents into IR objects.
//
// A state document is a file whose top level is an object; it is used as
// the initial state of an engine or as the next state for a transform.
// Supported formats, chosen by file extension:
//   - .json: encoding/json with exact integers
//   - .yaml, .yml: gopkg.in/yaml.v3
//   - .cue: cuelang.org/go, evaluated and exported as concrete JSON
//   - .toml: github.com/BurntSushi/toml
//
// Every format lands in the same value model: null, strings, int64
// integers, booleans, arrays and objects. Floats are rejected.
package loader
