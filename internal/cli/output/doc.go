// Package output provides output formatting for licmesh-cli.
//
// Three formats are supported:
//
//   - table: aligned columns via text/tabwriter; single records render as
//     FIELD/VALUE pairs, slices as one row per element
//   - json: indented JSON
//   - yaml: YAML through gopkg.in/yaml.v3, keyed by the json field names
//
// Struct fields may carry a `table` tag: "-" hides the field, "wide" shows
// it only in wide mode, "ms" renders an int64 Unix millisecond value as a
// timestamp.
package output
