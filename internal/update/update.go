// Package update turns a flat request body into an update specification
// for a selective (PATCH) write.
//
// Clients send every field at the top level:
//
//	{ "age": 21, "merit": 300 }
//
// but the stored document keeps merit and other inside a sub-document.
// The builder rewrites those keys into dotted paths and leaves everything
// else alone:
//
//	{ "age": 21, "scholarship.merit": 300 }
//
// Only keys present in the input appear in the output. That is the whole
// difference between a selective update and a full replacement.
package update

import (
	"sort"
	"strings"
)

// Spec maps an update path (a top-level field or a dotted path into a
// sub-document) to its new value.
type Spec map[string]any

// Rule routes a flat input field into a parent sub-document.
type Rule struct {
	Field  string // key as sent by the client, e.g. "merit"
	Parent string // sub-document it belongs to, e.g. "scholarship"
}

// ScholarshipRules is the routing table for the Student document.
var ScholarshipRules = []Rule{
	{Field: "merit", Parent: "scholarship"},
	{Field: "other", Parent: "scholarship"},
}

// Builder builds update specifications from flat input.
// A Builder is immutable after construction and safe for concurrent use.
type Builder struct {
	parents map[string]string
}

// NewBuilder returns a Builder using the given routing rules.
// A later rule for the same field replaces an earlier one.
func NewBuilder(rules ...Rule) *Builder {
	parents := make(map[string]string, len(rules))
	for _, r := range rules {
		parents[r.Field] = r.Parent
	}
	return &Builder{parents: parents}
}

// Default returns a Builder for the Student document.
func Default() *Builder {
	return NewBuilder(ScholarshipRules...)
}

// Path returns the update path for a flat input field.
func (b *Builder) Path(field string) string {
	if parent, ok := b.parents[field]; ok {
		return parent + "." + field
	}
	return field
}

// Build converts input into a Spec. Values are copied unchanged and field
// names are not checked against any allow-list; rejecting unknown or
// malformed fields is left to the store.
//
// Keys are visited in sorted order. If a rewritten key lands on a path the
// caller also sent verbatim (both "merit" and "scholarship.merit"), the
// verbatim key wins.
func (b *Builder) Build(input map[string]any) Spec {
	spec := make(Spec, len(input))

	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		path := b.Path(k)
		if path != k {
			if _, verbatim := input[path]; verbatim {
				continue
			}
		}
		spec[path] = input[k]
	}

	return spec
}

// Paths returns the keys of s in sorted order.
func (s Spec) Paths() []string {
	paths := make([]string, 0, len(s))
	for p := range s {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Split breaks a dotted path into its segments.
func Split(path string) []string {
	return strings.Split(path, ".")
}
