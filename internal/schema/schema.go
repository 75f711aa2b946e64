// Package schema is the write-time schema for Student documents.
//
// Every storage backend runs documents and update specifications through
// this package before writing, so both backends accept and reject exactly
// the same input:
//
//   - Validate checks a whole document (insert and full replace).
//   - Sanitize checks a selective update: it drops paths the schema does
//     not know, casts each remaining value to the field's Go type and,
//     when asked, validates only the fields being written.
package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/scholarship-api/internal/types"
	"github.com/aanand-mishra/scholarship-api/internal/update"
	"github.com/aanand-mishra/scholarship-api/internal/utils/apperr"
)

// field describes one updatable path of the document.
type field struct {
	index  []int    // reflect field index chain from the Student root
	leaves []string // Go namespaces validated when this path is written
}

var (
	validate = newValidator()
	fields   = compile(reflect.TypeOf(types.Student{}))
)

// Validator returns the validator configured for Student documents.
// Field names in its errors are the JSON names ("merit", not "Merit").
func Validator() *validator.Validate {
	return validate
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// compile walks the Student type and records every JSON path that an
// update may target. The id is immutable and is not updatable.
func compile(t reflect.Type) map[string]field {
	out := make(map[string]field)
	var walk func(t reflect.Type, path string, ns string, index []int)
	walk = func(t reflect.Type, path string, ns string, index []int) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" || name == "id" {
				continue
			}

			p := path + name
			n := ns + f.Name
			idx := append(append([]int{}, index...), i)

			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, p+".", n+".", idx)
				var leaves []string
				for sub, sf := range out {
					if strings.HasPrefix(sub, p+".") {
						leaves = append(leaves, sf.leaves...)
					}
				}
				out[p] = field{index: idx, leaves: leaves}
				continue
			}

			out[p] = field{index: idx, leaves: []string{n}}
		}
	}
	walk(t, "", "", nil)
	return out
}

// Known reports whether path is an updatable path of the document.
func Known(path string) bool {
	_, ok := fields[path]
	return ok
}

// Validate checks a complete document against the schema.
func Validate(s types.Student) error {
	if err := validate.Struct(s); err != nil {
		return apperr.Validation(err)
	}
	return nil
}

// Sanitize prepares a selective update for writing.
//
// Unknown paths are dropped. A spec that sets both a sub-document and one
// of its fields ("scholarship" and "scholarship.merit") is rejected. Each
// remaining value is cast to its field type, so "100" becomes 100 for a
// numeric field. When validateValues is set, only the written fields are
// validated; untouched fields are never checked.
func Sanitize(spec update.Spec, validateValues bool) (update.Spec, error) {
	known := make([]string, 0, len(spec))
	for _, p := range spec.Paths() {
		if Known(p) {
			known = append(known, p)
		}
	}

	for _, p := range known {
		for _, q := range known {
			if strings.HasPrefix(q, p+".") {
				return nil, apperr.Validation(
					fmt.Errorf("updating path %q would conflict at %q", q, p))
			}
		}
	}

	out := make(update.Spec, len(known))
	if len(known) == 0 {
		return out, nil
	}

	// Cast by round-tripping the known paths through the Student type.
	nested := make(map[string]any)
	for _, p := range known {
		setPath(nested, update.Split(p), spec[p])
	}
	raw, err := json.Marshal(nested)
	if err != nil {
		return nil, apperr.Validation(err)
	}
	var doc types.Student
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperr.Validation(castError(err))
	}

	if validateValues {
		var namespaces []string
		for _, p := range known {
			namespaces = append(namespaces, fields[p].leaves...)
		}
		if err := validate.StructPartial(doc, namespaces...); err != nil {
			return nil, apperr.Validation(err)
		}
	}

	v := reflect.ValueOf(doc)
	for _, p := range known {
		out[p] = v.FieldByIndex(fields[p].index).Interface()
	}
	return out, nil
}

func setPath(m map[string]any, segments []string, value any) {
	for _, s := range segments[:len(segments)-1] {
		child, ok := m[s].(map[string]any)
		if !ok {
			child = make(map[string]any)
			m[s] = child
		}
		m = child
	}
	m[segments[len(segments)-1]] = value
}

func castError(err error) error {
	var te *json.UnmarshalTypeError
	if errors.As(err, &te) {
		return fmt.Errorf("cast to %s failed for path %q", te.Type, te.Field)
	}
	return err
}
