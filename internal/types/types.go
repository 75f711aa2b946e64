// Package types holds all shared data structures (models) used across
// the application. Keeping them in one place prevents import cycles:
// handlers, storage, and utils can all import types without depending
// on each other.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Student is the persisted entity.
//
// The JSON shape is nested: merit and other never appear at the top
// level, they always live under "scholarship".
//
//	{ "id": "...", "name": "Amy", "age": 19, "major": "Math",
//	  "scholarship": { "merit": 50, "other": 10 } }
//
// validate:"..." tags are the write-time schema enforced by every
// storage backend before a document is persisted.
type Student struct {
	ID          string      `json:"id,omitempty"`
	Name        string      `json:"name"        validate:"required"`
	Age         Amount      `json:"age"         validate:"gte=0,lte=150"`
	Major       string      `json:"major"       validate:"required"`
	Scholarship Scholarship `json:"scholarship"`
}

// Scholarship is the sub-document embedded in every Student.
type Scholarship struct {
	Merit Amount `json:"merit" validate:"gte=0"`
	Other Amount `json:"other" validate:"gte=0"`
}

// Amount is a number that also accepts numeric strings on input,
// so {"merit": "100"} and {"merit": 100} decode to the same value.
// Strings naming a non-finite value ("Inf", "NaN") are rejected.
// It always encodes as a JSON number.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return fmt.Errorf("cast to number failed for value %q", s)
		}
		*a = Amount(f)
		return nil
	}

	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("cast to number failed for value %s", string(b))
	}
	*a = Amount(f)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// StudentInput is the flat body accepted by POST and PUT.
//
// Clients send merit and other next to name/age/major:
//
//	{ "name": "Amy", "age": 19, "major": "Math", "merit": 50, "other": 10 }
//
// Every field is required. The numeric fields are pointers so that an
// explicit 0 (a perfectly valid "other" amount) is distinguishable from
// a missing field; validator's "required" checks pointers for nil.
// ─────────────────────────────────────────────────────────────────────────────
type StudentInput struct {
	Name  *string `json:"name"  validate:"required"`
	Age   *Amount `json:"age"   validate:"required"`
	Major *string `json:"major" validate:"required"`
	Merit *Amount `json:"merit" validate:"required"`
	Other *Amount `json:"other" validate:"required"`
}

// Student builds the full nested document from the flat input.
// The scholarship sub-document is always present, whatever was supplied.
func (in StudentInput) Student() Student {
	var s Student
	if in.Name != nil {
		s.Name = *in.Name
	}
	if in.Age != nil {
		s.Age = *in.Age
	}
	if in.Major != nil {
		s.Major = *in.Major
	}
	if in.Merit != nil {
		s.Scholarship.Merit = *in.Merit
	}
	if in.Other != nil {
		s.Scholarship.Other = *in.Other
	}
	return s
}

// DeleteResult reports the effect of a delete-by-id.
// Deleting an id that matches nothing is not an error: DeletedCount is 0.
type DeleteResult struct {
	Acknowledged bool  `json:"acknowledged"`
	DeletedCount int64 `json:"deletedCount"`
}
