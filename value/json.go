// Copyright (C) 2024 Michael J. Fromberger. All Rights Reserved.

package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// MarshalJSON encodes v so that UnmarshalJSON recovers the same kind: an Int
// is written without a fraction and a Float always carries one. Non-finite
// floats are written as the strings "NaN", "+Inf", and "-Inf".
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case Invalid:
		return []byte("null"), nil
	case IntKind:
		return strconv.AppendInt(nil, v.i, 10), nil
	case FloatKind:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return json.Marshal(v.String())
		}
		return []byte(formatFloat(v.f)), nil
	case TextKind:
		return json.Marshal(v.s)
	case BoolKind:
		return json.Marshal(v.i != 0)
	case ListKind:
		if v.l == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.l)
	}
	return nil, fmt.Errorf("cannot marshal %v", v.kind)
}

// UnmarshalJSON decodes a value written by MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty value")
	}
	switch data[0] {
	case 'n':
		*v = Value{}
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch s {
		case "NaN":
			*v = Float(math.NaN())
		case "+Inf":
			*v = Float(math.Inf(1))
		case "-Inf":
			*v = Float(math.Inf(-1))
		default:
			*v = Text(s)
		}
		return nil
	case '[':
		var vs []Value
		if err := json.Unmarshal(data, &vs); err != nil {
			return err
		}
		if vs == nil {
			vs = []Value{}
		}
		*v = List(vs)
		return nil
	}
	p := Parse(string(data))
	if !p.IsNumeric() {
		return fmt.Errorf("invalid value %q", data)
	}
	*v = p
	return nil
}
