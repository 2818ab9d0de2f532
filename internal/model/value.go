package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// maxExponent bounds the exponents numberText expands
const maxExponent = 400

// ListSeparator joins list answers when they are shown or exported as text
const ListSeparator = "; "

// Value is an answer as submitted by a client: either scalar text or a list of
// selected options. It is stored as text; lists become a JSON array.
type Value struct {
	text   string
	list   []string
	isList bool
}

// TextValue wraps a scalar answer
func TextValue(s string) Value {
	return Value{text: s}
}

// ListValue wraps a multi-select answer
func ListValue(items []string) Value {
	if items == nil {
		items = []string{}
	}
	return Value{list: items, isList: true}
}

// IsList reports whether the value is a multi-select answer
func (v Value) IsList() bool { return v.isList }

// Text returns the scalar text; empty for lists
func (v Value) Text() string { return v.text }

// List returns the selected options; nil for scalars
func (v Value) List() []string { return v.list }

// Encode returns the canonical storage text for the value
func (v Value) Encode() string {
	if !v.isList {
		return v.text
	}
	return encodeList(v.list)
}

// UnmarshalJSON accepts a string, number, boolean, null or array
func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return fmt.Errorf("empty answer value")
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = TextValue(s)
	case '[':
		var items []any
		dec := json.NewDecoder(bytes.NewReader(b))
		dec.UseNumber()
		if err := dec.Decode(&items); err != nil {
			return err
		}
		out := make([]string, len(items))
		for i, item := range items {
			out[i] = elementText(item)
		}
		*v = ListValue(out)
	case 'n':
		*v = TextValue("")
	case 't', 'f':
		var flag bool
		if err := json.Unmarshal(b, &flag); err != nil {
			return err
		}
		*v = TextValue(strconv.FormatBool(flag))
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("invalid answer value %s", b)
		}
		*v = TextValue(numberText(n))
	}

	return nil
}

// MarshalJSON writes lists as arrays and scalars as strings
func (v Value) MarshalJSON() ([]byte, error) {
	if v.isList {
		return []byte(encodeList(v.list)), nil
	}
	return json.Marshal(v.text)
}

// DecodeList tries to read stored answer text as a JSON array. ok is false for
// anything that is not a well-formed array, in which case the raw text is the
// answer.
func DecodeList(raw string) (items []string, ok bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "[") {
		return nil, false
	}

	var parsed []any
	dec := json.NewDecoder(strings.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&parsed); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}

	items = make([]string, len(parsed))
	for i, item := range parsed {
		items[i] = elementText(item)
	}
	return items, true
}

// DecodeValue turns stored answer text back into a Value
func DecodeValue(raw string) Value {
	if items, ok := DecodeList(raw); ok {
		return ListValue(items)
	}
	return TextValue(raw)
}

// DisplayValue renders stored answer text for people: lists are joined with
// ListSeparator, everything else is returned unchanged
func DisplayValue(raw string) string {
	if items, ok := DecodeList(raw); ok {
		return strings.Join(items, ListSeparator)
	}
	return raw
}

func encodeList(items []string) string {
	if items == nil {
		items = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// a []string always encodes
	_ = enc.Encode(items)
	return strings.TrimRight(buf.String(), "\n")
}

func elementText(item any) string {
	switch x := item.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return numberText(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}

// numberText keeps a JSON number exactly as the client wrote it. Exponent
// notation is expanded to plain decimal digits so 0.1e1 is stored as 1.
func numberText(n json.Number) string {
	s := n.String()
	e := strings.IndexAny(s, "eE")
	if e < 0 {
		return s
	}

	exp, err := strconv.Atoi(s[e+1:])
	if err != nil || exp > maxExponent || exp < -maxExponent {
		return s
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return s
	}

	decimals := -exp
	if dot := strings.IndexByte(s[:e], '.'); dot >= 0 {
		decimals += e - dot - 1
	}
	if decimals < 0 {
		decimals = 0
	}
	return r.FloatString(decimals)
}
