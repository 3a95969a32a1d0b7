package overlay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

type decodeState struct {
	segments        []string
	disallowUnknown bool
	useNumber       bool
}

func newDecodeState(cfg config) *decodeState {
	return &decodeState{
		disallowUnknown: cfg.disallowUnknown,
		useNumber:       cfg.useNumber,
	}
}

func (st *decodeState) push(segment string) { st.segments = append(st.segments, segment) }
func (st *decodeState) pop()                { st.segments = st.segments[:len(st.segments)-1] }
func (st *decodeState) path() string        { return strings.Join(st.segments, ".") }

func (st *decodeState) fail(kind error, detail string, cause error) error {
	return &DecodeError{Path: st.path(), Kind: kind, Detail: detail, Err: cause}
}

// child decodes raw onto n. A null token only lands on nodes that can hold
// one; elsewhere it is a gap when positional and an error when keyed.
func (st *decodeState) child(n Node, raw json.RawMessage, positional bool) error {
	if isNull(raw) && !acceptsNull(n) {
		if positional {
			return nil
		}
		return st.fail(ErrFormatMismatch, fmt.Sprintf("null is not a valid %v", n.Type()), nil)
	}
	return n.decode(raw, st)
}

func acceptsNull(n Node) bool {
	switch n := n.(type) {
	case *OptionNode, *DynamicNode:
		return true
	case *LeafNode:
		switch n.typ.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map:
			return true
		}
	}
	return false
}

func (st *decodeState) unmarshal(raw json.RawMessage, target any) error {
	if !st.useNumber {
		return json.Unmarshal(raw, target)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(target)
}

func (st *decodeState) array(raw json.RawMessage, t reflect.Type) ([]json.RawMessage, error) {
	if tokenKind(raw) != '[' {
		return nil, st.fail(ErrFormatMismatch, fmt.Sprintf("expected array for %v, got %s", t, tokenName(raw)), nil)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, st.fail(ErrFormatMismatch, "invalid array", err)
	}
	return items, nil
}

func (st *decodeState) object(raw json.RawMessage, t reflect.Type) (map[string]json.RawMessage, error) {
	if tokenKind(raw) != '{' {
		return nil, st.fail(ErrFormatMismatch, fmt.Sprintf("expected object for %v, got %s", t, tokenName(raw)), nil)
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, st.fail(ErrFormatMismatch, "invalid object", err)
	}
	return entries, nil
}

// Apply decodes data onto n. Keys present in data become explicit, missing
// keys leave the existing overlay untouched. A document that fails to decode
// leaves n unchanged.
func Apply(n Node, data []byte, opts ...Option) error {
	cfg := applyOptions(opts)
	if err := applyDocument(n.clone(), data, cfg); err != nil {
		return err
	}
	return applyDocument(n, data, cfg)
}

// applyDocument decodes data onto n in place. A null document is a no-op so
// the encoding of an implicit root reads back unchanged.
func applyDocument(n Node, data []byte, cfg config) error {
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return &DecodeError{Kind: ErrFormatMismatch, Detail: "invalid JSON document", Err: err}
	}
	return newDecodeState(cfg).child(n, raw, true)
}

func tokenKind(raw json.RawMessage) byte {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) == 0 {
		return 0
	}
	switch c := trimmed[0]; c {
	case '{', '[', '"', 'n', 't', 'f':
		return c
	default:
		return '0'
	}
}

func isNull(raw json.RawMessage) bool {
	return tokenKind(raw) == 'n'
}

func tokenName(raw json.RawMessage) string {
	switch tokenKind(raw) {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 'n':
		return "null"
	case 't', 'f':
		return "bool"
	case '0':
		return "number"
	default:
		return "empty input"
	}
}
