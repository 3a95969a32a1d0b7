package overlay

import (
	"bytes"
	"encoding/json"
	"strings"
)

type encodeState struct {
	// full writes every position as if it were explicit.
	full     bool
	segments []string
}

func (st *encodeState) push(segment string) { st.segments = append(st.segments, segment) }
func (st *encodeState) pop()                { st.segments = st.segments[:len(st.segments)-1] }
func (st *encodeState) path() string {
	if len(st.segments) == 0 {
		return "<root>"
	}
	return strings.Join(st.segments, ".")
}

// Encode returns the JSON document holding only the explicit parts of n.
// Decoding it onto a default overlay of the same type reproduces n.
func Encode(n Node) ([]byte, error) {
	return encodeNode(n, false)
}

// EncodeFull returns the JSON document of every position of n, explicit or
// not, in the same wire format as Encode.
func EncodeFull(n Node) ([]byte, error) {
	return encodeNode(n, true)
}

func encodeNode(n Node, full bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := n.encode(&buf, &encodeState{full: full}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string) {
	writeString(buf, key)
	buf.WriteByte(':')
}

func writeString(buf *bytes.Buffer, value string) {
	data, _ := json.Marshal(value)
	buf.Write(data)
}
