// Package placeholder expands {Field@Record} expressions inside JSON
// argument templates.
//
// Information Hiding:
// - Template syntax (JSONC, ordered keys) hidden behind Parse and Node
// - Record lookups hidden behind the Fetcher capability
// - Recursion and cycle tracking internal to the Engine
package placeholder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/jsonc"
)

// ErrTemplate marks a template that is not valid JSON.
var ErrTemplate = errors.New("invalid argument template")

// Kind identifies the variant of a Node.
type Kind int

const (
	KindObject Kind = iota
	KindArray
	KindString
	KindScalar
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	case KindScalar:
		return "scalar"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Member is a key/value pair of an object node.
type Member struct {
	Key   string
	Value *Node
}

// Node is an argument document: a JSON tree whose objects keep key order.
// Scalar holds the raw JSON text of numbers, booleans and null.
type Node struct {
	Kind    Kind
	Members []Member
	Items   []*Node
	Str     string
	Raw     string
}

// Object creates an object node.
func Object(members ...Member) *Node {
	return &Node{Kind: KindObject, Members: members}
}

// Array creates an array node.
func Array(items ...*Node) *Node {
	return &Node{Kind: KindArray, Items: items}
}

// String creates a string node.
func String(s string) *Node {
	return &Node{Kind: KindString, Str: s}
}

// Scalar creates a number, boolean or null node from its JSON text.
func Scalar(raw string) *Node {
	return &Node{Kind: KindScalar, Raw: raw}
}

// M is shorthand for a Member.
func M(key string, value *Node) Member {
	return Member{Key: key, Value: value}
}

// Get returns the value of the first member with exactly this key.
func (n *Node) Get(key string) (*Node, bool) {
	if n == nil || n.Kind != KindObject {
		return nil, false
	}
	for _, m := range n.Members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// HasKeyFold reports whether an object has a key equal to key ignoring case.
func (n *Node) HasKeyFold(key string) bool {
	if n == nil || n.Kind != KindObject {
		return false
	}
	for _, m := range n.Members {
		if strings.EqualFold(m.Key, key) {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Kind: n.Kind, Str: n.Str, Raw: n.Raw}
	if n.Members != nil {
		out.Members = make([]Member, len(n.Members))
		for i, m := range n.Members {
			out.Members[i] = Member{Key: m.Key, Value: m.Value.Clone()}
		}
	}
	if n.Items != nil {
		out.Items = make([]*Node, len(n.Items))
		for i, item := range n.Items {
			out.Items[i] = item.Clone()
		}
	}
	return out
}

// Parse reads a JSON template. Comments and trailing commas are accepted.
// An empty template is an empty object.
func Parse(template string) (*Node, error) {
	if strings.TrimSpace(template) == "" {
		return Object(), nil
	}

	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON([]byte(template))))
	dec.UseNumber()

	node, err := decodeNode(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplate, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected data after document", ErrTemplate)
	}
	return node, nil
}

func decodeNode(dec *json.Decoder) (*Node, error) {
	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			obj := Object()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("expected object key, got %v", keyTok)
				}
				value, err := decodeNode(dec)
				if err != nil {
					return nil, err
				}
				obj.Members = append(obj.Members, Member{Key: key, Value: value})
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return obj, nil
		case '[':
			arr := Array()
			for dec.More() {
				item, err := decodeNode(dec)
				if err != nil {
					return nil, err
				}
				arr.Items = append(arr.Items, item)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return arr, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %q", v)
	case string:
		return String(v), nil
	case json.Number:
		return Scalar(v.String()), nil
	case bool:
		if v {
			return Scalar("true"), nil
		}
		return Scalar("false"), nil
	case nil:
		return Scalar("null"), nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

// MarshalJSON encodes the node keeping object key order.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// String returns the compact JSON text of the node.
func (n *Node) String() string {
	data, err := n.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid node: %v>", err)
	}
	return string(data)
}

func (n *Node) write(buf *bytes.Buffer) error {
	if n == nil {
		buf.WriteString("null")
		return nil
	}
	switch n.Kind {
	case KindObject:
		buf.WriteByte('{')
		for i, m := range n.Members {
			if i > 0 {
				buf.WriteByte(',')
			}
			writeString(buf, m.Key)
			buf.WriteByte(':')
			if err := m.Value.write(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case KindArray:
		buf.WriteByte('[')
		for i, item := range n.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.write(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindString:
		writeString(buf, n.Str)
	case KindScalar:
		if !json.Valid([]byte(n.Raw)) {
			return fmt.Errorf("invalid scalar %q", n.Raw)
		}
		buf.WriteString(n.Raw)
	default:
		return fmt.Errorf("unknown node kind %v", n.Kind)
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	// Encode appends a newline.
	buf.Truncate(buf.Len() - 1)
}
