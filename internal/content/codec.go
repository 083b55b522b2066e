package content

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	j "github.com/goccy/go-json"
)

// ErrTrailingData is returned when a JSON value is followed by more input.
var ErrTrailingData = errors.New("content: trailing data after document")

// Decode parses one JSON value from r, keeping object keys in input order and
// classifying kind-tagged objects as fields.
func Decode(r io.Reader) (Node, error) {
	dec := j.NewDecoder(r)
	dec.UseNumber()
	n, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, ErrTrailingData
	}
	return n, nil
}

// DecodeBytes is Decode over a byte slice.
func DecodeBytes(b []byte) (Node, error) {
	return Decode(bytes.NewReader(b))
}

func decodeValue(dec *j.Decoder) (Node, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("content: decode: %w", err)
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *j.Decoder, tok any) (Node, error) {
	switch v := tok.(type) {
	case j.Delim:
		switch v {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
		return nil, fmt.Errorf("content: unexpected delimiter %q", rune(v))
	case string:
		return String(v), nil
	case bool:
		return Bool(v), nil
	case j.Number:
		s, ok := NumberText(string(v))
		if !ok {
			return nil, fmt.Errorf("content: invalid number %q", string(v))
		}
		return s, nil
	case float64:
		return Number(v), nil
	case nil:
		return Null(), nil
	}
	return nil, fmt.Errorf("content: unexpected token %T", tok)
}

func decodeObject(dec *j.Decoder) (Node, error) {
	var ms []Member
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("content: decode object: %w", err)
		}
		if d, ok := tok.(j.Delim); ok && d == '}' {
			break
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("content: object key is %T", tok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		ms = append(ms, Member{Key: key, Value: val})
	}
	return classify(NewObject(ms...)), nil
}

func decodeArray(dec *j.Decoder) (Node, error) {
	items := []Node{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("content: decode array: %w", err)
		}
		if d, ok := tok.(j.Delim); ok && d == ']' {
			break
		}
		n, err := decodeToken(dec, tok)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return &Array{items: items}, nil
}

// Encode writes n as compact JSON in document order.
func Encode(n Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeIndent writes n as indented JSON in document order.
func EncodeIndent(n Node, indent string) ([]byte, error) {
	raw, err := Encode(n)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := j.Indent(&out, raw, "", indent); err != nil {
		return nil, fmt.Errorf("content: indent: %w", err)
	}
	return out.Bytes(), nil
}

func encode(buf *bytes.Buffer, n Node) error {
	switch v := n.(type) {
	case *Scalar:
		return encodeScalar(buf, v)
	case *Array:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case *Object:
		return encodeMembers(buf, v.members)
	case *Field:
		return encodeMembers(buf, v.obj.members)
	case nil:
		buf.WriteString("null")
		return nil
	}
	return fmt.Errorf("content: cannot encode %T", n)
}

func encodeMembers(buf *bytes.Buffer, ms []Member) error {
	buf.WriteByte('{')
	for i, m := range ms {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := j.Marshal(m.Key)
		if err != nil {
			return fmt.Errorf("content: encode key: %w", err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		if err := encode(buf, m.Value); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func encodeScalar(buf *bytes.Buffer, s *Scalar) error {
	switch s.typ {
	case ScalarString:
		raw, err := j.Marshal(s.text)
		if err != nil {
			return fmt.Errorf("content: encode string: %w", err)
		}
		buf.Write(raw)
	case ScalarNumber:
		buf.WriteString(s.text)
	case ScalarBool:
		if s.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	default:
		buf.WriteString("null")
	}
	return nil
}
