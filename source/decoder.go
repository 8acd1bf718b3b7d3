package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"unicode"
)

// DecoderKind selects how a reply body is read.
type DecoderKind int

const (
	// Plain expects the body to contain only the address, possibly surrounded
	// by white space or quotes.
	Plain DecoderKind = iota
	// JSON expects a JSON object holding the address in a named string field.
	JSON
)

// Decoder defines how a source's reply is turned into an IP address.
type Decoder struct {
	Kind  DecoderKind
	Field string
}

// PlainDecoder reads the whole body as the address.
func PlainDecoder() Decoder {
	return Decoder{Kind: Plain}
}

// JSONDecoder reads the address from the named top-level string field.
func JSONDecoder(field string) Decoder {
	return Decoder{Kind: JSON, Field: field}
}

func (d Decoder) String() string {
	if d.Kind == JSON {
		return fmt.Sprintf("Json(%s)", d.Field)
	}
	return "Plain"
}

// Decode extracts the address from an already fetched body.
func (d Decoder) Decode(body []byte) (netip.Addr, error) {
	var raw string
	switch d.Kind {
	case Plain:
		raw = string(body)
	case JSON:
		var err error
		if raw, err = d.field(body); err != nil {
			return netip.Addr{}, err
		}
	default:
		return netip.Addr{}, fmt.Errorf("unknown decoder kind %d", d.Kind)
	}
	return parseAddr(raw)
}

func (d Decoder) field(body []byte) (string, error) {
	var value json.RawMessage
	if err := json.Unmarshal(body, &value); err != nil {
		return "", &DecodeError{Err: err}
	}
	// a reply that is valid JSON but not an object can't hold the field
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(value, &obj); err != nil || obj == nil {
		return "", &MissingFieldError{Field: d.Field}
	}
	v, ok := obj[d.Field]
	if !ok {
		return "", &MissingFieldError{Field: d.Field}
	}
	var s string
	if len(v) == 0 || v[0] != '"' || json.Unmarshal(v, &s) != nil {
		return "", &MalformedFieldError{Field: d.Field, Raw: string(v)}
	}
	return s, nil
}

func parseAddr(raw string) (netip.Addr, error) {
	trimmed := strings.TrimFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || r == '"' || r == '\''
	})
	addr, err := netip.ParseAddr(trimmed)
	if err != nil {
		return netip.Addr{}, &MalformedAddressError{Raw: trimmed, Err: err}
	}
	if addr.Zone() != "" {
		return netip.Addr{}, &MalformedAddressError{Raw: trimmed, Err: errors.New("zoned address")}
	}
	return addr.Unmap(), nil
}
