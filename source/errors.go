package source

import (
	"fmt"
)

// DecodeError reports a reply body that is not valid for its decoder at all,
// such as a JSON decoder receiving something that is not JSON.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// MissingFieldError is returned when the expected field is not in the JSON reply.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field `%s` in response", e.Field)
}

// MalformedFieldError is returned when the JSON field holds something other than a string.
type MalformedFieldError struct {
	Field string
	Raw   string
}

func (e *MalformedFieldError) Error() string {
	return fmt.Sprintf("malformed field `%s` in response: `%s`", e.Field, e.Raw)
}

// MalformedAddressError is returned when the extracted text is not an IP literal.
type MalformedAddressError struct {
	Raw string
	Err error
}

func (e *MalformedAddressError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("malformed raw IP value `%s`", e.Raw)
	}
	return fmt.Sprintf("malformed raw IP value `%s`: %v", e.Raw, e.Err)
}

func (e *MalformedAddressError) Unwrap() error { return e.Err }

// StatusError is returned for replies outside the 2xx range.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected http status %d from %s", e.Code, e.URL)
}
