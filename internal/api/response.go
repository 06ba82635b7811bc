package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Response is a decoded backend reply. The typed fields are filled when the
// body is an object; Raw always holds the decoded body whatever its shape.
type Response struct {
	Token     string
	Email     string
	FirstName string
	LastName  string
	ID        string
	Avatar    string
	Errors    json.RawMessage
	Raw       json.RawMessage
}

type wireResponse struct {
	Token     flexString      `json:"token"`
	Email     flexString      `json:"email"`
	FirstName flexString      `json:"firstname"`
	LastName  flexString      `json:"lastname"`
	ID        flexString      `json:"id"`
	Avatar    flexString      `json:"avatar"`
	Errors    json.RawMessage `json:"errors"`
}

// Decode parses a reply body. A body that is itself a JSON string is unwrapped
// and parsed again.
func Decode(body []byte) (*Response, error) {
	raw := bytes.TrimSpace(body)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		raw = bytes.TrimSpace([]byte(inner))
	}
	if len(raw) == 0 || !json.Valid(raw) {
		return nil, ErrDecode
	}

	resp := &Response{Raw: append(json.RawMessage(nil), raw...)}
	if raw[0] != '{' {
		return resp, nil
	}

	var w wireResponse
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	resp.Token = string(w.Token)
	resp.Email = string(w.Email)
	resp.FirstName = string(w.FirstName)
	resp.LastName = string(w.LastName)
	resp.ID = string(w.ID)
	resp.Avatar = string(w.Avatar)
	if truthy(w.Errors) {
		resp.Errors = w.Errors
	}

	return resp, nil
}

// HasErrors reports whether the reply carried a truthy errors field.
func (r *Response) HasErrors() bool {
	return r != nil && len(r.Errors) > 0
}

// truthy mirrors how the backend's clients test the errors field: absent, null,
// false, 0 and "" mean no errors.
func truthy(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	switch string(v) {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}

// flexString accepts strings, numbers and booleans; the backend is not
// consistent about quoting ids.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}
