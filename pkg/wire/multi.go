package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/woopsa-protocol/woopsa-go/pkg/value"
)

// MultiRequestMethod is the path of the method that executes a batch.
const MultiRequestMethod = "/MultiRequest"

// MultiRequestArgument is the name of its single argument.
const MultiRequestArgument = "Requests"

// Request is one call inside a multi-request.
//
// JSON encoding:
//
//	{"Id": 1, "Action": "invoke", "Path": "/A/B", "Arguments": {"X": "1"}}
type Request struct {
	ID        int               `json:"Id"`
	Action    Action            `json:"Action"`
	Path      string            `json:"Path"`
	Value     *string           `json:"Value,omitempty"`
	Arguments map[string]string `json:"Arguments,omitempty"`
}

// Validate checks the request shape.
func (r *Request) Validate() error {
	if !r.Action.IsValid() {
		return fmt.Errorf("%w: invalid action %d", ErrInvalidArgument, r.Action)
	}
	if r.Action == ActionWrite && r.Value == nil {
		return fmt.Errorf("%w: write without value", ErrInvalidArgument)
	}
	return nil
}

// Response is the outcome of one Request, matched by ID.
type Response struct {
	ID     int             `json:"Id"`
	Result json.RawMessage `json:"Result"`
}

// NewValueResponse builds a successful response carrying v.
func NewValueResponse(id int, v value.Value) Response {
	data, err := json.Marshal(v)
	if err != nil {
		return NewErrorResponse(id, err)
	}
	return Response{ID: id, Result: data}
}

// NewMetaResponse builds a successful meta response.
func NewMetaResponse(id int, m *Meta) Response {
	data, err := json.Marshal(m)
	if err != nil {
		return NewErrorResponse(id, err)
	}
	return Response{ID: id, Result: data}
}

// NewErrorResponse builds a failed response.
func NewErrorResponse(id int, err error) Response {
	data, _ := json.Marshal(NewError(err))
	return Response{ID: id, Result: data}
}

// Err returns the error carried by the response, or nil on success.
func (r *Response) Err() error {
	if e, ok := DecodeError(r.Result); ok {
		return e
	}
	return nil
}

// Value decodes the result as a value. A null or absent result (a method
// without return value) decodes as value.Null().
func (r *Response) Value() (value.Value, error) {
	if err := r.Err(); err != nil {
		return value.Value{}, err
	}
	raw := bytes.TrimSpace(r.Result)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return value.Null(), nil
	}
	var v value.Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return value.Value{}, fmt.Errorf("failed to decode result %d: %w", r.ID, err)
	}
	return v, nil
}

// Meta decodes the result as object metadata.
func (r *Response) Meta() (*Meta, error) {
	if err := r.Err(); err != nil {
		return nil, err
	}
	var m Meta
	if err := json.Unmarshal(r.Result, &m); err != nil {
		return nil, fmt.Errorf("failed to decode meta %d: %w", r.ID, err)
	}
	return &m, nil
}

// EncodeRequests encodes a multi-request batch.
func EncodeRequests(reqs []Request) ([]byte, error) {
	for i := range reqs {
		if err := reqs[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid request %d: %w", reqs[i].ID, err)
		}
	}
	return json.Marshal(reqs)
}

// DecodeRequests decodes a multi-request batch.
func DecodeRequests(data []byte) ([]Request, error) {
	var reqs []Request
	if err := json.Unmarshal(data, &reqs); err != nil {
		return nil, fmt.Errorf("%w: failed to decode requests: %v", ErrInvalidArgument, err)
	}
	for i := range reqs {
		if err := reqs[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid request %d: %w", reqs[i].ID, err)
		}
	}
	return reqs, nil
}

// EncodeResponses encodes a multi-request answer.
func EncodeResponses(resps []Response) ([]byte, error) {
	if resps == nil {
		resps = []Response{}
	}
	return json.Marshal(resps)
}

// DecodeResponses decodes a multi-request answer.
func DecodeResponses(data []byte) ([]Response, error) {
	var resps []Response
	if err := json.Unmarshal(data, &resps); err != nil {
		return nil, fmt.Errorf("failed to decode responses: %w", err)
	}
	return resps, nil
}
