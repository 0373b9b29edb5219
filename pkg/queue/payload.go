package queue

import (
	"encoding/json"
	"errors"
	"strconv"

	"github.com/google/uuid"
)

// Payload is the job record stored in Redis.
type Payload struct {
	ID       string          `json:"id"`
	Handler  Descriptor      `json:"handler"`
	Data     json.RawMessage `json:"data,omitempty"`
	Attempts uint            `json:"attempts"`
}

var errMissingID = errors.New("payload has no id")

// newPayload builds a first-attempt payload with a fresh id.
func newPayload(d Descriptor, data any) (Payload, error) {
	if err := d.Validate(); err != nil {
		return Payload{}, err
	}

	raw, err := marshalData(data)
	if err != nil {
		return Payload{}, err
	}

	return Payload{
		ID:       uuid.NewString(),
		Handler:  d,
		Data:     raw,
		Attempts: 1,
	}, nil
}

// marshalData encodes job data. json.RawMessage is stored as is.
func marshalData(data any) (json.RawMessage, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, errors.Join(ErrSerialization, errors.New("data is not valid JSON"))
		}
		return v, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Join(ErrSerialization, err)
	}
	return raw, nil
}

func encodePayload(p Payload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", errors.Join(ErrSerialization, err)
	}
	return string(b), nil
}

// DecodePayload parses a stored payload.
func DecodePayload(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, errors.Join(ErrSerialization, err)
	}
	if p.ID == "" {
		return Payload{}, errors.Join(ErrSerialization, errMissingID)
	}
	return p, nil
}

// rewriteAttempts replaces the attempts field and keeps every other field
// of the stored object untouched, including fields this package does not know.
func rewriteAttempts(raw string, attempts uint) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return "", errors.Join(ErrSerialization, err)
	}
	if fields == nil {
		return "", errors.Join(ErrSerialization, errMissingID)
	}

	fields["attempts"] = json.RawMessage(strconv.FormatUint(uint64(attempts), 10))

	b, err := json.Marshal(fields)
	if err != nil {
		return "", errors.Join(ErrSerialization, err)
	}
	return string(b), nil
}
