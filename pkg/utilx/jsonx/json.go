package jsonx

import (
	"github.com/goccy/go-json"
	"github.com/pkg/errors"
)

// ParseJSON parses the JSON data into a map
func ParseJSON(jsonData []byte) (map[string]interface{}, error) {
	var event map[string]interface{}
	if err := json.Unmarshal(jsonData, &event); err != nil {
		return nil, errors.WithMessage(err, "failed to parse JSON event")
	}

	return event, nil
}

// ToRawMessage normalizes a database value into raw JSON.
// Text and byte values are assumed to already hold JSON and are validated,
// any other value is encoded.
func ToRawMessage(value interface{}) (json.RawMessage, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return validRaw(v)
	case string:
		return validRaw([]byte(v))
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, errors.WithMessage(err, "failed to encode value as JSON")
		}

		return data, nil
	}
}

func validRaw(data []byte) (json.RawMessage, error) {
	if !json.Valid(data) {
		return nil, errors.New("value is not valid JSON")
	}

	out := make(json.RawMessage, len(data))
	copy(out, data)

	return out, nil
}

// Encode encodes value as JSON text, leaving values that are already JSON text untouched.
func Encode(value interface{}) (string, error) {
	raw, err := ToRawMessage(value)
	if err != nil {
		return "", err
	}

	return string(raw), nil
}
