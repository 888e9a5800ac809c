package cache

import (
	"encoding/json"
	"fmt"
)

// Serializer converts values to and from the string form kept by a Backend.
type Serializer interface {
	// Serialize encodes v. Failures are returned as *SerializationError.
	Serialize(v any) (string, error)

	// Deserialize decodes payload into dest, which must be a pointer.
	// Failures are returned as *SerializationError.
	Deserialize(payload string, dest any) error
}

// JSONSerializer is the default Serializer.
type JSONSerializer struct{}

// Serialize encodes v as JSON.
func (JSONSerializer) Serialize(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", &SerializationError{Op: "serialize", Err: err}
	}
	return string(data), nil
}

// Deserialize decodes a JSON payload into dest.
func (JSONSerializer) Deserialize(payload string, dest any) error {
	if err := json.Unmarshal([]byte(payload), dest); err != nil {
		return &SerializationError{Op: "deserialize", Err: err}
	}
	return nil
}

// StringSerializer stores raw text without JSON encoding.
type StringSerializer struct{}

// Serialize accepts string, []byte and fmt.Stringer values.
func (StringSerializer) Serialize(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	case fmt.Stringer:
		return s.String(), nil
	default:
		return "", &SerializationError{
			Op:  "serialize",
			Err: fmt.Errorf("string serializer: unsupported type %T", v),
		}
	}
}

// Deserialize writes payload into a *string or *[]byte.
func (StringSerializer) Deserialize(payload string, dest any) error {
	switch d := dest.(type) {
	case *string:
		if d == nil {
			break
		}
		*d = payload
		return nil
	case *[]byte:
		if d == nil {
			break
		}
		*d = []byte(payload)
		return nil
	}
	return &SerializationError{
		Op:  "deserialize",
		Err: fmt.Errorf("string serializer: unsupported destination %T", dest),
	}
}
