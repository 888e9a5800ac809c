package cache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type searchResult struct {
	Query string   `json:"query"`
	Hits  []string `json:"hits"`
	Total int      `json:"total"`
}

func TestJSONSerializer_RoundTrip(t *testing.T) {
	s := JSONSerializer{}
	in := searchResult{Query: "shoes", Hits: []string{"a", "b"}, Total: 2}

	payload, err := s.Serialize(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":"shoes","hits":["a","b"],"total":2}`, payload)

	var out searchResult
	require.NoError(t, s.Deserialize(payload, &out))
	assert.Equal(t, in, out)
}

func TestJSONSerializer_Errors(t *testing.T) {
	s := JSONSerializer{}

	_, err := s.Serialize(make(chan int))
	require.Error(t, err)
	assert.True(t, IsSerializationError(err))

	var serr *SerializationError
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "serialize", serr.Op)

	var out searchResult
	err = s.Deserialize("{not json", &out)
	require.Error(t, err)
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, "deserialize", serr.Op)
	assert.False(t, IsBackendError(err))
}

func TestStringSerializer(t *testing.T) {
	s := StringSerializer{}

	tests := []struct {
		name  string
		value any
		want  string
	}{
		{name: "string", value: "hello", want: "hello"},
		{name: "bytes", value: []byte("raw"), want: "raw"},
		{name: "stringer", value: tenantID("acme"), want: "tenant-acme"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Serialize(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := s.Serialize(42)
	assert.True(t, IsSerializationError(err))

	var str string
	require.NoError(t, s.Deserialize("payload", &str))
	assert.Equal(t, "payload", str)

	var raw []byte
	require.NoError(t, s.Deserialize("payload", &raw))
	assert.Equal(t, []byte("payload"), raw)

	var n int
	assert.True(t, IsSerializationError(s.Deserialize("1", &n)))
}
