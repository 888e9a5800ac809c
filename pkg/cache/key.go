package cache

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// DefaultSeparator joins key parts.
const DefaultSeparator = ":"

// KeyBuilder builds deterministic cache keys from a base name and segments.
type KeyBuilder struct {
	// Separator joins base and segments (default: ":")
	Separator string
}

// BuildKey builds a key with the default separator.
//
// Example:
//
//	BuildKey("search", "demo", "alpha")  // "search:demo:alpha"
//	BuildKey("b", "x", nil)              // "b:x"
func BuildKey(base string, segments ...any) string {
	return KeyBuilder{}.Build(base, segments...)
}

// Build joins base and the normalized segments.
// Segments that are nil, empty after trimming, NaN or infinite are dropped.
// Booleans encode as "1"/"0". Build never fails.
func (b KeyBuilder) Build(base string, segments ...any) string {
	sep := b.Separator
	if sep == "" {
		sep = DefaultSeparator
	}

	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, base)
	for _, seg := range segments {
		if s, ok := normalizeSegment(seg); ok {
			parts = append(parts, s)
		}
	}

	return strings.Join(parts, sep)
}

// normalizeSegment converts a segment to its key form.
// The second return value is false when the segment must be dropped.
func normalizeSegment(seg any) (string, bool) {
	switch v := seg.(type) {
	case nil:
		return "", false
	case string:
		return trimmed(v)
	case bool:
		if v {
			return "1", true
		}
		return "0", true
	case int:
		return strconv.FormatInt(int64(v), 10), true
	case int8:
		return strconv.FormatInt(int64(v), 10), true
	case int16:
		return strconv.FormatInt(int64(v), 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint8:
		return strconv.FormatUint(uint64(v), 10), true
	case uint16:
		return strconv.FormatUint(uint64(v), 10), true
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float32:
		return formatFloat(float64(v), 32)
	case float64:
		return formatFloat(v, 64)
	case fmt.Stringer:
		if isNilPointer(v) {
			return "", false
		}
		return trimmed(v.String())
	}

	rv := reflect.ValueOf(seg)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", false
		}
		return normalizeSegment(rv.Elem().Interface())
	}

	return trimmed(fmt.Sprint(seg))
}

func trimmed(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}

func formatFloat(f float64, bitSize int) (string, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", false
	}
	return strconv.FormatFloat(f, 'f', -1, bitSize), true
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
