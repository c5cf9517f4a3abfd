// Package convert is the boundary between typed entity field values and
// their backend storage representation. Temporal values are stored in the
// backend datetime format, UUIDs as canonical lower-case strings, and
// serialized fields through the legacy flat-text (JSON) path.
package convert

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/beyondautomation/spot2/metadata"
)

const (
	// StorageDatetimeFormat is the flat datetime representation understood
	// by MySQL and SQLite alike.
	StorageDatetimeFormat = "2006-01-02 15:04:05"
	// StorageDateFormat is the date-only representation.
	StorageDateFormat = "2006-01-02"
)

// ToStorage converts a typed field value into what the backend stores.
func ToStorage(fieldType metadata.FieldType, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch fieldType {
	case metadata.TypeDatetime:
		t, err := coerceTime(value)
		if err != nil {
			return nil, err
		}
		return t.UTC().Format(StorageDatetimeFormat), nil
	case metadata.TypeDate:
		t, err := coerceTime(value)
		if err != nil {
			return nil, err
		}
		return t.UTC().Format(StorageDateFormat), nil
	case metadata.TypeUUID:
		return uuidToStorage(value)
	case metadata.TypeSerialized:
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("convert: serialize field: %w", err)
		}
		return string(encoded), nil
	case metadata.TypeBoolean:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("convert: boolean field got %T", value)
		}
		if b {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return value, nil
	}
}

// FromStorage converts a raw backend value into the typed field value.
func FromStorage(fieldType metadata.FieldType, raw any) (any, error) {
	if raw == nil {
		return nil, nil
	}
	switch fieldType {
	case metadata.TypeDatetime:
		return parseStorageTime(raw, StorageDatetimeFormat)
	case metadata.TypeDate:
		return parseStorageTime(raw, StorageDateFormat)
	case metadata.TypeUUID:
		parsed, err := uuid.Parse(strings.TrimSpace(asString(raw)))
		if err != nil {
			return nil, fmt.Errorf("convert: invalid stored UUID: %w", err)
		}
		return strings.ToLower(parsed.String()), nil
	case metadata.TypeSerialized:
		var out any
		if err := json.Unmarshal([]byte(asString(raw)), &out); err != nil {
			return nil, fmt.Errorf("convert: deserialize field: %w", err)
		}
		return out, nil
	case metadata.TypeBoolean:
		return coerceBool(raw)
	case metadata.TypeInteger:
		return coerceInt(raw)
	case metadata.TypeFloat:
		return coerceFloat(raw)
	case metadata.TypeString, metadata.TypeText:
		return asString(raw), nil
	default:
		return raw, nil
	}
}

func coerceTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		for _, layout := range []string{time.RFC3339, StorageDatetimeFormat, StorageDateFormat} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("convert: unparseable time %q", v)
	case int64:
		return time.Unix(v, 0), nil
	case int:
		return time.Unix(int64(v), 0), nil
	default:
		return time.Time{}, fmt.Errorf("convert: temporal field got %T", value)
	}
}

func parseStorageTime(raw any, layout string) (time.Time, error) {
	switch v := raw.(type) {
	case time.Time:
		return v, nil
	case []byte:
		return parseStorageTime(string(v), layout)
	case string:
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UTC(), nil
		}
		return time.Time{}, fmt.Errorf("convert: unparseable stored time %q", v)
	default:
		return time.Time{}, fmt.Errorf("convert: stored temporal value is %T", raw)
	}
}

func uuidToStorage(value any) (any, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return strings.ToLower(v.String()), nil
	case string:
		parsed, err := uuid.Parse(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("convert: invalid UUID value: %w", err)
		}
		return strings.ToLower(parsed.String()), nil
	case []byte:
		parsed, err := uuid.FromBytes(v)
		if err != nil {
			return nil, fmt.Errorf("convert: invalid UUID bytes: %w", err)
		}
		return strings.ToLower(parsed.String()), nil
	default:
		return nil, fmt.Errorf("convert: UUID field got %T", value)
	}
}

func asString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

func coerceBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case []byte:
		return coerceBool(string(v))
	case string:
		parsed, err := strconv.ParseBool(v)
		if err == nil {
			return parsed, nil
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return false, fmt.Errorf("convert: unparseable boolean %q", v)
		}
		return n != 0, nil
	default:
		return false, fmt.Errorf("convert: boolean field stored as %T", raw)
	}
}

func coerceInt(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case []byte:
		return coerceInt(string(v))
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("convert: unparseable integer %q", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("convert: integer field stored as %T", raw)
	}
}

func coerceFloat(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case []byte:
		return coerceFloat(string(v))
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("convert: unparseable float %q", v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("convert: float field stored as %T", raw)
	}
}
