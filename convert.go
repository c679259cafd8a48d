package foundry

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var timeLayouts = []string{
	"15:04:05.999999999",
	"15:04:05",
	"15:04",
}

// ToStoreValue converts an API value into the typed parameter bound for
// the property's column. Nil passes through untouched.
func ToStoreValue(p *Property, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch p.APIType {
	case "integer":
		return toInt(p, value)
	case "number", "float", "double", "decimal", "real", "numeric":
		return toFloat(p, value)
	case "boolean":
		return toStoreBool(p, value)
	case "date":
		return toDate(p, value)
	case "date-time":
		return toDateTime(p, value)
	case "time":
		return toTimeOfDay(p, value)
	case "uuid":
		return toUUID(p, value)
	default:
		if s, ok := value.(string); ok {
			return s, nil
		}
		return fmt.Sprintf("%v", value), nil
	}
}

// ToAPIValue converts a database value into its API representation.
// Nil passes through untouched.
func ToAPIValue(p *Property, value any) any {
	if value == nil {
		return nil
	}
	switch p.APIType {
	case "boolean":
		if p.ColumnType == "integer" {
			// integer-backed booleans read back as strings
			if truthyNumber(value) {
				return "true"
			}
			return "false"
		}
		return value
	case "date":
		if t, ok := value.(time.Time); ok {
			return t.Format("2006-01-02")
		}
		return value
	case "date-time":
		if t, ok := value.(time.Time); ok {
			return t.Format(time.RFC3339Nano)
		}
		return value
	case "time":
		if t, ok := value.(time.Time); ok {
			return t.Format("15:04:05")
		}
		return value
	case "uuid":
		if u, ok := value.(uuid.UUID); ok {
			return u.String()
		}
		if b, ok := value.([16]byte); ok {
			return uuid.UUID(b).String()
		}
		return value
	default:
		return value
	}
}

func toInt(p *Property, value any) (any, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, NewConversionError(
				fmt.Sprintf("invalid integer value '%s'", v), err).WithField(p.Name)
		}
		return n, nil
	}
	return nil, NewConversionError(
		fmt.Sprintf("cannot convert %T to integer", value), nil).WithField(p.Name)
}

func toFloat(p *Property, value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, NewConversionError(
				fmt.Sprintf("invalid numeric value '%s'", v), err).WithField(p.Name)
		}
		return f, nil
	}
	return nil, NewConversionError(
		fmt.Sprintf("cannot convert %T to number", value), nil).WithField(p.Name)
}

func toStoreBool(p *Property, value any) (any, error) {
	var b bool
	switch v := value.(type) {
	case bool:
		b = v
	case string:
		b = strings.EqualFold(strings.TrimSpace(v), "true")
	case int:
		b = v != 0
	case int64:
		b = v != 0
	case float64:
		b = v != 0
	default:
		return nil, NewConversionError(
			fmt.Sprintf("cannot convert %T to boolean", value), nil).WithField(p.Name)
	}
	if p.ColumnType == "integer" {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	return b, nil
}

func truthyNumber(value any) bool {
	switch v := value.(type) {
	case int:
		return v != 0
	case int16:
		return v != 0
	case int32:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	case bool:
		return v
	case string:
		return v != "" && v != "0" && !strings.EqualFold(v, "false")
	}
	return false
}

func toDate(p *Property, value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		t, err := time.Parse("2006-01-02", strings.TrimSpace(v))
		if err != nil {
			return nil, NewConversionError(
				fmt.Sprintf("invalid date value '%s'", v), err).WithField(p.Name)
		}
		return t, nil
	}
	return nil, NewConversionError(
		fmt.Sprintf("cannot convert %T to date", value), nil).WithField(p.Name)
}

func toDateTime(p *Property, value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateTimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, NewConversionError(
			fmt.Sprintf("invalid date-time value '%s'", v), nil).WithField(p.Name)
	}
	return nil, NewConversionError(
		fmt.Sprintf("cannot convert %T to date-time", value), nil).WithField(p.Name)
}

func toTimeOfDay(p *Property, value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, NewConversionError(
			fmt.Sprintf("invalid time value '%s'", v), nil).WithField(p.Name)
	}
	return nil, NewConversionError(
		fmt.Sprintf("cannot convert %T to time", value), nil).WithField(p.Name)
}

func toUUID(p *Property, value any) (any, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v.String(), nil
	case string:
		u, err := uuid.Parse(strings.TrimSpace(v))
		if err != nil {
			return nil, NewConversionError(
				fmt.Sprintf("invalid uuid value '%s'", v), err).WithField(p.Name)
		}
		return u.String(), nil
	}
	return nil, NewConversionError(
		fmt.Sprintf("cannot convert %T to uuid", value), nil).WithField(p.Name)
}
