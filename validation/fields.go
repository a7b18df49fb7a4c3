package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/text/unicode/norm"
)

// object reads typed fields out of one JSON object and reports failures
// against its position in the payload.
type object struct {
	v      gjson.Result
	prefix string
	index  int
}

func (o object) fail(key, format string, args ...any) *Error {
	return &Error{Field: o.prefix + key, Index: o.index, Reason: fmt.Sprintf(format, args...)}
}

// lookup returns the first of keys present on the object.
func (o object) lookup(keys ...string) (gjson.Result, string, bool) {
	for _, k := range keys {
		if r := o.v.Get(gjson.Escape(k)); r.Exists() {
			return r, k, true
		}
	}
	return gjson.Result{}, keys[0], false
}

func (o object) require(keys ...string) (gjson.Result, string, error) {
	r, key, ok := o.lookup(keys...)
	if !ok {
		return r, key, o.fail(strings.Join(keys, "|"), "is required")
	}
	return r, key, nil
}

// integer reads a required, non-null whole number. Numeric strings coerce.
func (o object) integer(keys ...string) (int64, error) {
	r, key, err := o.require(keys...)
	if err != nil {
		return 0, err
	}
	if r.Type == gjson.Null {
		return 0, o.fail(key, "must not be null")
	}
	n, ok := toInt(r)
	if !ok {
		return 0, o.fail(key, "must be a whole number, got %s", r.Raw)
	}
	return n, nil
}

// nullableInteger reads a field that must be present but may be null.
func (o object) nullableInteger(key string) (*int64, error) {
	r, _, err := o.require(key)
	if err != nil {
		return nil, err
	}
	if r.Type == gjson.Null {
		return nil, nil
	}
	n, ok := toInt(r)
	if !ok {
		return nil, o.fail(key, "must be a whole number or null, got %s", r.Raw)
	}
	return &n, nil
}

// optionalInteger reads a field that defaults to 0 when absent or null.
func (o object) optionalInteger(key string) (int64, error) {
	r, _, ok := o.lookup(key)
	if !ok || r.Type == gjson.Null {
		return 0, nil
	}
	n, ok := toInt(r)
	if !ok {
		return 0, o.fail(key, "must be a whole number, got %s", r.Raw)
	}
	return n, nil
}

func (o object) number(key string) (float64, error) {
	r, _, err := o.require(key)
	if err != nil {
		return 0, err
	}
	switch r.Type {
	case gjson.Number:
		return r.Num, nil
	case gjson.String:
		if f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64); err == nil {
			return f, nil
		}
	}
	return 0, o.fail(key, "must be a number, got %s", r.Raw)
}

func (o object) text(keys ...string) (string, error) {
	r, key, err := o.require(keys...)
	if err != nil {
		return "", err
	}
	if r.Type != gjson.String {
		return "", o.fail(key, "must be a string")
	}
	s := strings.TrimSpace(r.Str)
	if s == "" {
		return "", o.fail(key, "must not be empty")
	}
	return s, nil
}

// identifier accepts a non-empty string or a number, as callers generate
// game ids either way.
func (o object) identifier(key string) (string, error) {
	r, _, err := o.require(key)
	if err != nil {
		return "", err
	}
	switch r.Type {
	case gjson.String:
		if s := strings.TrimSpace(r.Str); s != "" {
			return s, nil
		}
		return "", o.fail(key, "must not be empty")
	case gjson.Number:
		return r.Raw, nil
	}
	return "", o.fail(key, "must be a string or number")
}

func (o object) player(keys ...string) (string, error) {
	s, err := o.text(keys...)
	if err != nil {
		return "", err
	}
	return PlayerName(s), nil
}

func (o object) array(key string) (gjson.Result, error) {
	r, _, err := o.require(key)
	if err != nil {
		return r, err
	}
	if !r.IsArray() {
		return r, o.fail(key, "must be an array")
	}
	return r, nil
}

// present only checks for the key; null is accepted.
func (o object) present(key string) (gjson.Result, error) {
	r, _, err := o.require(key)
	return r, err
}

// optionalPlayer requires the key but lets it be null, which yields "".
func (o object) optionalPlayer(key string) (string, error) {
	r, err := o.present(key)
	if err != nil {
		return "", err
	}
	switch r.Type {
	case gjson.String:
		return PlayerName(r.Str), nil
	case gjson.Null:
		return "", nil
	default:
		return "", o.fail(key, "must be a string or null")
	}
}

func (o object) timestamp(key string) (time.Time, error) {
	r, _, err := o.require(key)
	if err != nil {
		return time.Time{}, err
	}
	t, ok := toTime(r)
	if !ok {
		return time.Time{}, o.fail(key, "must be an RFC 3339 time or epoch milliseconds, got %s", r.Raw)
	}
	return t, nil
}

// PlayerName trims and NFC-normalizes a name so the same player written
// with different Unicode compositions maps to one history.
func PlayerName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func toInt(r gjson.Result) (int64, bool) {
	var f float64
	switch r.Type {
	case gjson.Number:
		if n, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
			return n, true
		}
		f = r.Num
	case gjson.String:
		s := strings.TrimSpace(r.Str)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsInf(f, 0) || math.IsNaN(f) || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

func toTime(r gjson.Result) (time.Time, bool) {
	switch r.Type {
	case gjson.String:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000Z07:00", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, strings.TrimSpace(r.Str)); err == nil {
				return t.UTC(), true
			}
		}
		if ms, ok := toInt(r); ok {
			return time.UnixMilli(ms).UTC(), true
		}
	case gjson.Number:
		if ms, ok := toInt(r); ok {
			return time.UnixMilli(ms).UTC(), true
		}
	}
	return time.Time{}, false
}
