package session

import (
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"time"
)

// Record keys with a meaning to the store. Everything else is caller data.
const (
	FieldSessionID = "sid"
	FieldOwner     = "user"
	FieldCookie    = "cookie"
	FieldExpires   = "expires"
)

// Record is a session payload as stored in the index and in record files.
// It must survive a JSON round trip; numbers come back as float64.
//
// Expiry lives in record["cookie"]["expires"] and may be an RFC 3339
// string, a time.Time, a number of Unix milliseconds, or nil/absent for a
// session that never expires.
type Record map[string]any

// Clone returns a shallow copy of r with the cookie map copied as well.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := maps.Clone(r)
	if cookie, ok := r[FieldCookie].(map[string]any); ok {
		out[FieldCookie] = maps.Clone(cookie)
	}
	return out
}

// SessionID returns the "sid" field, empty when absent or not a string.
func (r Record) SessionID() string {
	sid, _ := r[FieldSessionID].(string)
	return sid
}

// Owner returns the "user" field, empty when absent or not a string.
func (r Record) Owner() string {
	owner, _ := r[FieldOwner].(string)
	return owner
}

// Expires returns the expiry timestamp. ok is false when the session never expires.
func (r Record) Expires() (t time.Time, ok bool, err error) {
	raw, present := r[FieldCookie]
	if !present || raw == nil {
		return time.Time{}, false, nil
	}
	cookie, isMap := raw.(map[string]any)
	if !isMap {
		return time.Time{}, false, fmt.Errorf("%w: cookie is %T", ErrDecodeRecord, raw)
	}

	switch v := cookie[FieldExpires].(type) {
	case nil:
		return time.Time{}, false, nil
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("%w: cookie.expires: %v", ErrDecodeRecord, err)
		}
		return t, true, nil
	case time.Time:
		return v, true, nil
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return time.Time{}, false, fmt.Errorf("%w: cookie.expires is not finite", ErrDecodeRecord)
		}
		return time.UnixMilli(int64(v)), true, nil
	case int64:
		return time.UnixMilli(v), true, nil
	case int:
		return time.UnixMilli(int64(v)), true, nil
	case json.Number:
		ms, err := v.Int64()
		if err != nil {
			return time.Time{}, false, fmt.Errorf("%w: cookie.expires: %v", ErrDecodeRecord, err)
		}
		return time.UnixMilli(ms), true, nil
	default:
		return time.Time{}, false, fmt.Errorf("%w: cookie.expires is %T", ErrDecodeRecord, v)
	}
}

// ExpiredAt reports whether the record's expiry is at or before now.
func (r Record) ExpiredAt(now time.Time) (bool, error) {
	t, ok, err := r.Expires()
	if err != nil || !ok {
		return false, err
	}
	return !t.After(now), nil
}

func encodeRecord(r Record) ([]byte, error) {
	if _, _, err := r.Expires(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return data, nil
}

func decodeRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeRecord, err)
	}
	if r == nil {
		return nil, fmt.Errorf("%w: null record", ErrDecodeRecord)
	}
	return r, nil
}
