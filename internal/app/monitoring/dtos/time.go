package dtos

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Timestamp decodes either an RFC 3339 string or numeric Unix epoch seconds
// (fractional allowed). A JSON null or empty string leaves it unset.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

// NewTimestamp wraps t; a nil t yields an unset Timestamp.
func NewTimestamp(t *time.Time) Timestamp {
	if t == nil {
		return Timestamp{}
	}
	return Timestamp{Time: *t, Valid: true}
}

// Ptr returns the time as a pointer, nil when unset.
func (ts Timestamp) Ptr() *time.Time {
	if !ts.Valid {
		return nil
	}
	t := ts.Time
	return &t
}

// UnmarshalJSON implements json.Unmarshaler.
func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*ts = Timestamp{}
		return nil
	}

	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*ts = Timestamp{}
			return nil
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			*ts = Timestamp{Time: t.UTC(), Valid: true}
			return nil
		}
		// Some backends quote epoch values.
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q", s)
		}
		*ts = fromEpoch(f)
		return nil
	}

	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", b, err)
	}
	*ts = fromEpoch(f)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if !ts.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(ts.Time.UTC().Format(time.RFC3339Nano))
}

func fromEpoch(f float64) Timestamp {
	sec, frac := math.Modf(f)
	return Timestamp{Time: time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC(), Valid: true}
}

// Seconds is a duration encoded as fractional seconds.
type Seconds float64

// Duration converts s to a time.Duration.
func (s Seconds) Duration() time.Duration {
	return time.Duration(float64(s) * float64(time.Second))
}

// SecondsFrom converts d to Seconds.
func SecondsFrom(d time.Duration) Seconds { return Seconds(d.Seconds()) }
