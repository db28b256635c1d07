// ProxyPanel - Proxy Service Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/proxypanel

package models

import (
	"bytes"
	"math"
	"time"

	"github.com/goccy/go-json"
)

// BytesPerGB is the factor between the GB value typed into forms and the byte
// value the panel API stores.
const BytesPerGB int64 = 1 << 30

// MaxDataLimitGB is the largest whole GB value whose byte count fits in an
// int64.
const MaxDataLimitGB = math.MaxInt64 / BytesPerGB

// GBToBytes converts a form value in GB to bytes. Fractions are truncated to
// whole bytes. Values beyond the int64 range saturate at math.MaxInt64 and
// NaN or negative values give 0.
func GBToBytes(gb float64) int64 {
	b := gb * float64(BytesPerGB)
	switch {
	case math.IsNaN(b) || b <= 0:
		return 0
	case b >= math.MaxInt64:
		return math.MaxInt64
	}
	return int64(b)
}

// BytesToGB converts bytes back to GB for prefilling forms.
func BytesToGB(b int64) float64 {
	return float64(b) / float64(BytesPerGB)
}

var jsonNull = []byte("null")

// OptionalBytes is a byte count that may be unset. Unset means unlimited.
//
// The panel uses both null and 0 for "unlimited". Both decode to unset and
// unset always encodes as 0.
type OptionalBytes struct {
	Bytes int64
	Valid bool
}

// Bytes returns a set value. A non-positive count is treated as unset.
func Bytes(n int64) OptionalBytes {
	return OptionalBytes{Bytes: n, Valid: n > 0}
}

// Unlimited reports whether no limit is set.
func (o OptionalBytes) Unlimited() bool {
	return !o.Valid
}

// MarshalJSON implements json.Marshaler.
func (o OptionalBytes) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("0"), nil
	}
	return json.Marshal(o.Bytes)
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *OptionalBytes) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		*o = OptionalBytes{}
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*o = Bytes(n)
	return nil
}

// OptionalTime is an epoch-seconds timestamp that may be unset. Unset means
// the user never expires.
type OptionalTime struct {
	Time  time.Time
	Valid bool
}

// At returns a set time. The zero time is treated as unset.
func At(t time.Time) OptionalTime {
	return OptionalTime{Time: t, Valid: !t.IsZero()}
}

// Unix returns epoch seconds, or 0 when unset.
func (o OptionalTime) Unix() int64 {
	if !o.Valid {
		return 0
	}
	return o.Time.Unix()
}

// MarshalJSON implements json.Marshaler.
func (o OptionalTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Unix())
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *OptionalTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		*o = OptionalTime{}
		return nil
	}
	var secs int64
	if err := json.Unmarshal(data, &secs); err != nil {
		return err
	}
	if secs <= 0 {
		*o = OptionalTime{}
		return nil
	}
	*o = OptionalTime{Time: time.Unix(secs, 0).UTC(), Valid: true}
	return nil
}
