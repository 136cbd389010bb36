package secret

import (
	"encoding/binary"
	"errors"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// State is one immutable snapshot of the signing-secret lifecycle.
// NextRotation always equals LastRotation + RotationInterval.
type State struct {
	Current          []byte
	Previous         []byte
	LastRotation     time.Time
	RotationInterval time.Duration
	NextRotation     time.Time
	Version          uint64
}

// HasPrevious reports whether a grace-window secret is still accepted.
func (s *State) HasPrevious() bool {
	return s != nil && len(s.Previous) > 0
}

// Due reports whether a scheduled rotation should run at now.
func (s *State) Due(now time.Time) bool {
	return s != nil && !now.Before(s.NextRotation)
}

// TimeUntilRotation is clamped at zero once the rotation is due.
func (s *State) TimeUntilRotation(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	d := s.NextRotation.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

func (s *State) rotated(next []byte, now time.Time) *State {
	return &State{
		Current:          next,
		Previous:         cloneBytes(s.Current),
		LastRotation:     now,
		RotationInterval: s.RotationInterval,
		NextRotation:     now.Add(s.RotationInterval),
		Version:          s.Version + 1,
	}
}

func (s *State) retired() *State {
	return &State{
		Current:          cloneBytes(s.Current),
		LastRotation:     s.LastRotation,
		RotationInterval: s.RotationInterval,
		NextRotation:     s.NextRotation,
		Version:          s.Version + 1,
	}
}

func (s *State) withInterval(interval time.Duration) *State {
	return &State{
		Current:          cloneBytes(s.Current),
		Previous:         cloneBytes(s.Previous),
		LastRotation:     s.LastRotation,
		RotationInterval: interval,
		NextRotation:     s.LastRotation.Add(interval),
		Version:          s.Version,
	}
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

var (
	errRecordTooShort = errors.New("secret record too short")
	errRecordVersion  = errors.New("secret record version mismatch")
	errRecordInvalid  = errors.New("secret record invalid")
)

const versionPrefixSize = 8

type record struct {
	Current          []byte `cbor:"1,keyasint"`
	Previous         []byte `cbor:"2,keyasint,omitempty"`
	LastRotation     int64  `cbor:"3,keyasint"`
	RotationInterval int64  `cbor:"4,keyasint"`
	NextRotation     int64  `cbor:"5,keyasint"`
	Version          uint64 `cbor:"6,keyasint"`
}

// Encode renders the state as <8-byte big-endian version><CBOR record>.
func Encode(s *State) ([]byte, error) {
	if s == nil || len(s.Current) == 0 || s.Version == 0 {
		return nil, errRecordInvalid
	}
	payload, err := cbor.Marshal(record{
		Current:          s.Current,
		Previous:         s.Previous,
		LastRotation:     s.LastRotation.UnixNano(),
		RotationInterval: int64(s.RotationInterval),
		NextRotation:     s.NextRotation.UnixNano(),
		Version:          s.Version,
	})
	if err != nil {
		return nil, err
	}

	out := make([]byte, versionPrefixSize, versionPrefixSize+len(payload))
	binary.BigEndian.PutUint64(out, s.Version)
	return append(out, payload...), nil
}

// Decode parses a record produced by [Encode].
func Decode(data []byte) (*State, error) {
	if len(data) <= versionPrefixSize {
		return nil, errRecordTooShort
	}
	var rec record
	if err := cbor.Unmarshal(data[versionPrefixSize:], &rec); err != nil {
		return nil, err
	}
	if binary.BigEndian.Uint64(data[:versionPrefixSize]) != rec.Version {
		return nil, errRecordVersion
	}
	if len(rec.Current) == 0 || rec.RotationInterval <= 0 {
		return nil, errRecordInvalid
	}

	return &State{
		Current:          rec.Current,
		Previous:         rec.Previous,
		LastRotation:     time.Unix(0, rec.LastRotation).UTC(),
		RotationInterval: time.Duration(rec.RotationInterval),
		NextRotation:     time.Unix(0, rec.NextRotation).UTC(),
		Version:          rec.Version,
	}, nil
}
