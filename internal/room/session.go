package room

import (
	"context"
	"time"
)

// DefaultSubRoomID names the implicit sub-room of a meeting that has no
// breakout groups. Meetings with breakouts open one room per sub-room.
const DefaultSubRoomID = "default"

// AttendanceSession is the record stored under a live attendance code.
// It is written once when the room opens and never mutated.
type AttendanceSession struct {
	Location                string  `json:"location"`
	MeetingID               string  `json:"meeting_id"`
	SubRoomID               string  `json:"sub_room_id"`
	VerificationProbability float64 `json:"verification_probability"`
	OpenedAt                int64   `json:"opened_at"`
}

// Cache is the slice of the shared keyed store the registry depends on.
// Each call is individually atomic; nothing here spans keys atomically, so
// the registry has to tolerate observing one half of a key pair without the
// other. Absence is reported as a false/zero result, never an error.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	SAdd(ctx context.Context, set, member string) error
	SRem(ctx context.Context, set, member string) (removed bool, err error)
	SIsMember(ctx context.Context, set, member string) (bool, error)
}
