package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	codeKeyPrefix = "rollcall:code:"
	roomKeyPrefix = "rollcall:room:"
	pendingSetKey = "rollcall:pending_verification"

	maxMintAttempts = 5
)

// DefaultSessionTTL is how long an attendance room stays open. Expiry is the
// store's TTL sweep; the registry never polls for it.
const DefaultSessionTTL = 30 * time.Minute

// DefaultVerificationCap is the ceiling on a room's manual-review rate. The
// effective value is policy, set through config, not this constant.
const DefaultVerificationCap = 0.2

// Registry owns the two-way mapping between logical rooms and live
// attendance codes, and the pending-verification set. It holds no state of
// its own; everything lives in the shared cache under TTL.
type Registry struct {
	cache          Cache
	sessionTTL     time.Duration
	codeLength     int
	probabilityCap float64
}

// NewRegistry creates a registry over cache. Non-positive ttl and length fall
// back to the defaults, as does a cap outside [0, 1].
func NewRegistry(cache Cache, sessionTTL time.Duration, codeLength int, probabilityCap float64) *Registry {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	if codeLength <= 0 {
		codeLength = DefaultCodeLength
	}
	if probabilityCap < 0 || probabilityCap > 1 {
		probabilityCap = DefaultVerificationCap
	}
	return &Registry{
		cache:          cache,
		sessionTTL:     sessionTTL,
		codeLength:     codeLength,
		probabilityCap: probabilityCap,
	}
}

func codeKey(code string) string { return codeKeyPrefix + code }

func roomKey(meetingID, subRoomID string) string {
	return roomKeyPrefix + meetingID + ":" + subRoomID
}

// RegisterRoom opens an attendance room for (meetingID, subRoomID) and
// returns its code. If the room already has a live code that code is
// returned unchanged, so a reviewer refreshing the open page never
// invalidates a code already on screen. Otherwise a fresh code is minted,
// the session is written under it, and the room key is pointed at it, both
// with the same TTL. The room's manual-review probability is sampled here,
// capped by the configured ceiling.
func (r *Registry) RegisterRoom(ctx context.Context, location, meetingID, subRoomID string) (string, error) {
	if meetingID == "" {
		return "", errors.New("meeting id required")
	}
	if subRoomID == "" {
		subRoomID = DefaultSubRoomID
	}

	if code, err := r.GetCodeForRoom(ctx, meetingID, subRoomID); err != nil {
		return "", err
	} else if code != "" {
		session, err := r.GetRoom(ctx, code)
		if err != nil {
			return "", err
		}
		if session != nil {
			return code, nil
		}
		// Half-expired pair: the code entry went first. Mint a fresh code;
		// the new room-key write below repairs the dangling entry.
	}

	session := AttendanceSession{
		Location:                location,
		MeetingID:               meetingID,
		SubRoomID:               subRoomID,
		VerificationProbability: min(randFloat(), r.probabilityCap),
		OpenedAt:                time.Now().Unix(),
	}
	payload, err := json.Marshal(session)
	if err != nil {
		return "", err
	}

	code, err := r.mintCode(ctx)
	if err != nil {
		return "", err
	}

	// Two independent writes; see CloseRoom for the matching deletes. A
	// reader seeing one half without the other treats the room as absent.
	if err := r.cache.Set(ctx, codeKey(code), string(payload), r.sessionTTL); err != nil {
		return "", err
	}
	if err := r.cache.Set(ctx, roomKey(meetingID, subRoomID), code, r.sessionTTL); err != nil {
		return "", err
	}
	return code, nil
}

// mintCode generates a code not currently bound to a live session.
func (r *Registry) mintCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxMintAttempts; attempt++ {
		code := GenerateCode(r.codeLength)
		_, exists, err := r.cache.Get(ctx, codeKey(code))
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free attendance code after %d attempts", maxMintAttempts)
}

// RoomExists reports whether (meetingID, subRoomID) currently names a live
// code.
func (r *Registry) RoomExists(ctx context.Context, meetingID, subRoomID string) (bool, error) {
	code, err := r.GetCodeForRoom(ctx, meetingID, subRoomID)
	return code != "", err
}

// GetCodeForRoom resolves the room key to its active code, or "" when the
// room is unknown or expired.
func (r *Registry) GetCodeForRoom(ctx context.Context, meetingID, subRoomID string) (string, error) {
	if meetingID == "" {
		return "", errors.New("meeting id required")
	}
	if subRoomID == "" {
		subRoomID = DefaultSubRoomID
	}
	code, ok, err := r.cache.Get(ctx, roomKey(meetingID, subRoomID))
	if err != nil || !ok {
		return "", err
	}
	return code, nil
}

// GetRoom resolves a code to its session, or nil when the code is unknown or
// expired. Expiry and never-existed are indistinguishable on purpose.
func (r *Registry) GetRoom(ctx context.Context, code string) (*AttendanceSession, error) {
	if code == "" {
		return nil, nil
	}
	raw, ok, err := r.cache.Get(ctx, codeKey(code))
	if err != nil || !ok {
		return nil, err
	}
	var session AttendanceSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, fmt.Errorf("decode session for code %s: %w", code, err)
	}
	return &session, nil
}

// CloseRoom deletes the code entry and its room key. Closing a code that is
// unknown, expired, or already closed is a no-op.
func (r *Registry) CloseRoom(ctx context.Context, code string) error {
	session, err := r.GetRoom(ctx, code)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}
	return r.cache.Delete(ctx, codeKey(code), roomKey(session.MeetingID, session.SubRoomID))
}
