package room

import (
	"context"
	"testing"
)

func TestRegisterRoomStableAcrossReopen(t *testing.T) {
	cache := newFakeCache()
	reg := NewRegistry(cache, 0, 0, DefaultVerificationCap)
	ctx := context.Background()

	code, err := reg.RegisterRoom(ctx, "DCC 308", "M1", "")
	if err != nil {
		t.Fatalf("RegisterRoom: %v", err)
	}
	if len(code) != DefaultCodeLength {
		t.Fatalf("RegisterRoom returned code %q, want %d characters", code, DefaultCodeLength)
	}

	// Empty sub-room and the explicit sentinel name the same room.
	again, err := reg.RegisterRoom(ctx, "DCC 308", "M1", DefaultSubRoomID)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if again != code {
		t.Errorf("reopen minted a new code: got %q, want %q", again, code)
	}

	got, err := reg.GetCodeForRoom(ctx, "M1", DefaultSubRoomID)
	if err != nil {
		t.Fatalf("GetCodeForRoom: %v", err)
	}
	if got != code {
		t.Errorf("GetCodeForRoom = %q, want %q", got, code)
	}

	exists, err := reg.RoomExists(ctx, "M1", DefaultSubRoomID)
	if err != nil || !exists {
		t.Errorf("RoomExists = (%v, %v), want (true, nil)", exists, err)
	}
}

func TestRegisterRoomSessionContents(t *testing.T) {
	origFloat := randFloat
	defer func() { randFloat = origFloat }()
	randFloat = func() float64 { return 0.9 } // above the cap

	cache := newFakeCache()
	reg := NewRegistry(cache, 0, 0, 0.3)
	ctx := context.Background()

	code, err := reg.RegisterRoom(ctx, "Sage 3303", "M2", "sg-7")
	if err != nil {
		t.Fatalf("RegisterRoom: %v", err)
	}

	session, err := reg.GetRoom(ctx, code)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if session == nil {
		t.Fatal("GetRoom returned nil for a just-registered code")
	}
	if session.Location != "Sage 3303" || session.MeetingID != "M2" || session.SubRoomID != "sg-7" {
		t.Errorf("session = %+v, want location/meeting/sub-room to round-trip", session)
	}
	if session.VerificationProbability != 0.3 {
		t.Errorf("VerificationProbability = %g, want capped at 0.3", session.VerificationProbability)
	}
	if session.OpenedAt == 0 {
		t.Error("OpenedAt not set")
	}
}

func TestRegisterRoomDistinctSubRooms(t *testing.T) {
	cache := newFakeCache()
	reg := NewRegistry(cache, 0, 0, DefaultVerificationCap)
	ctx := context.Background()

	a, err := reg.RegisterRoom(ctx, "", "M1", "sg-1")
	if err != nil {
		t.Fatalf("RegisterRoom sg-1: %v", err)
	}
	b, err := reg.RegisterRoom(ctx, "", "M1", "sg-2")
	if err != nil {
		t.Fatalf("RegisterRoom sg-2: %v", err)
	}
	if a == b {
		t.Errorf("sub-rooms share code %q, want distinct sessions", a)
	}
}

func TestRegisterRoomRejectsEmptyMeetingID(t *testing.T) {
	reg := NewRegistry(newFakeCache(), 0, 0, DefaultVerificationCap)
	if _, err := reg.RegisterRoom(context.Background(), "", "", ""); err == nil {
		t.Fatal("RegisterRoom with empty meeting id did not error")
	}
}

func TestRegisterRoomRetriesOnCodeCollision(t *testing.T) {
	origIntN := randIntN
	defer func() { randIntN = origIntN }()
	calls := 0
	randIntN = func(int) int {
		calls++
		if calls <= DefaultCodeLength {
			return 0 // first mint lands on AAAAAA
		}
		return 1
	}

	cache := newFakeCache()
	cache.values[codeKey("AAAAAA")] = `{"meeting_id":"M0","sub_room_id":"default"}`
	reg := NewRegistry(cache, 0, 0, DefaultVerificationCap)

	code, err := reg.RegisterRoom(context.Background(), "", "M1", "")
	if err != nil {
		t.Fatalf("RegisterRoom: %v", err)
	}
	if code != "BBBBBB" {
		t.Errorf("RegisterRoom = %q, want retry to mint BBBBBB", code)
	}
}

func TestRegisterRoomGivesUpWhenNoCodeIsFree(t *testing.T) {
	origIntN := randIntN
	defer func() { randIntN = origIntN }()
	randIntN = func(int) int { return 0 }

	cache := newFakeCache()
	cache.values[codeKey("AAAAAA")] = `{"meeting_id":"M0","sub_room_id":"default"}`
	reg := NewRegistry(cache, 0, 0, DefaultVerificationCap)

	if _, err := reg.RegisterRoom(context.Background(), "", "M1", ""); err == nil {
		t.Fatal("RegisterRoom did not error after exhausting mint attempts")
	}
}

func TestRegisterRoomHealsHalfExpiredPair(t *testing.T) {
	cache := newFakeCache()
	reg := NewRegistry(cache, 0, 0, DefaultVerificationCap)
	ctx := context.Background()

	stale, err := reg.RegisterRoom(ctx, "", "M1", "")
	if err != nil {
		t.Fatalf("RegisterRoom: %v", err)
	}

	// The code entry expires first; the room key still points at it.
	cache.expire(codeKey(stale))

	fresh, err := reg.RegisterRoom(ctx, "", "M1", "")
	if err != nil {
		t.Fatalf("reopen after half-expiry: %v", err)
	}
	if fresh == stale {
		t.Fatalf("reopen returned the dead code %q", stale)
	}
	if session, err := reg.GetRoom(ctx, fresh); err != nil || session == nil {
		t.Fatalf("GetRoom(%q) = (%v, %v), want a live session", fresh, session, err)
	}
}

func TestCloseRoomIsIdempotent(t *testing.T) {
	cache := newFakeCache()
	reg := NewRegistry(cache, 0, 0, DefaultVerificationCap)
	ctx := context.Background()

	code, err := reg.RegisterRoom(ctx, "", "M1", "")
	if err != nil {
		t.Fatalf("RegisterRoom: %v", err)
	}

	if err := reg.CloseRoom(ctx, code); err != nil {
		t.Fatalf("CloseRoom: %v", err)
	}
	if session, err := reg.GetRoom(ctx, code); err != nil || session != nil {
		t.Errorf("GetRoom after close = (%v, %v), want (nil, nil)", session, err)
	}
	if exists, err := reg.RoomExists(ctx, "M1", DefaultSubRoomID); err != nil || exists {
		t.Errorf("RoomExists after close = (%v, %v), want (false, nil)", exists, err)
	}

	// Second close of the same, now-unknown code is a no-op.
	if err := reg.CloseRoom(ctx, code); err != nil {
		t.Errorf("second CloseRoom errored: %v", err)
	}
}

func TestGetRoomAbsence(t *testing.T) {
	reg := NewRegistry(newFakeCache(), 0, 0, DefaultVerificationCap)
	ctx := context.Background()

	if session, err := reg.GetRoom(ctx, "ZZZZZZ"); err != nil || session != nil {
		t.Errorf("GetRoom on unknown code = (%v, %v), want (nil, nil)", session, err)
	}
	if session, err := reg.GetRoom(ctx, ""); err != nil || session != nil {
		t.Errorf("GetRoom on empty code = (%v, %v), want (nil, nil)", session, err)
	}
}

func TestExpiredRoomBehavesLikeAbsent(t *testing.T) {
	cache := newFakeCache()
	reg := NewRegistry(cache, 0, 0, DefaultVerificationCap)
	ctx := context.Background()

	code, err := reg.RegisterRoom(ctx, "", "M1", "")
	if err != nil {
		t.Fatalf("RegisterRoom: %v", err)
	}

	cache.expire(codeKey(code))
	cache.expire(roomKey("M1", DefaultSubRoomID))

	if session, _ := reg.GetRoom(ctx, code); session != nil {
		t.Error("GetRoom returned a session for an expired code")
	}
	if exists, _ := reg.RoomExists(ctx, "M1", DefaultSubRoomID); exists {
		t.Error("RoomExists true after expiry")
	}
	if err := reg.CloseRoom(ctx, code); err != nil {
		t.Errorf("CloseRoom on expired code errored: %v", err)
	}
}
