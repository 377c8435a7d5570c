package attendance

import (
	"context"
	"encoding/json"
	"errors"

	"rollcall/internal/queue"
	"rollcall/internal/room"
)

// Checker is the slice of the room registry the service drives.
type Checker interface {
	ValidateCode(ctx context.Context, code, userID string) (room.CheckResult, error)
	GetRoom(ctx context.Context, code string) (*room.AttendanceSession, error)
	VerifyUser(ctx context.Context, userID string) (bool, error)
}

// CheckInMessage is the queue payload for one accepted check-in.
type CheckInMessage struct {
	UserID    string `json:"user_id"`
	MeetingID string `json:"meeting_id"`
}

// Service glues code validation to the durable attendance sink. Accepted
// check-ins are queued here and written by the worker; flagged check-ins
// stay in the pending set until a reviewer clears them through Verify.
type Service struct {
	rooms Checker
	queue queue.Queue
}

// NewService creates a service over a registry and a queue.
func NewService(rooms Checker, q queue.Queue) *Service {
	return &Service{rooms: rooms, queue: q}
}

// Attend validates a submitted code for userID and, when the check-in is
// accepted outright, queues it for recording.
func (s *Service) Attend(ctx context.Context, code, userID string) (room.CheckResult, error) {
	result, err := s.rooms.ValidateCode(ctx, code, userID)
	if err != nil || result != room.CheckAccepted {
		return result, err
	}

	session, err := s.rooms.GetRoom(ctx, code)
	if err != nil {
		return result, err
	}
	if session == nil {
		// Code expired between validation and lookup; the user retries.
		return room.CheckRejected, nil
	}

	if err := s.publish(ctx, userID, session.MeetingID); err != nil {
		return result, err
	}
	return result, nil
}

// Verify clears userID from the pending set and queues the attendance that
// the clearance vouches for. Reports false when the user was never flagged
// or was already cleared.
func (s *Service) Verify(ctx context.Context, userID, meetingID string) (bool, error) {
	if meetingID == "" {
		return false, errors.New("meeting id required")
	}
	cleared, err := s.rooms.VerifyUser(ctx, userID)
	if err != nil || !cleared {
		return cleared, err
	}
	if err := s.publish(ctx, userID, meetingID); err != nil {
		return true, err
	}
	return true, nil
}

func (s *Service) publish(ctx context.Context, userID, meetingID string) error {
	body, err := json.Marshal(CheckInMessage{UserID: userID, MeetingID: meetingID})
	if err != nil {
		return err
	}
	return s.queue.Publish(ctx, queue.Message{Type: "attendance", Body: body})
}
