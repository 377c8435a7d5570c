package room

import (
	"context"
	"errors"
)

// CheckResult is the three-way outcome of a code submission.
type CheckResult int

const (
	// CheckRejected means the code is unknown or expired.
	CheckRejected CheckResult = iota
	// CheckAccepted means the check-in stands and attendance may be
	// recorded immediately.
	CheckAccepted
	// CheckAcceptedPendingReview means the code was correct but the user
	// was sampled for manual review and stays in the pending set until a
	// reviewer clears them.
	CheckAcceptedPendingReview
)

func (c CheckResult) String() string {
	switch c {
	case CheckAccepted:
		return "accepted"
	case CheckAcceptedPendingReview:
		return "pending_review"
	default:
		return "rejected"
	}
}

// ValidateCode checks a submitted code for userID. A user already in the
// pending set gets CheckAcceptedPendingReview without a fresh sample, so a
// double-submit or client retry cannot change the outcome. Otherwise one
// uniform sample against the room's probability decides whether the user is
// flagged. The pending set is global across rooms; userID must be unique
// across the deployment.
func (r *Registry) ValidateCode(ctx context.Context, code, userID string) (CheckResult, error) {
	if userID == "" {
		return CheckRejected, errors.New("user id required")
	}
	session, err := r.GetRoom(ctx, code)
	if err != nil {
		return CheckRejected, err
	}
	if session == nil {
		return CheckRejected, nil
	}

	pending, err := r.cache.SIsMember(ctx, pendingSetKey, userID)
	if err != nil {
		return CheckRejected, err
	}
	if pending {
		return CheckAcceptedPendingReview, nil
	}

	if randFloat() <= session.VerificationProbability {
		// SAdd is idempotent, so a racing duplicate submission is harmless.
		if err := r.cache.SAdd(ctx, pendingSetKey, userID); err != nil {
			return CheckRejected, err
		}
		return CheckAcceptedPendingReview, nil
	}
	return CheckAccepted, nil
}

// VerifyUser clears userID from the pending-verification set. It reports
// whether the user was actually pending, so a reviewer clearing an
// already-cleared or never-flagged id can be told apart from a real
// clearance.
func (r *Registry) VerifyUser(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, errors.New("user id required")
	}
	return r.cache.SRem(ctx, pendingSetKey, userID)
}
