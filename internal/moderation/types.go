package moderation

import (
	"errors"
	"time"

	"github.com/sandgraal/retro-games-sub003/internal/catalog"
)

type Type string

const (
	TypeNew    Type = "new"
	TypeUpdate Type = "update"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ListAll is the List filter that returns every suggestion.
const ListAll = "all"

var (
	ErrMissingDelta       = errors.New("delta is required")
	ErrMissingTitle       = errors.New("delta must include a title")
	ErrMissingTarget      = errors.New("target game id is required")
	ErrInvalidStatus      = errors.New("status must be approved or rejected")
	ErrInvalidFilter      = errors.New("status filter must be pending, approved, rejected or all")
	ErrSuggestionNotFound = errors.New("suggestion not found")
	ErrAlreadyDecided     = errors.New("suggestion already decided")
)

// Author identifies who submitted or decided a suggestion.
type Author struct {
	Role      string `json:"role"`
	SessionID string `json:"sessionId"`
	Email     string `json:"email,omitempty"`
}

type Suggestion struct {
	ID              string            `json:"id"`
	Type            Type              `json:"type"`
	TargetID        string            `json:"targetId,omitempty"`
	Delta           catalog.RawRecord `json:"delta"`
	Status          Status            `json:"status"`
	Author          Author            `json:"author"`
	SubmittedAt     time.Time         `json:"submittedAt"`
	Notes           string            `json:"notes"`
	ModerationNotes string            `json:"moderationNotes,omitempty"`
	Moderator       *Author           `json:"moderator,omitempty"`
	DecidedAt       *time.Time        `json:"decidedAt,omitempty"`
	AppliedAt       *time.Time        `json:"appliedAt,omitempty"`
}

// AuditEntry is one append-only record of a moderation decision.
type AuditEntry struct {
	SuggestionID string    `json:"suggestionId"`
	Decision     Status    `json:"decision"`
	Notes        string    `json:"notes"`
	Moderator    Author    `json:"moderator"`
	Timestamp    time.Time `json:"timestamp"`
}

func (s Status) decision() bool {
	return s == StatusApproved || s == StatusRejected
}
