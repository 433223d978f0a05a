package studio

import (
	"context"

	"headshot/internal/domain"
)

// EditRequest is the payload sent to the remote image edit service.
type EditRequest struct {
	StyleID     string
	Source      domain.Image
	Instruction string
	Tier        domain.QualityTier
}

// Editor edits a source image following a text instruction.
type Editor interface {
	EditImage(ctx context.Context, req EditRequest) (domain.Image, error)
}

// Verdict is the answer of the content validator.
type Verdict struct {
	Valid   bool
	Message string
}

// Validator checks that an uploaded image depicts a person.
type Validator interface {
	ValidatePerson(ctx context.Context, img domain.Image) (Verdict, error)
}

// UnlockStore persists the set of unlocked style ids per owner.
type UnlockStore interface {
	Load(ctx context.Context, owner string) ([]string, error)
	Save(ctx context.Context, owner string, ids []string) error
}

// KeySelector makes sure a credential for the high tier is available.
// Returning an error aborts the upgrade without touching state.
type KeySelector interface {
	EnsureKey(ctx context.Context) error
}

// Event types published to the presentation layer.
const (
	EventState     = "state"
	EventCelebrate = "celebrate"
)

// Event is a state change notification for one session.
type Event struct {
	Type     string
	StyleID  string
	Snapshot *Snapshot
}

// Notifier fans session events out to subscribers.
type Notifier interface {
	Publish(sessionID string, ev Event)
}

// StorageKey names the persisted unlock list.
const StorageKey = "unlocked_presets"
