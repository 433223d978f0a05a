package domain

import "strings"

// GenerationStatus enumerates the lifecycle of a single style generation.
type GenerationStatus string

const (
	StatusIdle    GenerationStatus = "IDLE"
	StatusLoading GenerationStatus = "LOADING"
	StatusSuccess GenerationStatus = "SUCCESS"
	StatusError   GenerationStatus = "ERROR"
)

// QualityTier distinguishes a fast preview from the high fidelity render.
type QualityTier string

const (
	TierPreview QualityTier = "preview"
	TierHigh    QualityTier = "high"
)

// ParseTier maps free-form input to a tier, defaulting to preview.
func ParseTier(v string) QualityTier {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "high", "hd", "2k", "high_res":
		return TierHigh
	default:
		return TierPreview
	}
}

// Image is an encoded image payload.
type Image struct {
	Data     []byte
	MIMEType string
}

// Empty reports whether the payload carries no bytes.
func (i Image) Empty() bool {
	return len(i.Data) == 0
}

// GenerationResult is the per-style state. The zero value is Idle.
type GenerationResult struct {
	Status GenerationStatus
	Image  *Image
	Tier   QualityTier
}

// HasImage reports whether a successful image has been retained.
func (r GenerationResult) HasImage() bool {
	return r.Image != nil && !r.Image.Empty()
}

// Normalized fills the Idle default for zero results.
func (r GenerationResult) Normalized() GenerationResult {
	if r.Status == "" {
		r.Status = StatusIdle
	}
	return r
}

// UnlockMode selects how a finished preview is promoted.
type UnlockMode string

const (
	// UnlockUpgrade regenerates the preview at the high tier after a key is selected.
	UnlockUpgrade UnlockMode = "upgrade"
	// UnlockPaywall asks the user to purchase the style before downloading.
	UnlockPaywall UnlockMode = "paywall"
)

// ParseUnlockMode maps configuration input to a mode, defaulting to paywall.
func ParseUnlockMode(v string) UnlockMode {
	if strings.EqualFold(strings.TrimSpace(v), string(UnlockUpgrade)) {
		return UnlockUpgrade
	}
	return UnlockPaywall
}

// Action is the next user-facing step for a style card.
type Action string

const (
	ActionGenerate    Action = "generate"
	ActionWait        Action = "wait"
	ActionUpgrade     Action = "upgrade"
	ActionOpenPaywall Action = "open_paywall"
	ActionDownload    Action = "download"
)
