package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrStyleNotFound         = errors.New("style not found")
	ErrNoSource              = errors.New("no source image")
	ErrCustomStyle           = errors.New("custom style requires free-text instruction")
	ErrEmptyInstruction      = errors.New("instruction is empty")
	ErrFileTooLarge          = errors.New("file too large")
	ErrUnsupportedMedia      = errors.New("unsupported media type")
	ErrValidationRejected    = errors.New("validation rejected")
	ErrValidationUnavailable = errors.New("validation unavailable")
	ErrGenerationFailed      = errors.New("generation failed")
	ErrNoImageInResponse     = errors.New("no image in response")
	ErrCheckoutFailed        = errors.New("checkout failed")
	ErrPaymentNotVerified    = errors.New("payment not verified")
	ErrKeySelectionDeclined  = errors.New("key selection declined")
	ErrBatchInProgress       = errors.New("batch generation in progress")
	ErrNotDownloadable       = errors.New("not downloadable")
	ErrPaywallDisabled       = errors.New("paywall disabled")
	ErrTierUnavailable       = errors.New("quality tier unavailable")
	ErrUnlockNotPersisted    = errors.New("unlock not persisted")
)

// RejectionError carries the human readable reason a source image was refused.
type RejectionError struct {
	Message string
}

func (e *RejectionError) Error() string {
	return "validation rejected: " + e.Message
}

func (e *RejectionError) Unwrap() error {
	return ErrValidationRejected
}
