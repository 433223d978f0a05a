package studio

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"headshot/internal/domain"
)

const customConstraint = "Create a professional headshot where the subject is the absolute focus. " +
	"Keep the framing tight on the head and shoulders. The background must be blurred and secondary to the person."

// NormalizeInstruction trims and NFC-normalizes user supplied text.
func NormalizeInstruction(text string) string {
	return strings.TrimSpace(norm.NFC.String(text))
}

// BuildCustomInstruction wraps free text in the headshot constraint.
func BuildCustomInstruction(text string) string {
	text = NormalizeInstruction(text)
	if text == "" {
		return customConstraint
	}
	return customConstraint + " " + text
}

// CustomSlot is the free-text generation state, independent of the styles.
type CustomSlot struct {
	Instruction string
	Status      domain.GenerationStatus
	Image       *domain.Image
}

// HasImage reports whether a successful custom result is retained.
func (c CustomSlot) HasImage() bool {
	return c.Image != nil && !c.Image.Empty()
}
