package studio

import (
	"fmt"
	"strings"

	"headshot/internal/domain"
)

// Decide maps the state of a style to the next action. It is total over
// every (status, tier, unlocked, mode) combination.
func Decide(res domain.GenerationResult, unlocked bool, mode domain.UnlockMode) domain.Action {
	res = res.Normalized()
	switch res.Status {
	case domain.StatusIdle, domain.StatusError:
		return domain.ActionGenerate
	case domain.StatusLoading:
		return domain.ActionWait
	}

	// Success without a retained image cannot be downloaded; regenerate it.
	if !res.HasImage() {
		return domain.ActionGenerate
	}
	if res.Tier == domain.TierHigh || unlocked {
		return domain.ActionDownload
	}
	if mode == domain.UnlockUpgrade {
		return domain.ActionUpgrade
	}
	return domain.ActionOpenPaywall
}

// Download is a file handed to the presentation layer.
type Download struct {
	FileName string
	MIMEType string
	Data     []byte
}

// CustomFileName is the download name of the free-text result.
const CustomFileName = "custom-headshot.png"

// DownloadName derives the deterministic file name of a style download.
func DownloadName(styleID string, tier domain.QualityTier, mimeType string) string {
	suffix := ""
	if tier == domain.TierHigh {
		suffix = "-2k"
	}
	return fmt.Sprintf("pro-headshot-%s%s%s", styleID, suffix, extensionFor(mimeType))
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
