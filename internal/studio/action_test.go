package studio

import (
	"testing"

	"headshot/internal/domain"
)

func TestDecide(t *testing.T) {
	img := &domain.Image{Data: []byte{1}, MIMEType: "image/png"}

	cases := []struct {
		name     string
		res      domain.GenerationResult
		unlocked bool
		mode     domain.UnlockMode
		want     domain.Action
	}{
		{"zero value", domain.GenerationResult{}, false, domain.UnlockPaywall, domain.ActionGenerate},
		{"idle", domain.GenerationResult{Status: domain.StatusIdle}, true, domain.UnlockUpgrade, domain.ActionGenerate},
		{"error", domain.GenerationResult{Status: domain.StatusError}, false, domain.UnlockPaywall, domain.ActionGenerate},
		{"loading", domain.GenerationResult{Status: domain.StatusLoading, Image: img}, true, domain.UnlockPaywall, domain.ActionWait},
		{"success without image", domain.GenerationResult{Status: domain.StatusSuccess, Tier: domain.TierHigh}, true, domain.UnlockPaywall, domain.ActionGenerate},
		{"preview upgrade mode", domain.GenerationResult{Status: domain.StatusSuccess, Image: img, Tier: domain.TierPreview}, false, domain.UnlockUpgrade, domain.ActionUpgrade},
		{"preview paywall mode", domain.GenerationResult{Status: domain.StatusSuccess, Image: img, Tier: domain.TierPreview}, false, domain.UnlockPaywall, domain.ActionOpenPaywall},
		{"preview unlocked", domain.GenerationResult{Status: domain.StatusSuccess, Image: img, Tier: domain.TierPreview}, true, domain.UnlockPaywall, domain.ActionDownload},
		{"high tier", domain.GenerationResult{Status: domain.StatusSuccess, Image: img, Tier: domain.TierHigh}, false, domain.UnlockUpgrade, domain.ActionDownload},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Decide(tc.res, tc.unlocked, tc.mode); got != tc.want {
				t.Fatalf("Decide() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDownloadName(t *testing.T) {
	cases := []struct {
		style string
		tier  domain.QualityTier
		mime  string
		want  string
	}{
		{"corporate", domain.TierPreview, "image/png", "pro-headshot-corporate.png"},
		{"tech", domain.TierHigh, "image/png", "pro-headshot-tech-2k.png"},
		{"cafe", domain.TierPreview, "image/jpeg", "pro-headshot-cafe.jpg"},
		{"studio", domain.TierHigh, "", "pro-headshot-studio-2k.png"},
	}
	for _, tc := range cases {
		if got := DownloadName(tc.style, tc.tier, tc.mime); got != tc.want {
			t.Fatalf("DownloadName(%q,%q,%q) = %q, want %q", tc.style, tc.tier, tc.mime, got, tc.want)
		}
	}
}

func TestBuildCustomInstruction(t *testing.T) {
	got := BuildCustomInstruction("  wearing a navy suit  ")
	want := customConstraint + " wearing a navy suit"
	if got != want {
		t.Fatalf("BuildCustomInstruction() = %q, want %q", got, want)
	}
	// "e" followed by a combining acute accent composes to a single rune.
	if NormalizeInstruction("cafe\u0301") != "caf\u00e9" {
		t.Fatal("NormalizeInstruction did not compose to NFC")
	}
}
