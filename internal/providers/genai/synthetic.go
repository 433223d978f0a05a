package genai

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"github.com/disintegration/imaging"

	"headshot/internal/domain"
	"headshot/internal/studio"
)

const (
	syntheticPreviewWidth = 384
	syntheticHighWidth    = 768
)

// syntheticEdit crops the source to a 3:4 portrait and tints it with a
// colour derived from the request, standing in for a remote edit.
func (c *Client) syntheticEdit(req studio.EditRequest) (domain.Image, error) {
	width := syntheticPreviewWidth
	if req.Tier == domain.TierHigh {
		width = syntheticHighWidth
	}
	height := width * 4 / 3
	seed := deterministicSeed(req.StyleID, req.Instruction, req.Tier, len(req.Source.Data))

	var canvas *image.NRGBA
	src, err := imaging.Decode(bytes.NewReader(req.Source.Data), imaging.AutoOrientation(true))
	if err != nil {
		canvas = imaging.New(width, height, colorFromSeed(seed, 0))
	} else {
		canvas = imaging.Fill(src, width, height, imaging.Center, imaging.Lanczos)
	}

	tint := colorFromSeed(seed, 1)
	tint.A = 64
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{tint}, image.Point{}, draw.Over)

	band := maxInt(8, height/24)
	accent := colorFromSeed(seed, 2)
	draw.Draw(canvas, image.Rect(0, height-band, width, height), &image.Uniform{accent}, image.Point{}, draw.Src)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.PNG); err != nil {
		return domain.Image{}, fmt.Errorf("genai: encode synthetic image: %w", err)
	}

	c.logger.Debug().
		Str("style_id", req.StyleID).
		Str("tier", string(req.Tier)).
		Str("seed", seed).
		Msg("genai: generated synthetic image")

	return domain.Image{Data: buf.Bytes(), MIMEType: "image/png"}, nil
}

func colorFromSeed(seed string, shift int) color.NRGBA {
	if seed == "" {
		seed = "000000"
	}
	doubled := seed + seed
	start := (shift * 6) % len(seed)
	segment := doubled[start : start+6]
	return color.NRGBA{
		R: parseHexByte(segment[0:2]),
		G: parseHexByte(segment[2:4]),
		B: parseHexByte(segment[4:6]),
		A: 255,
	}
}

func parseHexByte(s string) uint8 {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return uint8(v)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func deterministicSeed(parts ...any) string {
	hasher := sha256.New()
	for _, part := range parts {
		fmt.Fprintf(hasher, "%v|", part)
	}
	return hex.EncodeToString(hasher.Sum(nil))[:16]
}
