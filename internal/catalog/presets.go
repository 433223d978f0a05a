package catalog

// CustomID is the placeholder entry that opens the free-text flow.
const CustomID = "custom"

var defaultPresets = []StylePreset{
	{
		ID:          "corporate",
		Name:        "Corporate Executive",
		Description: "Classic grey backdrop, sharp suit, professional lighting.",
		Instruction: "Restyle this person as a corporate executive. Use a studio grey gradient backdrop and a fitted dark business suit. Soft professional studio lighting. Keep facial features identical.",
	},
	{
		ID:          "tech",
		Name:        "Modern Tech",
		Description: "Bright modern office background, smart casual attire.",
		Instruction: "Restyle this photo as a modern tech company headshot. Blurred bright open-plan office with glass walls behind the subject, smart casual top, bright inviting light. Keep facial features identical.",
	},
	{
		ID:          "outdoor",
		Name:        "Natural Outdoor",
		Description: "Soft natural light, blurred nature background.",
		Instruction: "Restyle this photo as an outdoor lifestyle portrait. Blurred park or garden at golden hour, casual stylish clothing, warm natural light. Keep facial features identical.",
	},
	{
		ID:          "studio",
		Name:        "Studio Black & White",
		Description: "High contrast, artistic black and white photography.",
		Instruction: "Convert this photo into a high-end black and white studio portrait. Plain black backdrop, dramatic Rembrandt lighting, simple black turtleneck. Keep facial features identical.",
	},
	{
		ID:          "cafe",
		Name:        "Casual Coffee Shop",
		Description: "Relaxed atmosphere, warm tones, cafe background.",
		Instruction: "Place this person in a cozy upscale coffee shop. Blurred warm ambient lights behind them, stylish sweater or casual jacket, relaxed friendly mood. Keep facial features identical.",
	},
	{
		ID:          "cyberpunk",
		Name:        "Neon Future",
		Description: "Cyberpunk aesthetic, neon lights, futuristic look.",
		Instruction: "Restyle this photo with a cyberpunk look. Neon blue and pink light on the face, dark futuristic city backdrop, modern edgy clothing. Keep facial features identical.",
	},
	{
		ID:          CustomID,
		Name:        "Create Custom",
		Description: "Write your own prompt.",
		Custom:      true,
	},
}

// Default returns the shipped catalog.
func Default() *Catalog {
	return MustNew(defaultPresets...)
}
