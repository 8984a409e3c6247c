package imagegen

import "strings"

// Styles are suffixes appended to the prompt.
var Styles = map[string]string{
	"none":           "",
	"photorealistic": ", ultra realistic, 8k uhd, photorealistic, professional photography, natural lighting",
	"anime":          ", anime style, studio ghibli inspired, cel shaded, vibrant colors, detailed anime art",
	"cyberpunk":      ", cyberpunk style, neon lights, futuristic, blade runner aesthetic, rain, night city",
	"fantasy":        ", fantasy art style, magical, ethereal, detailed illustration, epic fantasy",
	"oil_painting":   ", oil painting style, classical art, brushstrokes visible, museum quality",
	"watercolor":     ", watercolor painting, soft edges, artistic, delicate colors, paper texture",
	"3d_render":      ", 3D render, octane render, unreal engine 5, highly detailed, volumetric lighting",
	"comic":          ", comic book style, bold lines, dynamic, superhero aesthetic, vibrant",
	"minimalist":     ", minimalist style, clean, simple, elegant, white space, modern design",
}

// Models lists the image models users may pick.
var Models = []string{
	"gemini-3-pro-image-preview",
	"gemini-2.5-flash-image",
	"gemini-2.5-flash-image-preview",
}

// Qualities map onto the model's image size.
var Qualities = []string{"1K", "2K", "4K"}

// AspectRatios accepted by the model.
var AspectRatios = []string{"1:1", "16:9", "9:16", "4:3", "3:4", "21:9"}

const (
	singleReferenceInstruction = "Use the exact face/style from the reference image. " +
		"Keep it identical while following this description: "
	multiReferenceInstruction = "IMPORTANT: Use the face/person from the FIRST reference image(s). " +
		"The LAST image shows the pose/scene/style to recreate. " +
		"Keep the face IDENTICAL but recreate the pose and setting. "
)

// BuildPrompt applies the style suffix and the reference instruction.
func BuildPrompt(prompt, style string, references int) string {
	var b strings.Builder
	switch {
	case references >= 2:
		b.WriteString(multiReferenceInstruction)
	case references == 1:
		b.WriteString(singleReferenceInstruction)
	}
	b.WriteString(strings.TrimSpace(prompt))
	b.WriteString(Styles[style])
	return b.String()
}

// StyleLabel renders a style key for display, e.g. "oil_painting" → "Oil Painting".
func StyleLabel(style string) string {
	if style == "" || style == "none" {
		return "None"
	}
	words := strings.Split(style, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
