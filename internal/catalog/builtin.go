package catalog

import "imagegen/internal/core"

// Style groups
const (
	GroupDigitalArt     = "Digital Art"
	GroupTraditionalArt = "Traditional Art"
	GroupAnime          = "Anime & Illustration"
)

// BuiltinStyles is the default style catalog.
func BuiltinStyles() []core.StylePreset {
	return []core.StylePreset{
		NoneStyle(),
		{
			ID:           "cyberpunk",
			DisplayName:  "Cyberpunk",
			Group:        GroupDigitalArt,
			PromptSuffix: ", cyberpunk style, neon lights, futuristic city background, highly detailed, 8k resolution, vibrant colors",
		},
		{
			ID:           "3d_render",
			DisplayName:  "3D Render",
			Group:        GroupDigitalArt,
			PromptSuffix: ", 3D render, unreal engine 5, 8k, ray tracing, realistic, cinematic lighting, highly detailed textures",
		},
		{
			ID:           "watercolor",
			DisplayName:  "Watercolor",
			Group:        GroupTraditionalArt,
			PromptSuffix: ", watercolor painting, soft colors, artistic, dreamy, paper texture, delicate brush strokes",
		},
		{
			ID:           "oil_painting",
			DisplayName:  "Oil Painting",
			Group:        GroupTraditionalArt,
			PromptSuffix: ", oil painting, thick brush strokes, textured canvas, classical art style, rich colors",
		},
		{
			ID:           "ghibli",
			DisplayName:  "Ghibli Anime",
			Group:        GroupAnime,
			PromptSuffix: ", Studio Ghibli style, anime, vibrant colors, detailed background, whimsical, Hayao Miyazaki",
		},
		{ID: core.StyleIDCustom, DisplayName: core.StyleNameCustom, Group: core.StyleNameCustom},
	}
}
