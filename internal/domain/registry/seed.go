package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// legacyAliases is the fixed seed table of caller-friendly aliases. It
// always takes precedence over aliases auto-derived from the catalog, and
// it is the entire content of a fallback snapshot when the remote catalog
// is unreachable with no prior cache.
var legacyAliases = map[string]string{
	// Image models
	"flux_schnell":     "fal-ai/flux/schnell",
	"flux_dev":         "fal-ai/flux/dev",
	"flux_pro":         "fal-ai/flux-pro",
	"sdxl":             "fal-ai/fast-sdxl",
	"stable_diffusion": "fal-ai/stable-diffusion-v3-medium",
	// Video models
	"svd":         "fal-ai/stable-video-diffusion",
	"animatediff": "fal-ai/fast-animatediff",
	"kling":       "fal-ai/kling-video",
	// Audio models
	"musicgen":       "fal-ai/musicgen-medium",
	"musicgen_large": "fal-ai/musicgen-large",
	"bark":           "fal-ai/bark",
	"whisper":        "fal-ai/whisper",
}

// categoryMapping folds the platform's fine-grained categories into the
// three caller-facing ones.
var categoryMapping = map[string]string{
	"text-to-image":  "image",
	"image-to-image": "image",
	"text-to-video":  "video",
	"image-to-video": "video",
	"video-to-video": "video",
	"audio":          "audio",
	"text-to-audio":  "audio",
	"speech-to-text": "audio",
	"text-to-speech": "audio",
	"audio-to-audio": "audio",
}

// apiCategoryHints maps a caller-facing category to the platform category
// used when narrowing a semantic search.
var apiCategoryHints = map[string]string{
	"image": "text-to-image",
	"video": "text-to-video",
	"audio": "text-to-audio",
}

// SeedAliases returns the seed table, optionally merged with an operator
// supplied YAML override file of extra alias -> id mappings. Overrides win
// over the built-in entries.
func SeedAliases(overrideFile string) (map[string]string, error) {
	seeds := make(map[string]string, len(legacyAliases))
	for alias, id := range legacyAliases {
		seeds[alias] = id
	}
	if overrideFile == "" {
		return seeds, nil
	}

	data, err := os.ReadFile(overrideFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias seed file %s: %w", overrideFile, err)
	}
	var overrides map[string]string
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse alias seed file %s: %w", overrideFile, err)
	}
	for alias, id := range overrides {
		seeds[alias] = id
	}
	return seeds, nil
}
