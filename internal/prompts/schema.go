package prompts

import (
	"encoding/json"

	"github.com/jackzampolin/reel/internal/providers"
)

// SceneSchema is the JSON schema for scene prompt synthesis output.
var SceneSchema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "scene_prompts",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"image_prompt": map[string]any{
					"type":        "string",
					"minLength":   1,
					"description": "Detailed still-frame description for the image model",
				},
				"video_prompt": map[string]any{
					"type":        "string",
					"minLength":   1,
					"description": "Short motion description for the video model",
				},
			},
			"required":             []string{"image_prompt", "video_prompt"},
			"additionalProperties": false,
		},
	},
}

// StorySchema is the JSON schema for story drafting output.
// Strict structured output needs an object root, so the scene array is wrapped.
var StorySchema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "story_scenes",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"scenes": sceneListSchema,
			},
			"required":             []string{"scenes"},
			"additionalProperties": false,
		},
	},
}

var sceneListSchema = map[string]any{
	"type":     "array",
	"minItems": 1,
	"items": map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string", "minLength": 1},
		},
		"required":             []string{"text"},
		"additionalProperties": false,
	},
}

// responseFormat converts one of the schema maps above to a provider format.
func responseFormat(schema map[string]any) *providers.ResponseFormat {
	inner, err := json.Marshal(schema["json_schema"])
	if err != nil {
		return nil
	}
	return &providers.ResponseFormat{
		Type:       schema["type"].(string),
		JSONSchema: inner,
	}
}
