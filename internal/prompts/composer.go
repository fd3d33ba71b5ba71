package prompts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jackzampolin/reel/internal/providers"
)

// CompositionError reports that the language model did not produce the
// required prompt structure.
type CompositionError struct {
	Op  string // "scene" or "story"
	Err error
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("compose %s prompt: %v", e.Op, e.Err)
}

func (e *CompositionError) Unwrap() error {
	return e.Err
}

// Composition is the resolved prompt pair for one generation.
type Composition struct {
	ImagePrompt string `json:"image_prompt"`
	VideoPrompt string `json:"video_prompt"`
	// Composed is true when the prompts came from the language model.
	Composed bool `json:"-"`
}

// Composer resolves scene prompts and drafts stories through an LLM client.
type Composer struct {
	llm    providers.LLMClient
	model  string
	logger *slog.Logger
}

// ComposerConfig configures a Composer.
type ComposerConfig struct {
	LLM    providers.LLMClient
	Model  string // Uses the client default if empty
	Logger *slog.Logger
}

// NewComposer creates a composer.
func NewComposer(cfg ComposerConfig) *Composer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{llm: cfg.LLM, model: cfg.Model, logger: logger}
}

// Compose returns the prompts for a scene. A non-empty override is used
// verbatim as the image prompt and no model call is made; the video prompt
// then keeps the scene's existing one, or falls back to the override.
func (c *Composer) Compose(ctx context.Context, in SceneInput, override, existingVideoPrompt string) (*Composition, error) {
	if override = strings.TrimSpace(override); override != "" {
		video := strings.TrimSpace(existingVideoPrompt)
		if video == "" {
			video = override
		}
		return &Composition{ImagePrompt: override, VideoPrompt: video}, nil
	}

	if c.llm == nil {
		return nil, &CompositionError{Op: "scene", Err: errors.New("no language model configured")}
	}

	result, err := c.chat(ctx, SceneSystemPrompt(), ScenePrompt(in), SceneSchema)
	if err != nil {
		return nil, &CompositionError{Op: "scene", Err: err}
	}

	var out Composition
	if err := json.Unmarshal(result.ParsedJSON, &out); err != nil {
		return nil, &CompositionError{Op: "scene", Err: fmt.Errorf("decode: %w", err)}
	}
	out.ImagePrompt = strings.TrimSpace(out.ImagePrompt)
	out.VideoPrompt = strings.TrimSpace(out.VideoPrompt)
	if out.ImagePrompt == "" || out.VideoPrompt == "" {
		return nil, &CompositionError{Op: "scene", Err: errors.New("image_prompt and video_prompt must be non-empty")}
	}
	out.Composed = true

	c.logger.Debug("composed scene prompts",
		"request_id", result.RequestID,
		"model", result.ModelUsed,
		"tokens", result.TotalTokens)
	return &out, nil
}

// DraftStory asks the model for an ordered list of scene texts.
func (c *Composer) DraftStory(ctx context.Context, req StoryRequest) ([]string, error) {
	if strings.TrimSpace(req.Topic) == "" {
		return nil, &CompositionError{Op: "story", Err: errors.New("topic is required")}
	}
	if c.llm == nil {
		return nil, &CompositionError{Op: "story", Err: errors.New("no language model configured")}
	}

	result, err := c.chat(ctx, StorySystemPrompt(), StoryPrompt(req), StorySchema)
	if err != nil {
		return nil, &CompositionError{Op: "story", Err: err}
	}

	var draft struct {
		Scenes []struct {
			Text string `json:"text"`
		} `json:"scenes"`
	}
	if err := json.Unmarshal(result.ParsedJSON, &draft); err != nil {
		return nil, &CompositionError{Op: "story", Err: fmt.Errorf("decode: %w", err)}
	}

	texts := make([]string, 0, len(draft.Scenes))
	for _, s := range draft.Scenes {
		if t := strings.TrimSpace(s.Text); t != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		return nil, &CompositionError{Op: "story", Err: errors.New("no scenes in response")}
	}

	c.logger.Info("drafted story",
		"topic", req.Topic,
		"platform", req.Platform,
		"scenes", len(texts),
		"request_id", result.RequestID)
	return texts, nil
}

func (c *Composer) chat(ctx context.Context, system, user string, schema map[string]any) (*providers.ChatResult, error) {
	rf := responseFormat(schema)
	if rf == nil {
		return nil, errors.New("invalid response schema")
	}

	result, err := c.llm.Chat(ctx, &providers.ChatRequest{
		Model: c.model,
		Messages: []providers.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    0.7,
		ResponseFormat: rf,
		RequestID:      uuid.NewString(),
	})
	if err != nil {
		return nil, err
	}
	if len(result.ParsedJSON) == 0 {
		parsed, err := providers.DecodeStructured(result.Content, rf)
		if err != nil {
			return nil, err
		}
		result.ParsedJSON = parsed
	}
	return result, nil
}
