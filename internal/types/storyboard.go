// Package types provides the storyboard records shared across packages.
// This package has no dependencies on other reel packages to avoid import cycles.
package types

import "time"

// Platform is the short-form video platform a story is written for.
type Platform string

const (
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformYouTube   Platform = "youtube"
)

// Project defaults used when a project doesn't set its own.
const (
	DefaultGuidanceScale  = 7
	DefaultNegativePrompt = "blurry, low quality, watermark, text"
	DefaultPresetStyle    = "3D_ANIMATION"
	DefaultAlchemy        = true
)

// Project is the top-level container for stories.
type Project struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	DefaultGuidanceScale  int       `json:"default_guidance_scale"`
	DefaultNegativePrompt string    `json:"default_negative_prompt"`
	CreatedAt             time.Time `json:"created_at"`
}

// Story is one drafted script within a project.
type Story struct {
	ID                string             `json:"id"`
	ProjectID         string             `json:"project_id"`
	Topic             string             `json:"topic"`
	Platform          Platform           `json:"platform"`
	Character         string             `json:"character,omitempty"`
	CharacterTemplate map[string]string  `json:"character_template,omitempty"`
	Settings          GenerationSettings `json:"settings"`
	CreatedAt         time.Time          `json:"created_at"`
}

// Scene is one narrative beat of a story and the unit of image generation.
// Text and Order are fixed at creation; image fields change only on a
// successful generation.
type Scene struct {
	ID                 string             `json:"id"`
	ProjectID          string             `json:"project_id"`
	StoryID            string             `json:"story_id"`
	Order              int                `json:"order"`
	Text               string             `json:"text"`
	ImagePrompt        string             `json:"image_prompt,omitempty"`
	VideoPrompt        string             `json:"video_prompt,omitempty"`
	ImageURL           string             `json:"image_url,omitempty"`
	GenerationSettings GenerationSettings `json:"generation_settings"`
	Directives         map[string]string  `json:"directives,omitempty"`
	Version            string             `json:"version,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// HasImage reports whether the scene has ever been generated successfully.
func (s *Scene) HasImage() bool {
	return s.ImageURL != ""
}

// ControlNet is an auxiliary conditioning reference.
type ControlNet struct {
	PreprocessorID int     `json:"preprocessor_id"`
	InitImageID    string  `json:"init_image_id"`
	Weight         float64 `json:"weight"`
}

// Element is a trained style or character model applied to a generation.
type Element struct {
	ID     string  `json:"id"`
	Weight float64 `json:"weight"`
}

// GenerationSettings are the parameters that produced a scene's current
// image, and the defaults for its next regeneration. Zero values mean
// "not set" and fall through to the next layer when settings are merged.
type GenerationSettings struct {
	ModelID        string       `json:"model_id,omitempty"`
	GuidanceScale  int          `json:"guidance_scale,omitempty"`
	NegativePrompt string       `json:"negative_prompt,omitempty"`
	PresetStyle    string       `json:"preset_style,omitempty"`
	StyleUUID      string       `json:"style_uuid,omitempty"`
	Alchemy        *bool        `json:"alchemy,omitempty"`
	PhotoReal      *bool        `json:"photo_real,omitempty"`
	Contrast       float64      `json:"contrast,omitempty"`
	Width          int          `json:"width,omitempty"`
	Height         int          `json:"height,omitempty"`
	ControlNets    []ControlNet `json:"controlnets,omitempty"`
	Elements       []Element    `json:"elements,omitempty"`
}

// Merge returns s with every unset field filled from fallback.
func (s GenerationSettings) Merge(fallback GenerationSettings) GenerationSettings {
	out := s
	if out.ModelID == "" {
		out.ModelID = fallback.ModelID
	}
	if out.GuidanceScale == 0 {
		out.GuidanceScale = fallback.GuidanceScale
	}
	if out.NegativePrompt == "" {
		out.NegativePrompt = fallback.NegativePrompt
	}
	if out.PresetStyle == "" {
		out.PresetStyle = fallback.PresetStyle
	}
	if out.StyleUUID == "" {
		out.StyleUUID = fallback.StyleUUID
	}
	if out.Alchemy == nil {
		out.Alchemy = fallback.Alchemy
	}
	if out.PhotoReal == nil {
		out.PhotoReal = fallback.PhotoReal
	}
	if out.Contrast == 0 {
		out.Contrast = fallback.Contrast
	}
	if out.Width == 0 {
		out.Width = fallback.Width
	}
	if out.Height == 0 {
		out.Height = fallback.Height
	}
	if out.ControlNets == nil {
		out.ControlNets = fallback.ControlNets
	}
	if out.Elements == nil {
		out.Elements = fallback.Elements
	}
	return out
}

// ProjectDefaults returns the settings layer contributed by a project.
func (p *Project) ProjectDefaults() GenerationSettings {
	gs := p.DefaultGuidanceScale
	if gs == 0 {
		gs = DefaultGuidanceScale
	}
	neg := p.DefaultNegativePrompt
	if neg == "" {
		neg = DefaultNegativePrompt
	}
	return GenerationSettings{
		GuidanceScale:  gs,
		NegativePrompt: neg,
		PresetStyle:    DefaultPresetStyle,
		Alchemy:        Bool(DefaultAlchemy),
	}
}

// Bool returns a pointer to b, for optional settings fields.
func Bool(b bool) *bool {
	return &b
}
