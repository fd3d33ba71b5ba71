// Package prompts builds the language model requests used to draft stories
// and to derive per-scene image and video prompts.
//
// Prompt text lives in embedded .tmpl files. The builders are pure; the
// Composer is the only part that calls out to a model.
package prompts

import (
	"bytes"
	_ "embed"
	"sort"
	"strings"
	"text/template"

	"github.com/jackzampolin/reel/internal/types"
)

//go:embed story_system.tmpl
var storySystemPrompt string

//go:embed story_user.tmpl
var storyUserTmpl string

//go:embed scene_system.tmpl
var sceneSystemPrompt string

//go:embed scene_user.tmpl
var sceneUserTmpl string

var (
	storyTemplate = template.Must(template.New("story").Parse(storyUserTmpl))
	sceneTemplate = template.Must(template.New("scene").Parse(sceneUserTmpl))
)

// StoryRequest describes the story to draft.
type StoryRequest struct {
	Topic     string         `json:"topic"`
	Platform  types.Platform `json:"platform"`
	Character string         `json:"character,omitempty"`
}

// SceneInput is everything the composer may draw on for one scene.
type SceneInput struct {
	Text              string
	Character         string
	CharacterTemplate map[string]string
	Directives        map[string]string
}

// Attribute is one rendered key/value line.
type Attribute struct {
	Key   string
	Value string
}

// platformShape returns the scene count range and the length phrase for a platform.
func platformShape(p types.Platform) (count, length string) {
	switch p {
	case types.PlatformTikTok:
		return "15-20", "over 65 seconds"
	case types.PlatformInstagram:
		return "20-25", "around 60 seconds"
	default:
		return "25-30", "under 60 seconds"
	}
}

// StorySystemPrompt returns the system prompt for story drafting.
func StorySystemPrompt() string {
	return storySystemPrompt
}

// StoryPrompt builds the user prompt for story drafting.
func StoryPrompt(req StoryRequest) string {
	platform := req.Platform
	if platform == "" {
		platform = types.PlatformYouTube
	}
	count, length := platformShape(platform)

	data := struct {
		Topic      string
		Character  string
		Platform   types.Platform
		SceneCount string
		Length     string
	}{
		Topic:      strings.TrimSpace(req.Topic),
		Character:  strings.TrimSpace(req.Character),
		Platform:   platform,
		SceneCount: count,
		Length:     length,
	}

	var buf bytes.Buffer
	if err := storyTemplate.Execute(&buf, data); err != nil {
		return storyUserTmpl
	}
	return buf.String()
}

// SceneSystemPrompt returns the system prompt for scene prompt synthesis.
func SceneSystemPrompt() string {
	return sceneSystemPrompt
}

// ScenePrompt builds the user prompt for one scene. Attributes with blank
// values are left out, and the rest are rendered in key order.
func ScenePrompt(in SceneInput) string {
	data := struct {
		Text                string
		Character           string
		CharacterAttributes []Attribute
		SceneDirectives     []Attribute
	}{
		Text:                strings.TrimSpace(in.Text),
		Character:           strings.TrimSpace(in.Character),
		CharacterAttributes: Attributes(in.CharacterTemplate),
		SceneDirectives:     Attributes(in.Directives),
	}

	var buf bytes.Buffer
	if err := sceneTemplate.Execute(&buf, data); err != nil {
		return sceneUserTmpl
	}
	return buf.String()
}

// Attributes returns the non-blank entries of m sorted by key.
func Attributes(m map[string]string) []Attribute {
	var out []Attribute
	for k, v := range m {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, Attribute{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
