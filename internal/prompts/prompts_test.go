package prompts

import (
	"strings"
	"testing"

	"github.com/jackzampolin/reel/internal/types"
)

func TestStoryPrompt_Platform(t *testing.T) {
	tests := []struct {
		platform types.Platform
		count    string
		length   string
	}{
		{types.PlatformTikTok, "exactly 15-20 scenes", "over 65 seconds"},
		{types.PlatformInstagram, "exactly 20-25 scenes", "around 60 seconds"},
		{types.PlatformYouTube, "exactly 25-30 scenes", "under 60 seconds"},
		{"", "exactly 25-30 scenes", "under 60 seconds"},
	}

	for _, tt := range tests {
		t.Run(string(tt.platform), func(t *testing.T) {
			got := StoryPrompt(StoryRequest{Topic: "lighthouses", Platform: tt.platform})
			if !strings.Contains(got, tt.count) {
				t.Errorf("prompt missing %q:\n%s", tt.count, got)
			}
			if !strings.Contains(got, tt.length) {
				t.Errorf("prompt missing %q:\n%s", tt.length, got)
			}
			if !strings.Contains(got, `"lighthouses"`) {
				t.Errorf("prompt missing topic:\n%s", got)
			}
		})
	}
}

func TestStoryPrompt_Character(t *testing.T) {
	with := StoryPrompt(StoryRequest{Topic: "tides", Platform: types.PlatformTikTok, Character: "an old sailor"})
	if !strings.Contains(with, `The main character of this story is: "an old sailor"`) {
		t.Errorf("character line missing:\n%s", with)
	}
	if !strings.Contains(with, "prominently feature") {
		t.Errorf("character scene rule missing:\n%s", with)
	}

	without := StoryPrompt(StoryRequest{Topic: "tides", Platform: types.PlatformTikTok})
	if strings.Contains(without, "main character") {
		t.Errorf("unexpected character text:\n%s", without)
	}
}

func TestScenePrompt_FiltersEmptyAttributes(t *testing.T) {
	got := ScenePrompt(SceneInput{
		Text:      "She opens the door.",
		Character: "Mara",
		CharacterTemplate: map[string]string{
			"hairstyle":     "short silver bob",
			"clothingStyle": "yellow raincoat",
			"bodyType":      "",
			"nailStyle":     "   ",
		},
		Directives: map[string]string{
			"lighting":   "neon",
			"background": "",
		},
	})

	for _, want := range []string{
		"She opens the door.",
		"Main character: Mara",
		"- clothingStyle: yellow raincoat",
		"- hairstyle: short silver bob",
		"- lighting: neon",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing %q:\n%s", want, got)
		}
	}
	for _, absent := range []string{"bodyType", "nailStyle", "background"} {
		if strings.Contains(got, absent) {
			t.Errorf("prompt contains empty attribute %q:\n%s", absent, got)
		}
	}

	// Sorted order.
	if strings.Index(got, "clothingStyle") > strings.Index(got, "hairstyle") {
		t.Errorf("attributes not sorted:\n%s", got)
	}
}

func TestScenePrompt_NoAttributes(t *testing.T) {
	got := ScenePrompt(SceneInput{Text: "Rain falls."})
	if strings.Contains(got, "Character attributes") || strings.Contains(got, "Scene directives") {
		t.Errorf("empty sections rendered:\n%s", got)
	}
}

func TestSceneSystemPrompt_Priority(t *testing.T) {
	sys := SceneSystemPrompt()
	if !strings.Contains(sys, "Scene directives override everything else") {
		t.Error("system prompt does not state directive priority")
	}
	if !strings.Contains(sys, "image_prompt") || !strings.Contains(sys, "video_prompt") {
		t.Error("system prompt does not name both fields")
	}
}

func TestAttributes(t *testing.T) {
	got := Attributes(map[string]string{"b": "2", "a": "1", "c": ""})
	if len(got) != 2 || got[0].Key != "a" || got[1].Key != "b" {
		t.Errorf("Attributes() = %+v", got)
	}
	if Attributes(nil) != nil {
		t.Error("Attributes(nil) should be nil")
	}
}
