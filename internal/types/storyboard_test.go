package types

import "testing"

func TestGenerationSettings_Merge(t *testing.T) {
	fallback := GenerationSettings{
		ModelID:        "base",
		GuidanceScale:  7,
		NegativePrompt: "blurry",
		PresetStyle:    "CINEMATIC",
		Alchemy:        Bool(true),
		Width:          832,
		Height:         1472,
		Elements:       []Element{{ID: "el", Weight: 1}},
	}

	t.Run("unset fields fall through", func(t *testing.T) {
		got := GenerationSettings{ModelID: "override"}.Merge(fallback)
		if got.ModelID != "override" {
			t.Errorf("ModelID = %q", got.ModelID)
		}
		if got.GuidanceScale != 7 || got.NegativePrompt != "blurry" || got.PresetStyle != "CINEMATIC" {
			t.Errorf("merged = %+v", got)
		}
		if got.Alchemy == nil || !*got.Alchemy {
			t.Error("Alchemy not inherited")
		}
		if len(got.Elements) != 1 {
			t.Errorf("Elements = %v", got.Elements)
		}
	})

	t.Run("explicit false is kept", func(t *testing.T) {
		got := GenerationSettings{Alchemy: Bool(false)}.Merge(fallback)
		if got.Alchemy == nil || *got.Alchemy {
			t.Error("explicit false overridden")
		}
	})

	t.Run("empty slice is kept", func(t *testing.T) {
		got := GenerationSettings{Elements: []Element{}}.Merge(fallback)
		if got.Elements == nil || len(got.Elements) != 0 {
			t.Errorf("Elements = %v, want empty", got.Elements)
		}
	})

	t.Run("layers chain", func(t *testing.T) {
		scene := GenerationSettings{Contrast: 3.5}
		story := GenerationSettings{PresetStyle: "ANIME"}
		got := scene.Merge(story).Merge(fallback)
		if got.Contrast != 3.5 || got.PresetStyle != "ANIME" || got.ModelID != "base" {
			t.Errorf("merged = %+v", got)
		}
	})
}

func TestProject_ProjectDefaults(t *testing.T) {
	tests := []struct {
		name    string
		project Project
		wantGS  int
		wantNeg string
	}{
		{"unset", Project{}, DefaultGuidanceScale, DefaultNegativePrompt},
		{"custom", Project{DefaultGuidanceScale: 12, DefaultNegativePrompt: "text"}, 12, "text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.project.ProjectDefaults()
			if got.GuidanceScale != tt.wantGS || got.NegativePrompt != tt.wantNeg {
				t.Errorf("ProjectDefaults() = %+v", got)
			}
			if got.PresetStyle != DefaultPresetStyle {
				t.Errorf("PresetStyle = %q", got.PresetStyle)
			}
			if got.Alchemy == nil || !*got.Alchemy {
				t.Error("Alchemy should default on")
			}
		})
	}
}

func TestScene_HasImage(t *testing.T) {
	if (&Scene{}).HasImage() {
		t.Error("empty scene has image")
	}
	if !(&Scene{ImageURL: "https://x/1.png"}).HasImage() {
		t.Error("scene with URL has no image")
	}
}
