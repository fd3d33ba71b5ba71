package providers

import "testing"

func TestFamilyOf(t *testing.T) {
	tests := []struct {
		modelID string
		want    Family
	}{
		{"de7d3faf-762f-48e0-b3b7-9d0ac3a3fcf3", FamilyPhoenix},
		{"b2614463-296c-462a-9586-aafdb8f00e36", FamilyFlux},
		{"05ce0082-2d80-4a2d-8653-4d1c85e2418e", FamilyLucid},
		{DefaultModelID, FamilySDXL},
		{"not-in-catalog", FamilySDXL},
	}
	for _, tt := range tests {
		if got := FamilyOf(tt.modelID); got != tt.want {
			t.Errorf("FamilyOf(%s) = %s, want %s", tt.modelID, got, tt.want)
		}
	}
}

func TestFamilyRules(t *testing.T) {
	tests := []struct {
		family    Family
		style     string
		photoReal bool
		contrast  bool
	}{
		{FamilyPhoenix, StyleFieldUUID, false, true},
		{FamilyFlux, StyleFieldUUID, false, true},
		{FamilyLucid, StyleFieldUUID, false, false},
		{FamilySDXL, StyleFieldPreset, true, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.family), func(t *testing.T) {
			if got := tt.family.StyleField(); got != tt.style {
				t.Errorf("StyleField() = %s, want %s", got, tt.style)
			}
			if got := tt.family.SupportsPhotoReal(); got != tt.photoReal {
				t.Errorf("SupportsPhotoReal() = %v", got)
			}
			if got := tt.family.SupportsContrast(); got != tt.contrast {
				t.Errorf("SupportsContrast() = %v", got)
			}
		})
	}
}

func TestCatalogIDsUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, m := range Catalog {
		if seen[m.ID] {
			t.Errorf("duplicate model id %s", m.ID)
		}
		seen[m.ID] = true
	}
	if !seen[DefaultModelID] {
		t.Error("default model missing from catalog")
	}
}
