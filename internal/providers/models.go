package providers

// Family groups Leonardo models that accept the same parameter set.
type Family string

const (
	FamilyPhoenix Family = "phoenix"
	FamilyFlux    Family = "flux"
	FamilyLucid   Family = "lucid"
	FamilySDXL    Family = "sdxl"
)

// Style parameter names. A request carries exactly one of them.
const (
	StyleFieldPreset = "presetStyle"
	StyleFieldUUID   = "styleUUID"
)

// Model is one entry of the image model catalog.
type Model struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Family Family `json:"family"`
}

// DefaultModelID is used when no settings layer names a model.
const DefaultModelID = "d69c8273-6b17-4a30-a13e-d6637ae1c644"

// Catalog lists the Leonardo models reel knows by family.
var Catalog = []Model{
	{ID: "de7d3faf-762f-48e0-b3b7-9d0ac3a3fcf3", Name: "Leonardo Phoenix 1.0", Family: FamilyPhoenix},
	{ID: "b2614463-296c-462a-9586-aafdb8f00e36", Name: "Flux Dev", Family: FamilyFlux},
	{ID: "1dd50843-d653-4516-a8e3-f0238ee453ff", Name: "Flux Schnell", Family: FamilyFlux},
	{ID: "05ce0082-2d80-4a2d-8653-4d1c85e2418e", Name: "Lucid Realism", Family: FamilyLucid},
	{ID: "e71a1c2f-4f80-4800-934f-2c68979d8cc8", Name: "Leonardo Anime XL", Family: FamilySDXL},
	{ID: "b24e16ff-06e3-43eb-8d33-4416c2d75876", Name: "Leonardo Lightning XL", Family: FamilySDXL},
	{ID: "16e7060a-803e-4df3-97ee-edcfa5dc9cc8", Name: "SDXL 1.0", Family: FamilySDXL},
	{ID: "aa77f04e-3eec-4034-9c07-d0f619684628", Name: "Leonardo Kino XL", Family: FamilySDXL},
	{ID: "5c232a9e-9061-4777-980a-ddc8e65647c6", Name: "Leonardo Vision XL", Family: FamilySDXL},
	{ID: "1e60896f-3c26-4296-8ecc-53e2afecc132", Name: "Leonardo Diffusion XL", Family: FamilySDXL},
	{ID: "2067ae52-33fd-4a82-bb92-c2c55e7d2786", Name: "AlbedoBase XL", Family: FamilySDXL},
	{ID: DefaultModelID, Name: "3D Animation Style", Family: FamilySDXL},
	{ID: "ac614f96-1082-45bf-be9d-757f2d31c174", Name: "DreamShaper v7", Family: FamilySDXL},
}

// PresetStyles are the presetStyle values offered for sdxl models.
var PresetStyles = []string{"CINEMATIC", "FILM", "3D_ANIMATION", "ANIME"}

// StyleUUIDs maps style names to the styleUUID values used by phoenix, flux and lucid.
var StyleUUIDs = map[string]string{
	"Cinematic":    "a5632c7c-ddbb-4e2f-ba34-8456ab3ac436",
	"Illustration": "645e4195-f63d-4715-a752-e2fb1e8b7c70",
	"3D Render":    "debdF72a-91a4-467b-bf61-cc02bdeb69c6",
}

// Style values sent when no settings layer picks one.
const (
	DefaultPresetStyle = "3D_ANIMATION"
	DefaultStyleUUID   = "a5632c7c-ddbb-4e2f-ba34-8456ab3ac436" // Cinematic
)

// ControlNet preprocessor IDs.
const (
	PreprocessorCanny              = 19
	PreprocessorDepth              = 20
	PreprocessorPose               = 21
	PreprocessorStyle              = 67
	PreprocessorContent            = 100
	PreprocessorCharacterReference = 133
)

// LookupModel returns the catalog entry for id.
func LookupModel(id string) (Model, bool) {
	for _, m := range Catalog {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// FamilyOf returns the family of a model. Unknown models are treated as sdxl.
func FamilyOf(modelID string) Family {
	if m, ok := LookupModel(modelID); ok {
		return m.Family
	}
	return FamilySDXL
}

// StyleField returns which style parameter a family accepts.
func (f Family) StyleField() string {
	switch f {
	case FamilyPhoenix, FamilyFlux, FamilyLucid:
		return StyleFieldUUID
	default:
		return StyleFieldPreset
	}
}

// DefaultStyle returns the value sent in the family's style field when the
// settings leave it empty.
func (f Family) DefaultStyle() string {
	if f.StyleField() == StyleFieldUUID {
		return DefaultStyleUUID
	}
	return DefaultPresetStyle
}

// SupportsPhotoReal reports whether photoReal may be sent.
func (f Family) SupportsPhotoReal() bool {
	return f == FamilySDXL
}

// SupportsContrast reports whether contrast may be sent.
func (f Family) SupportsContrast() bool {
	return f == FamilyPhoenix || f == FamilyFlux
}
