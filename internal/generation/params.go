package generation

import (
	"reflect"

	"github.com/jackzampolin/reel/internal/providers"
	"github.com/jackzampolin/reel/internal/types"
)

// Provider parameter names.
const (
	ParamGuidanceScale  = "guidance_scale"
	ParamNegativePrompt = "negative_prompt"
	ParamAlchemy        = "alchemy"
	ParamPhotoReal      = "photoReal"
	ParamContrast       = "contrast"
	ParamControlNets    = "controlnets"
	ParamElements       = "elements"
)

// Sanitize returns a copy of params without the values the provider rejects
// instead of ignoring: nil (including typed nil pointers), false, empty
// strings and empty slices or maps. Pointers to kept values are dereferenced.
func Sanitize(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		if v, ok := present(v); ok {
			out[k] = v
		}
	}
	return out
}

func present(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Bool:
		if !rv.Bool() {
			return nil, false
		}
	case reflect.String:
		if rv.Len() == 0 {
			return nil, false
		}
	case reflect.Slice, reflect.Map:
		if rv.IsNil() || rv.Len() == 0 {
			return nil, false
		}
	case reflect.Array:
		if rv.Len() == 0 {
			return nil, false
		}
	}
	return rv.Interface(), true
}

// BuildParams turns resolved settings into the provider parameter bag for
// the settings' model. The family rule picks exactly one style field and an
// empty value there falls back to the family default. The result is
// sanitized.
func BuildParams(settings types.GenerationSettings) map[string]any {
	family := providers.FamilyOf(settings.ModelID)

	params := map[string]any{
		ParamGuidanceScale:  positive(settings.GuidanceScale),
		ParamNegativePrompt: settings.NegativePrompt,
		ParamAlchemy:        settings.Alchemy,
		ParamControlNets:    controlNetParams(settings.ControlNets),
		ParamElements:       elementParams(settings.Elements),
	}

	style := settings.PresetStyle
	if family.StyleField() == providers.StyleFieldUUID {
		style = settings.StyleUUID
	}
	if style == "" {
		style = family.DefaultStyle()
	}
	params[family.StyleField()] = style
	if family.SupportsPhotoReal() {
		params[ParamPhotoReal] = settings.PhotoReal
	}
	if family.SupportsContrast() && settings.Contrast > 0 {
		params[ParamContrast] = settings.Contrast
	}

	return Sanitize(params)
}

// positive maps non-positive ints to nil so they are dropped.
func positive(n int) any {
	if n <= 0 {
		return nil
	}
	return n
}

// controlNetParams drops references with no init image; the provider
// rejects them.
func controlNetParams(cns []types.ControlNet) []map[string]any {
	var out []map[string]any
	for _, cn := range cns {
		if cn.InitImageID == "" || cn.PreprocessorID == 0 {
			continue
		}
		out = append(out, map[string]any{
			"preprocessorId": cn.PreprocessorID,
			"initImageId":    cn.InitImageID,
			"initImageType":  "UPLOADED",
			"weight":         cn.Weight,
		})
	}
	return out
}

func elementParams(els []types.Element) []map[string]any {
	var out []map[string]any
	for _, el := range els {
		if el.ID == "" {
			continue
		}
		out = append(out, map[string]any{
			"akUUID": el.ID,
			"weight": el.Weight,
		})
	}
	return out
}
