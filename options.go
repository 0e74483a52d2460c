package assetdb

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Options holds the normalization policy flags for one open operation.
type Options struct {
	// MergeSkins folds every per-mesh bone list into one global skin
	// and remaps per-vertex bone indices through the merged table.
	MergeSkins bool `yaml:"merge_skins"`
	// ElideDummyTracks drops 1-key sub-tracks whose single value equals
	// the target node's static transform component.
	ElideDummyTracks bool `yaml:"elide_dummy_tracks"`
	// KeepCustomProperties emits unrecognized material properties as
	// opaque custom attributes instead of dropping them.
	KeepCustomProperties bool `yaml:"keep_custom_properties"`
	// RawPropertiesOnly forces every material property through the
	// custom/raw path, bypassing type recognition. Debug aid.
	RawPropertiesOnly bool `yaml:"raw_properties_only"`
	// DefaultTicksPerSecond replaces a source-reported tick rate of
	// zero when normalizing animation key times to seconds.
	DefaultTicksPerSecond float64 `yaml:"default_ticks_per_second"`
	// MaxCustomAttrBytes is the attribute-record budget; a custom
	// attribute whose payload exceeds it is dropped with a diagnostic.
	MaxCustomAttrBytes int `yaml:"max_custom_attr_bytes"`

	// Loader supplies on-demand image bytes. Nil means the local
	// filesystem loader.
	Loader ImageLoader `yaml:"-"`
}

// DefaultOptions returns the policy used when the caller supplies none.
func DefaultOptions() Options {
	return Options{
		MergeSkins:            true,
		ElideDummyTracks:      true,
		KeepCustomProperties:  true,
		RawPropertiesOnly:     false,
		DefaultTicksPerSecond: 25,
		MaxCustomAttrBytes:    512,
	}
}

// LoadOptions reads options from a yaml file, starting from defaults.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("loading options from %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parsing options from %s: %w", path, err)
	}
	return opts, nil
}

// Save writes the options to a yaml file.
func (o Options) Save(path string) error {
	data, err := yaml.Marshal(&o)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (o Options) normalized() Options {
	if o.DefaultTicksPerSecond <= 0 {
		o.DefaultTicksPerSecond = DefaultOptions().DefaultTicksPerSecond
	}
	if o.MaxCustomAttrBytes <= 0 {
		o.MaxCustomAttrBytes = DefaultOptions().MaxCustomAttrBytes
	}
	if o.Loader == nil {
		o.Loader = FileLoader{}
	}
	return o
}
