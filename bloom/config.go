package bloom

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the tunables of a pipeline, usually read from the [bloom]
// table of a TOML file.
type Config struct {
	BlurPasses int     `toml:"blur_passes"`
	Intensity  float32 `toml:"intensity"`
}

func DefaultConfig() Config {
	return Config{
		BlurPasses: DefaultBlurPasses,
		Intensity:  DefaultIntensity,
	}
}

func (c Config) Validate() error {
	if c.BlurPasses < 0 {
		return fmt.Errorf("%w: blur_passes %d is negative", ErrInvalidConfig, c.BlurPasses)
	}
	if c.Intensity < 0 {
		return fmt.Errorf("%w: intensity %g is negative", ErrInvalidConfig, c.Intensity)
	}
	return nil
}

// Options converts the config into pipeline options.
func (c Config) Options() []Option {
	return []Option{WithBlurPasses(c.BlurPasses), WithIntensity(c.Intensity)}
}

// ParseConfig decodes the [bloom] table of a TOML document over the
// defaults, so missing keys keep their default values. Keys the document
// does not declare, including top-level bloom keys outside the table, are
// an error.
func ParseConfig(data []byte) (Config, error) {
	doc := struct {
		Bloom Config `toml:"bloom"`
	}{Bloom: DefaultConfig()}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return Config{}, fmt.Errorf("bloom: parse config: %w", err)
	}
	if err := doc.Bloom.Validate(); err != nil {
		return Config{}, err
	}
	return doc.Bloom, nil
}

// LoadConfig reads and parses a TOML file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(data)
}
