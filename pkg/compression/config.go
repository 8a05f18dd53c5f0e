package compression

import (
	"fmt"

	"github.com/ajitpratap0/quiver/pkg/errors"
)

// Capabilities is implemented by engines that can report which algorithms
// their writers support.
type Capabilities interface {
	SupportedCompressions() []Algorithm
}

// Config is the user-facing compression selection.
type Config struct {
	Enabled            bool      `yaml:"enabled" json:"enabled"`
	Algorithm          Algorithm `yaml:"algorithm" json:"algorithm"`
	PreserveDictionary bool      `yaml:"preserve_dictionary" json:"preserve_dictionary"`
}

// DefaultConfig returns an uncompressed selection that preserves dictionary
// ids across batches.
func DefaultConfig() Config {
	return Config{
		Enabled:            false,
		Algorithm:          None,
		PreserveDictionary: true,
	}
}

// WithLZ4 returns an enabled LZ4 selection.
func WithLZ4() Config {
	return Config{Enabled: true, Algorithm: LZ4, PreserveDictionary: true}
}

// WithZstd returns an enabled ZSTD selection.
func WithZstd() Config {
	return Config{Enabled: true, Algorithm: ZSTD, PreserveDictionary: true}
}

// WriteOptions are the engine-facing options derived from a Config.
type WriteOptions struct {
	Codec              Algorithm
	PreserveDictionary bool
}

// Compressed reports whether the options request a codec.
func (o WriteOptions) Compressed() bool {
	return o.Codec != "" && o.Codec != None
}

// ToEngineOptions converts the selection into writer options after checking
// it against caps. The supported list is queried on every call.
func (c Config) ToEngineOptions(caps Capabilities) (WriteOptions, error) {
	if !c.Enabled || c.Algorithm == None || c.Algorithm == "" {
		return WriteOptions{Codec: None, PreserveDictionary: c.PreserveDictionary}, nil
	}

	alg, err := ParseAlgorithm(string(c.Algorithm))
	if err != nil {
		return WriteOptions{}, errors.Validation("%s", err.Error()).
			WithDetail("supported", fmt.Sprint(supportedNames(caps)))
	}

	supported := supportedNames(caps)
	for _, s := range supported {
		if s == alg {
			return WriteOptions{Codec: alg, PreserveDictionary: c.PreserveDictionary}, nil
		}
	}
	return WriteOptions{}, errors.Validation(
		"compression algorithm %q is not available in this build; supported: %v", string(alg), supported)
}

// Validate checks that the algorithm name is recognized. Availability is
// only known to an engine, see ToEngineOptions.
func (c Config) Validate() error {
	if _, err := ParseAlgorithm(string(c.Algorithm)); err != nil {
		return errors.Validation("%s", err.Error())
	}
	return nil
}

func supportedNames(caps Capabilities) []Algorithm {
	if caps == nil {
		return []Algorithm{None}
	}
	return caps.SupportedCompressions()
}
