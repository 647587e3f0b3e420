package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync/atomic"

	"github.com/pelletier/go-toml/v2"

	"github.com/smazurov/loopcast/internal/ffmpeg"
)

// LoadEncodingDefaults reads the [encoding] table of a TOML config file on top
// of ffmpeg.DefaultParams. Keys missing from the table keep their built-in
// value; a missing file yields the built-in defaults.
func LoadEncodingDefaults(path string) (ffmpeg.EncodingParams, error) {
	defaults := ffmpeg.DefaultParams()
	if path == "" {
		return defaults, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return defaults, nil
	}
	if err != nil {
		return defaults, fmt.Errorf("failed to read config: %w", err)
	}

	raw := struct {
		Encoding ffmpeg.EncodingParams `toml:"encoding"`
	}{Encoding: defaults}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return defaults, fmt.Errorf("failed to parse [encoding]: %w", err)
	}
	if err := raw.Encoding.Validate(); err != nil {
		return defaults, fmt.Errorf("invalid [encoding]: %w", err)
	}
	return raw.Encoding, nil
}

// EncodingStore holds the encoding defaults applied to newly started
// sessions. Safe for concurrent use.
type EncodingStore struct {
	current atomic.Pointer[ffmpeg.EncodingParams]
}

// NewEncodingStore creates a store seeded with params.
func NewEncodingStore(params ffmpeg.EncodingParams) *EncodingStore {
	s := &EncodingStore{}
	s.Set(params)
	return s
}

// Get returns a copy of the current defaults.
func (s *EncodingStore) Get() ffmpeg.EncodingParams {
	return *s.current.Load()
}

// Set replaces the defaults.
func (s *EncodingStore) Set(params ffmpeg.EncodingParams) {
	s.current.Store(&params)
}
