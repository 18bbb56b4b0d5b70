package extraction

import (
	"fmt"

	"github.com/openedx/edxoffline/internal/infra/logger"
)

type Options struct {
	// UseSystemUnzip prefers the unzip binary when it is on PATH
	UseSystemUnzip bool
}

// Manager handles multiple extractors and determines which to use
type Manager struct {
	extractors []Extractor
}

// NewManager creates a new extraction manager and initilizes available extractors
func NewManager(opts Options, log *logger.Logger) *Manager {
	m := &Manager{
		extractors: make([]Extractor, 0, 2),
	}

	// If the binary isn't available, fall through to the native extractor
	if opts.UseSystemUnzip {
		if unzip, err := NewCLIUnzip(); err == nil {
			m.extractors = append(m.extractors, unzip)
		} else if log != nil {
			log.Warn("System unzip requested but unavailable, using native ZIP: %v", err)
		}
	}

	m.extractors = append(m.extractors, NewNativeZip())
	return m
}

// NewManagerWith builds a manager over an explicit extractor list.
func NewManagerWith(extractors ...Extractor) *Manager {
	return &Manager{extractors: extractors}
}

// AvailableExtractors returns the names of available extractors
func (m *Manager) AvailableExtractors() []string {
	names := make([]string, len(m.extractors))
	for i, ext := range m.extractors {
		names[i] = ext.Name()
	}
	return names
}

// Detect returns the first extractor that can handle path.
func (m *Manager) Detect(path string) (Extractor, error) {
	for _, extractor := range m.extractors {
		canExtract, err := extractor.CanExtract(path)
		if err != nil {
			return nil, fmt.Errorf("error checking if %s can extract %s: %w", extractor.Name(), path, err)
		}
		if canExtract {
			return extractor, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoExtractor, path)
}
