// pkg/artifact/artifact.go
package artifact

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadModel reads a frozen model artifact from disk.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadBackground reads the explainer background sample from disk.
func LoadBackground(path string) (*Background, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b Background
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	if err := b.Validate(len(b.FeatureNames)); err != nil {
		return nil, err
	}
	return &b, nil
}

// Validate checks the structural invariants of a model artifact.
func (m *Model) Validate() error {
	if len(m.FeatureNames) == 0 {
		return fmt.Errorf("model artifact %q has no feature names", m.Version)
	}
	if len(m.Coefficients) != len(m.FeatureNames) {
		return fmt.Errorf("model artifact %q: %d coefficients for %d features",
			m.Version, len(m.Coefficients), len(m.FeatureNames))
	}
	return nil
}

// Validate checks that every background row matches the feature width.
func (b *Background) Validate(width int) error {
	if len(b.Rows) == 0 {
		return fmt.Errorf("background sample %q has no rows", b.Version)
	}
	for i, row := range b.Rows {
		if len(row) != width {
			return fmt.Errorf("background sample %q: row %d has %d values, want %d",
				b.Version, i, len(row), width)
		}
	}
	return nil
}
