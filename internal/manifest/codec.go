package manifest

import (
	"encoding/json"

	"github.com/walguard/walguard/internal/common"
)

// Marshal serializes a manifest to its stable UTF-8 JSON wire form.
func Marshal(m *Manifest) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, common.Wrap(common.ErrLogical, "manifest serialize", err)
	}
	return data, nil
}

// Unmarshal parses a manifest from its wire form.
func Unmarshal(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, common.Wrap(common.ErrLogical, "manifest parse", err)
	}
	return &m, nil
}
