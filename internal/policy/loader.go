package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/crystalclearhouse/mintguard/internal/crypto"
)

// LoadedPolicy pairs a parsed policy with the content hash of the file it
// came from, for change logging.
type LoadedPolicy struct {
	Policy ScanPolicy
	Hash   string
}

// Load reads a YAML scan policy. Fields omitted from the file keep their
// compiled-in defaults, so a file may override just the blocklist.
func Load(path string) (LoadedPolicy, error) {
	// #nosec G304 -- path comes from operator-configured policy path.
	data, err := os.ReadFile(path)
	if err != nil {
		return LoadedPolicy{}, err
	}

	p := Default()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return LoadedPolicy{}, fmt.Errorf("parse scan policy: %w", err)
	}
	if p.MinConfidence < 0 || p.MinConfidence > 100 {
		return LoadedPolicy{}, fmt.Errorf("min_confidence %d out of range 0-100", p.MinConfidence)
	}

	return LoadedPolicy{Policy: p, Hash: crypto.DigestWithPrefix(data)}, nil
}
