package policy

// ScanPolicy holds the tunable scan thresholds. Values are injected into
// the engine at construction; nothing reads them from process globals.
type ScanPolicy struct {
	// MinConfidence is the fail-closed floor: any analysis below it is
	// reported UNKNOWN regardless of other signals.
	MinConfidence int `yaml:"min_confidence"`

	// Blocklist subjects are reported UNSAFE with full confidence, no
	// matter what the analysis said.
	Blocklist []string `yaml:"blocklist"`
}

// Default returns the compiled-in policy used when no policy file is
// configured.
func Default() ScanPolicy {
	return ScanPolicy{
		MinConfidence: 70,
		Blocklist:     []string{"sus_mint_123"},
	}
}

// Blocked reports whether subject is on the deny list.
func (p ScanPolicy) Blocked(subject string) bool {
	for _, blocked := range p.Blocklist {
		if blocked == subject {
			return true
		}
	}
	return false
}
