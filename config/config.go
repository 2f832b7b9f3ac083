// Package config holds the small set of knobs an embedding application may
// want to set centrally for the cms package, loaded from a
// YAML document the way the teacher's cmd/config.go is loaded for its
// service binaries (gopkg.in/yaml.v3) -- but consumed here directly by the
// library, not by a CLI or daemon (spec.md's Non-goals exclude the latter,
// not ambient in-process configuration).
package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// StandardRSAKeySizeBits is the RSA modulus size the up-down protocol's
// reference implementations issue EE certificates with.
const StandardRSAKeySizeBits = 2048

// Config carries parser/builder policy knobs. The zero Config is the
// spec-default behavior: non-2048-bit RSA keys warn rather than fail
// (spec.md §9 Open Question 2), and signingTime is not cross-validated
// against the EE certificate's validity window (spec.md §9 Open Question 3).
type Config struct {
	// RejectNonStandardRSAKeySize promotes the default warn-only behavior
	// for non-2048-bit RSA EE keys (spec.md §9) to a hard validation
	// failure when true.
	RejectNonStandardRSAKeySize bool `yaml:"reject_non_standard_rsa_key_size"`

	// CheckSigningTimeAgainstEeValidity additionally validates that the
	// CMS signingTime signed attribute falls within the EE certificate's
	// NotBefore/NotAfter window (spec.md §9 Open Question 3, left optional
	// by the spec). Off by default.
	CheckSigningTimeAgainstEeValidity bool `yaml:"check_signing_time_against_ee_validity"`
}

// Default returns the spec-default Config.
func Default() Config {
	return Config{}
}

// Load parses a YAML document into a Config, starting from Default().
func Load(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing yaml: %w", err)
	}
	return cfg, nil
}
