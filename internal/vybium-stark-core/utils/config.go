package utils

import (
	"fmt"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
)

// Backend selects the transform implementation used for interpolation
// and low-degree extension.
type Backend string

const (
	// BackendSequential runs every column transform on the calling goroutine
	BackendSequential Backend = "sequential"

	// BackendParallel splits butterfly stages across worker goroutines
	BackendParallel Backend = "parallel"
)

// Config holds the proving parameters shared by every phase of the pipeline
type Config struct {
	// ExpansionFactor is the blowup from trace domain to LDE codeword
	// length. Must be a power of 2, at least 4, and larger than the
	// maximum constraint degree of the table set.
	ExpansionFactor int

	// NumQueries is the number of codeword positions opened for the verifier
	NumQueries int

	// SecurityLevel is the targeted bits of security (informational; used
	// to sanity-check NumQueries against ExpansionFactor)
	SecurityLevel int

	// NumRandomizerColumns is the number of pure-randomness columns
	// committed alongside the base trace so that opened rows leak nothing
	// about the execution
	NumRandomizerColumns int

	// CosetOffset shifts the LDE evaluation domain off the trace domain
	CosetOffset field.Element

	// Backend selects the transform implementation
	Backend Backend
}

// DefaultConfig returns the parameters used by the CLI and examples
func DefaultConfig() *Config {
	return &Config{
		ExpansionFactor:      16,
		NumQueries:           32,
		SecurityLevel:        64,
		NumRandomizerColumns: 2,
		CosetOffset:          field.New(7),
		Backend:              BackendParallel,
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !IsPowerOfTwo(c.ExpansionFactor) || c.ExpansionFactor < 4 {
		return fmt.Errorf("expansion factor must be a power of 2 and at least 4, got %d", c.ExpansionFactor)
	}

	if c.NumQueries <= 0 {
		return fmt.Errorf("number of queries must be positive, got %d", c.NumQueries)
	}

	if c.SecurityLevel <= 0 {
		return fmt.Errorf("security level must be positive, got %d", c.SecurityLevel)
	}

	if c.NumRandomizerColumns < 0 {
		return fmt.Errorf("randomizer column count cannot be negative, got %d", c.NumRandomizerColumns)
	}

	if c.CosetOffset.IsZero() {
		return fmt.Errorf("coset offset must be non-zero")
	}

	switch c.Backend {
	case BackendSequential, BackendParallel:
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}

	return nil
}
