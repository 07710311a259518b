package vybiumstarkcore

import (
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"
	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/hash"

	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/protocols"
	"github.com/vybium/vybium-stark-core/internal/vybium-stark-core/utils"
)

// Element is the public type for field elements used throughout the core
type Element = field.Element

// Digest is the public type for commitment digests
type Digest = hash.Digest

// ProofOptions configures the prover. The options are carried inside the
// proof so the verifier reconstructs the same domains and transcripts.
type ProofOptions struct {
	// ExpansionFactor is the blowup from trace length to codeword length
	ExpansionFactor int

	// NumQueries is the number of codeword positions opened per commitment
	NumQueries int

	// SecurityLevel is the targeted bits of security
	SecurityLevel int

	// NumRandomizerColumns is the number of pure-randomness columns
	// committed alongside the trace
	NumRandomizerColumns int

	// Parallel selects the multi-goroutine transform backend
	Parallel bool
}

// DefaultProofOptions returns the options used by the CLI and examples
func DefaultProofOptions() *ProofOptions {
	cfg := utils.DefaultConfig()
	return &ProofOptions{
		ExpansionFactor:      cfg.ExpansionFactor,
		NumQueries:           cfg.NumQueries,
		SecurityLevel:        cfg.SecurityLevel,
		NumRandomizerColumns: cfg.NumRandomizerColumns,
		Parallel:             cfg.Backend == utils.BackendParallel,
	}
}

// config maps the public options onto the internal configuration
func (o *ProofOptions) config() *utils.Config {
	cfg := utils.DefaultConfig()
	cfg.ExpansionFactor = o.ExpansionFactor
	cfg.NumQueries = o.NumQueries
	cfg.SecurityLevel = o.SecurityLevel
	cfg.NumRandomizerColumns = o.NumRandomizerColumns
	cfg.Backend = utils.BackendSequential
	if o.Parallel {
		cfg.Backend = utils.BackendParallel
	}
	return cfg
}

// Claim is the public statement a proof attests to: this program, run on
// this input, produced this output.
type Claim struct {
	// Program is the compiled program memory
	Program []Element

	// Input is the byte sequence consumed by ','
	Input []byte

	// Output is the byte sequence produced by '.'
	Output []byte
}

// TableRecord is the per-table shape carried in the proof header. The
// verifier derives padded heights and padding counts from it.
type TableRecord struct {
	Name string

	// Len is the number of rows the table filled during execution
	Len int
}

// Proof is everything the verifier consumes besides the claim
type Proof struct {
	Options ProofOptions

	// Meta is the public metadata bound into the trace commitment
	Meta []byte

	// TraceLen is the padded trace domain length
	TraceLen int

	Tables []TableRecord

	BaseRoot        Digest
	ExtensionRoot   Digest
	HasExtension    bool
	CompositionRoot Digest

	// Terminals are the claimed running-argument terminal values
	Terminals []Element

	// OodRows and OodNextRows are the per-table trace rows evaluated out
	// of domain; OodCompositionValue is the composition polynomial there
	OodRows             [][]Element
	OodNextRows         [][]Element
	OodCompositionValue Element

	Queries *protocols.Queries
}
