// Command vybium-stark-prover proves and verifies brainfuck program
// executions from the command line.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vybium/vybium-crypto/pkg/vybium-crypto/field"

	vybiumstarkcore "github.com/vybium/vybium-stark-core/pkg/vybium-stark-core"
)

var (
	flagInput      string
	flagProofPath  string
	flagClaimPath  string
	flagQueries    int
	flagExpansion  int
	flagSequential bool
	flagVerbose    bool
)

func main() {
	root := &cobra.Command{
		Use:   "vybium-stark-prover",
		Short: "Prove and verify brainfuck program executions",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetLevel(log.InfoLevel)
			if flagVerbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	prove := &cobra.Command{
		Use:   "prove <program.bf>",
		Short: "Run a program and produce an execution proof",
		Args:  cobra.ExactArgs(1),
		RunE:  runProve,
	}
	prove.Flags().StringVarP(&flagInput, "input", "i", "", "bytes fed to ',' instructions")
	prove.Flags().StringVarP(&flagProofPath, "proof", "p", "proof.bin", "where to write the proof")
	prove.Flags().StringVarP(&flagClaimPath, "claim", "c", "claim.json", "where to write the claim")
	prove.Flags().IntVar(&flagQueries, "queries", 0, "override the number of query openings")
	prove.Flags().IntVar(&flagExpansion, "expansion", 0, "override the codeword expansion factor")
	prove.Flags().BoolVar(&flagSequential, "sequential", false, "disable the parallel transform backend")

	verify := &cobra.Command{
		Use:   "verify",
		Short: "Verify a proof against its claim",
		Args:  cobra.NoArgs,
		RunE:  runVerify,
	}
	verify.Flags().StringVarP(&flagProofPath, "proof", "p", "proof.bin", "proof to verify")
	verify.Flags().StringVarP(&flagClaimPath, "claim", "c", "claim.json", "claim the proof attests to")

	root.AddCommand(prove, verify)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// claimFile is the on-disk claim representation
type claimFile struct {
	Program []uint64 `json:"program"`
	Input   []byte   `json:"input"`
	Output  []byte   `json:"output"`
}

func runProve(cmd *cobra.Command, args []string) error {
	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading program: %w", err)
	}

	options := vybiumstarkcore.DefaultProofOptions()
	if flagQueries > 0 {
		options.NumQueries = flagQueries
	}
	if flagExpansion > 0 {
		options.ExpansionFactor = flagExpansion
	}
	options.Parallel = !flagSequential

	prover := vybiumstarkcore.NewProver(options)
	proof, claim, err := prover.Prove(string(source), []byte(flagInput))
	if err != nil {
		return err
	}

	if len(claim.Output) > 0 {
		fmt.Printf("program output: %q\n", string(claim.Output))
	}

	data, err := proof.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encoding proof: %w", err)
	}
	if err := os.WriteFile(flagProofPath, data, 0o644); err != nil {
		return fmt.Errorf("writing proof: %w", err)
	}

	cf := claimFile{Input: claim.Input, Output: claim.Output}
	for _, e := range claim.Program {
		cf.Program = append(cf.Program, e.Value())
	}
	claimData, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding claim: %w", err)
	}
	if err := os.WriteFile(flagClaimPath, claimData, 0o644); err != nil {
		return fmt.Errorf("writing claim: %w", err)
	}

	log.WithFields(log.Fields{
		"proof": flagProofPath,
		"claim": flagClaimPath,
		"size":  humanize.Bytes(uint64(len(data))),
	}).Info("proof written")
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(flagProofPath)
	if err != nil {
		return fmt.Errorf("reading proof: %w", err)
	}
	var proof vybiumstarkcore.Proof
	if err := proof.UnmarshalBinary(data); err != nil {
		return err
	}

	claimData, err := os.ReadFile(flagClaimPath)
	if err != nil {
		return fmt.Errorf("reading claim: %w", err)
	}
	var cf claimFile
	if err := json.Unmarshal(claimData, &cf); err != nil {
		return fmt.Errorf("decoding claim: %w", err)
	}
	claim := &vybiumstarkcore.Claim{Input: cf.Input, Output: cf.Output}
	for _, v := range cf.Program {
		if v >= field.P {
			return fmt.Errorf("program cell %d out of field range", v)
		}
		claim.Program = append(claim.Program, field.New(v))
	}

	if err := vybiumstarkcore.NewVerifier().Verify(&proof, claim); err != nil {
		return err
	}
	fmt.Println("proof accepted")
	return nil
}
