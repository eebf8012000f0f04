package cmd

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"merklepool/internal/merkle"
)

// merkle-root builds the prize commitment off-system: the chain only ever
// consumes the root and per-leaf proofs this command emits.
func newMerkleRootCmd() *cobra.Command {
	var withProofs bool

	cmd := &cobra.Command{
		Use:   "merkle-root <entries.json>",
		Short: "Build a prize commitment tree from an allocation file",
		Long: `Reads a JSON array of {"identity": ..., "amount": ...} allocations,
builds the commitment tree and prints its root. With --proofs, also prints
one membership proof per allocation, ready to submit with pool/claim_prize.`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read entries: %w", err)
			}
			var entries []merkle.Entry
			if err := json.Unmarshal(b, &entries); err != nil {
				return fmt.Errorf("decode entries: %w", err)
			}

			tree, err := merkle.NewTree(entries)
			if err != nil {
				return fmt.Errorf("build tree: %w", err)
			}

			type proofOut struct {
				Identity string   `json:"identity"`
				Amount   uint64   `json:"amount"`
				Proof    []string `json:"proof"`
			}
			out := struct {
				Root   string     `json:"root"`
				Leaves int        `json:"leaves"`
				Proofs []proofOut `json:"proofs,omitempty"`
			}{
				Root:   tree.Root().String(),
				Leaves: tree.Len(),
			}

			if withProofs {
				for _, e := range entries {
					proof, err := tree.Proof(e.Identity, e.Amount)
					if err != nil {
						return fmt.Errorf("proof for %s: %w", e.Identity, err)
					}
					hexProof := make([]string, len(proof))
					for i, h := range proof {
						hexProof[i] = hex.EncodeToString(h[:])
					}
					out.Proofs = append(out.Proofs, proofOut{
						Identity: e.Identity,
						Amount:   e.Amount,
						Proof:    hexProof,
					})
				}
			}

			enc, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(enc))
			return nil
		},
	}

	cmd.Flags().BoolVar(&withProofs, "proofs", false, "emit a membership proof per allocation")
	return cmd
}
