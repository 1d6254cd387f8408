package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mithrel/cigmint/internal/present"
	"github.com/mithrel/cigmint/internal/remote"
	"github.com/mithrel/cigmint/pkg/api"
)

type mintFlags struct {
	run        string
	edition    int
	dna        string
	to         string
	collection string
}

func (f *mintFlags) bind(cmd *cobra.Command, single bool) {
	cmd.Flags().StringVar(&f.run, "run", "", "run id whose editions are minted")
	if single {
		cmd.Flags().IntVar(&f.edition, "edition", 1, "edition index within the run")
		cmd.Flags().StringVar(&f.dna, "dna", "", "mint this DNA instead of a run edition")
	}
	cmd.Flags().StringVar(&f.to, "to", "", "owner principal (default: the caller)")
	cmd.Flags().StringVar(&f.collection, "collection", "", "collection the tokens belong to")
	cmd.Flags().String("remote", "", "replica url (default remote.url)")
	addOutputFlags(cmd)
}

func mintRequest(f mintFlags, runID string, e api.Edition) api.MintRequest {
	return api.MintRequest{
		To:         f.to,
		DNA:        e.FilteredDNA,
		Collection: f.collection,
		Metadata: map[string]string{
			"run":     runID,
			"edition": strconv.Itoa(e.Index),
			"digest":  e.Digest,
			"raw_dna": e.DNA,
		},
	}
}

func newMintCmd() *cobra.Command {
	var f mintFlags
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint one edition on the NFT canister",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			opts, err := outputOptions(cmd)
			if err != nil {
				return err
			}

			var req api.MintRequest
			switch {
			case f.dna != "":
				req = api.MintRequest{To: f.to, DNA: f.dna, Collection: f.collection}
			case f.run != "":
				run, err := app.Store.Runs.GetRun(cmd.Context(), f.run)
				if err != nil {
					return fmt.Errorf("run %s: %w", f.run, err)
				}
				if f.edition < 1 || f.edition > len(run.Editions) {
					return fmt.Errorf("run %s has editions 1..%d, got %d", run.ID, len(run.Editions), f.edition)
				}
				req = mintRequest(f, run.ID, run.Editions[f.edition-1])
			default:
				return fmt.Errorf("either --run or --dna is required")
			}

			id, err := authenticate(cmd, app)
			if err != nil {
				return err
			}
			nft := remote.CreateNFTActor(app.Remote, app.Cfg.GetString("canisters.nft"), id)
			tok, err := nft.Mint(cmd.Context(), req)
			if err != nil {
				return err
			}
			return present.RenderTokens(cmd.OutOrStdout(), []api.Token{tok}, opts)
		},
	}
	f.bind(cmd, true)
	return cmd
}

func newBulkMintCmd() *cobra.Command {
	var f mintFlags
	cmd := &cobra.Command{
		Use:   "bulk-mint",
		Short: "Mint every edition of a run in one all-or-nothing call",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := getApp(cmd)
			opts, err := outputOptions(cmd)
			if err != nil {
				return err
			}
			if f.run == "" {
				return fmt.Errorf("--run is required")
			}
			run, err := app.Store.Runs.GetRun(cmd.Context(), f.run)
			if err != nil {
				return fmt.Errorf("run %s: %w", f.run, err)
			}
			reqs := make([]api.MintRequest, 0, len(run.Editions))
			for _, e := range run.Editions {
				reqs = append(reqs, mintRequest(f, run.ID, e))
			}

			id, err := authenticate(cmd, app)
			if err != nil {
				return err
			}
			nft := remote.CreateNFTActor(app.Remote, app.Cfg.GetString("canisters.nft"), id)
			toks, err := nft.BulkMint(cmd.Context(), reqs)
			if err != nil {
				return err
			}
			return withPager(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), func(w io.Writer) error {
				return present.RenderTokens(w, toks, opts)
			})
		},
	}
	f.bind(cmd, false)
	return cmd
}
