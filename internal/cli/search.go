package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"schemeadvisor/internal/logger"
	"schemeadvisor/internal/retriever"
)

func openSession(cmd *cobra.Command, a *app) (*retriever.Session, error) {
	embedder, err := newQueryEmbedder(a.cfg)
	if err != nil {
		return nil, err
	}
	ctx := logger.ContextWith(cmd.Context(), a.log)
	return retriever.Open(ctx, a.cfg, embedder)
}

func newSearchCmd(a *app) *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Retrieve the most relevant passages without answer generation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(cmd, a)
			if err != nil {
				return err
			}
			k := topK
			if k <= 0 {
				k = a.cfg.Retrieval.TopK
			}
			ctx := logger.ContextWith(cmd.Context(), a.log)
			passages, err := session.Retrieve(ctx, strings.Join(args, " "), k)
			if err != nil {
				return err
			}
			if len(passages) == 0 {
				cmd.Println("no results")
				return nil
			}
			for i, p := range passages {
				cmd.Printf("%d. [%s | page %d] score=%.3f\n%s\n\n", i+1, p.FileName, p.Page, p.Score, p.Text)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of passages to return")
	return cmd
}
