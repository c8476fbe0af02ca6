package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"schemeadvisor/internal/answer"
	"schemeadvisor/internal/domain"
	"schemeadvisor/internal/logger"
	"schemeadvisor/internal/retriever"
	"schemeadvisor/internal/schemelinks"
)

func newComposer(cmd *cobra.Command, a *app) (*answer.Composer, *retriever.Session, error) {
	session, err := openSession(cmd, a)
	if err != nil {
		return nil, nil, err
	}
	generator, err := newGenerator(a.cfg)
	if err != nil {
		return nil, nil, err
	}
	links, err := schemelinks.Load(a.cfg.Data.LinksPath)
	if err != nil {
		return nil, nil, err
	}
	composer := answer.NewComposer(session, generator, links, answer.Options{
		TopK:     a.cfg.Retrieval.TopK,
		MinScore: *a.cfg.Retrieval.MinScore,
	})
	return composer, session, nil
}

func newAskCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question with evidence citations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			composer, _, err := newComposer(cmd, a)
			if err != nil {
				return err
			}
			ctx := logger.ContextWith(cmd.Context(), a.log)
			ans, err := composer.Answer(ctx, strings.Join(args, " "))
			if err != nil {
				var genErr *domain.GenerationError
				if !errors.As(err, &genErr) {
					return err
				}
				a.log.Warn("generator unavailable", "err", genErr)
			}
			cmd.Println(ans.Text)
			if len(ans.Links) > 0 {
				cmd.Println("\nApply here:")
				for _, sc := range ans.Links {
					cmd.Printf("- %s: %s\n", sc.Name, sc.ApplyLink)
				}
			}
			if !ans.NotFound {
				cmd.Println("\nEvidence:")
				for _, p := range ans.Passages {
					cmd.Printf("- [%s | page %d] score=%.3f\n", p.FileName, p.Page, p.Score)
				}
			}
			return nil
		},
	}
}
