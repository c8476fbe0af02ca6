package cli

import (
	"github.com/spf13/cobra"

	"schemeadvisor/internal/chunker"
	"schemeadvisor/internal/extract"
	"schemeadvisor/internal/ingest"
	"schemeadvisor/internal/logger"
)

func newIndexCmd(a *app) *cobra.Command {
	var pdfDir string
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the vector index and metadata store from the PDF corpus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if pdfDir != "" {
				cfg.Data.PDFDir = pdfDir
			}
			ck, err := chunker.NewWindowChunker(cfg.Chunker.Size, *cfg.Chunker.Overlap)
			if err != nil {
				return err
			}
			embedder, err := newBuildEmbedder(cfg)
			if err != nil {
				return err
			}
			writer, err := newIndexWriter(cfg)
			if err != nil {
				return err
			}
			builder := ingest.NewBuilder(extract.NewPDFExtractor(a.log), ck, embedder, writer)
			ctx := logger.ContextWith(cmd.Context(), a.log)
			stats, err := builder.Build(ctx, ingest.Params{
				PDFDir:   cfg.Data.PDFDir,
				IndexDir: cfg.Data.IndexDir,
			})
			if err != nil {
				return err
			}
			cmd.Printf("indexed %d documents (%d skipped), %d chunks, model %s, dim %d\n",
				stats.Documents, stats.Skipped, stats.Chunks, stats.ModelID, stats.Dimension)
			return nil
		},
	}
	cmd.Flags().StringVar(&pdfDir, "pdf-dir", "", "override the PDF corpus directory")
	return cmd
}
