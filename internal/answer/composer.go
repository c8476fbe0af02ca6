// Package answer turns retrieved passages into a grounded answer. The
// composer gates on retrieval confidence, prompts the generator with tagged
// evidence, and degrades to an extractive summary when generation fails.
package answer

import (
	"context"
	"strings"

	"schemeadvisor/internal/domain"
	"schemeadvisor/internal/logger"
	"schemeadvisor/internal/schemelinks"
	"schemeadvisor/internal/summarizer"
)

const degradedSentences = 4

// Retriever is the slice of the retrieval session the composer needs.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]domain.Passage, error)
}

// Answer is the composed result shown to the user.
type Answer struct {
	Text     string
	Passages []domain.Passage
	Links    []schemelinks.Scheme
	// NotFound is set when the evidence did not clear the confidence gate
	// or the generator itself declined.
	NotFound bool
	// Degraded is set when Text is an extractive summary produced after a
	// generator failure rather than a generated answer.
	Degraded bool
}

// Composer wires retrieval, generation and link enrichment together.
type Composer struct {
	retriever Retriever
	generator domain.Generator
	links     *schemelinks.Registry
	fallback  *summarizer.FrequencySummarizer
	topK      int
	minScore  float64
}

// Options tunes the composer; zero values fall back to sane defaults.
type Options struct {
	TopK     int
	MinScore float64
}

func NewComposer(r Retriever, g domain.Generator, links *schemelinks.Registry, opts Options) *Composer {
	if opts.TopK <= 0 {
		opts.TopK = 6
	}
	if links == nil {
		links = &schemelinks.Registry{}
	}
	return &Composer{
		retriever: r,
		generator: g,
		links:     links,
		fallback:  summarizer.NewFrequencySummarizer(),
		topK:      opts.TopK,
		minScore:  opts.MinScore,
	}
}

// Answer retrieves evidence for question and composes a grounded reply.
//
// When the best retrieval score is below the confidence threshold, or nothing
// was retrieved at all, the result is NOT FOUND and the generator is never
// called. When the generator fails, the returned Answer still carries the
// evidence plus an extractive summary, together with the GenerationError so
// the caller can surface the degradation.
func (c *Composer) Answer(ctx context.Context, question string) (Answer, error) {
	log := logger.FromContext(ctx)
	passages, err := c.retriever.Retrieve(ctx, question, c.topK)
	if err != nil {
		return Answer{}, err
	}
	if len(passages) == 0 || passages[0].Score < c.minScore {
		best := 0.0
		if len(passages) > 0 {
			best = passages[0].Score
		}
		log.Debug("evidence below threshold", "best_score", best, "min_score", c.minScore)
		return Answer{Text: NotFoundText, Passages: passages, NotFound: true}, nil
	}

	links := c.links.Match(passages)
	text, err := c.generator.Generate(ctx, buildPrompt(question, passages))
	if err != nil {
		genErr := &domain.GenerationError{Model: c.generator.ModelName(), Err: err}
		log.Warn("generation failed, falling back to extractive summary", "err", err)
		return Answer{
			Text:     c.degradedText(passages),
			Passages: passages,
			Links:    links,
			Degraded: true,
		}, genErr
	}
	if strings.TrimSpace(text) == NotFoundText {
		return Answer{Text: NotFoundText, Passages: passages, NotFound: true}, nil
	}
	return Answer{Text: text, Passages: passages, Links: links}, nil
}

func (c *Composer) degradedText(passages []domain.Passage) string {
	var sb strings.Builder
	for i, p := range passages {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(p.Text)
	}
	summary := c.fallback.Summarize(sb.String(), degradedSentences)
	var out strings.Builder
	out.WriteString("Answer generation is unavailable; closest matching evidence:\n\n")
	out.WriteString(summary)
	out.WriteString("\n\nSources: ")
	for i, p := range passages {
		if i > 0 {
			out.WriteString(", ")
		}
		out.WriteString(renderCitation(p.Chunk))
	}
	return out.String()
}
