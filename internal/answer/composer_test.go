package answer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemeadvisor/internal/domain"
	"schemeadvisor/internal/schemelinks"
)

type stubRetriever struct {
	passages []domain.Passage
	err      error
	gotQuery string
	gotTopK  int
}

func (s *stubRetriever) Retrieve(_ context.Context, query string, topK int) ([]domain.Passage, error) {
	s.gotQuery = query
	s.gotTopK = topK
	return s.passages, s.err
}

type stubGenerator struct {
	reply     string
	err       error
	gotPrompt string
	calls     int
}

func (s *stubGenerator) ModelName() string { return "stub-model" }

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.gotPrompt = prompt
	return s.reply, s.err
}

func passage(score float64, text string) domain.Passage {
	return domain.Passage{
		Chunk: domain.Chunk{
			DocID:    "post_matric_scholarship",
			FileName: "post_matric_scholarship.pdf",
			Page:     3,
			Text:     text,
		},
		Score: score,
	}
}

func TestAnswer_GroundedReply(t *testing.T) {
	retriever := &stubRetriever{passages: []domain.Passage{
		passage(0.81, "Family income must be below Rs. 2,00,000 per year."),
		passage(0.44, "The scholarship covers tuition fees."),
	}}
	generator := &stubGenerator{reply: "1) Post-Matric Scholarship\n2) Eligible"}
	composer := NewComposer(retriever, generator, nil, Options{TopK: 4, MinScore: 0.22})

	ans, err := composer.Answer(context.Background(), "what is the income limit?")
	require.NoError(t, err)
	assert.Equal(t, "1) Post-Matric Scholarship\n2) Eligible", ans.Text)
	assert.False(t, ans.NotFound)
	assert.False(t, ans.Degraded)
	assert.Len(t, ans.Passages, 2)
	assert.Equal(t, 4, retriever.gotTopK)

	// generator only ever sees the retrieved evidence and the question
	assert.Contains(t, generator.gotPrompt, "what is the income limit?")
	assert.Contains(t, generator.gotPrompt, "[post_matric_scholarship.pdf | page 3]")
	assert.Contains(t, generator.gotPrompt, "Family income must be below Rs. 2,00,000 per year.")
	assert.Contains(t, generator.gotPrompt, "Use ONLY the evidence below")
}

func TestAnswer_BelowThresholdSkipsGenerator(t *testing.T) {
	retriever := &stubRetriever{passages: []domain.Passage{passage(0.10, "weak match")}}
	generator := &stubGenerator{reply: "should never be used"}
	composer := NewComposer(retriever, generator, nil, Options{MinScore: 0.22})

	ans, err := composer.Answer(context.Background(), "unrelated question")
	require.NoError(t, err)
	assert.True(t, ans.NotFound)
	assert.Equal(t, NotFoundText, ans.Text)
	assert.Zero(t, generator.calls)
}

func TestAnswer_NoEvidence(t *testing.T) {
	retriever := &stubRetriever{}
	generator := &stubGenerator{}
	composer := NewComposer(retriever, generator, nil, Options{MinScore: 0.22})

	ans, err := composer.Answer(context.Background(), "anything")
	require.NoError(t, err)
	assert.True(t, ans.NotFound)
	assert.Zero(t, generator.calls)
}

func TestAnswer_GeneratorDeclines(t *testing.T) {
	retriever := &stubRetriever{passages: []domain.Passage{passage(0.9, "strong evidence here.")}}
	generator := &stubGenerator{reply: "  NOT FOUND  "}
	composer := NewComposer(retriever, generator, nil, Options{MinScore: 0.22})

	ans, err := composer.Answer(context.Background(), "question")
	require.NoError(t, err)
	assert.True(t, ans.NotFound)
	assert.Equal(t, NotFoundText, ans.Text)
}

func TestAnswer_DegradesOnGeneratorFailure(t *testing.T) {
	retriever := &stubRetriever{passages: []domain.Passage{
		passage(0.9, "The scholarship income limit is Rs. 2,00,000 per year. Other details follow."),
	}}
	generator := &stubGenerator{err: errors.New("api quota exceeded")}
	composer := NewComposer(retriever, generator, nil, Options{MinScore: 0.22})

	ans, err := composer.Answer(context.Background(), "income limit?")
	require.Error(t, err)
	var genErr *domain.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, "stub-model", genErr.Model)

	assert.True(t, ans.Degraded)
	assert.False(t, ans.NotFound)
	assert.Contains(t, ans.Text, "income limit is Rs. 2,00,000")
	assert.Contains(t, ans.Text, "[post_matric_scholarship.pdf | page 3]")
	assert.Len(t, ans.Passages, 1)
}

func TestAnswer_RetrieverErrorPassthrough(t *testing.T) {
	retriever := &stubRetriever{err: domain.ErrInvalidQuery}
	composer := NewComposer(retriever, &stubGenerator{}, nil, Options{})

	_, err := composer.Answer(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)
}

func TestAnswer_MatchesSchemeLinks(t *testing.T) {
	registry := schemelinks.NewRegistry([]schemelinks.Scheme{
		{
			ID:        "pms",
			Name:      "Post-Matric Scholarship",
			ApplyLink: "https://example.gov.in/pms/apply",
			DocIDs:    []string{"post_matric_scholarship"},
		},
		{
			ID:        "oap",
			Name:      "Old Age Pension",
			ApplyLink: "https://example.gov.in/oap/apply",
			DocIDs:    []string{"old_age_pension"},
		},
	})
	retriever := &stubRetriever{passages: []domain.Passage{passage(0.9, "evidence")}}
	generator := &stubGenerator{reply: "grounded answer"}
	composer := NewComposer(retriever, generator, registry, Options{MinScore: 0.22})

	ans, err := composer.Answer(context.Background(), "question")
	require.NoError(t, err)
	require.Len(t, ans.Links, 1)
	assert.Equal(t, "pms", ans.Links[0].ID)
}
