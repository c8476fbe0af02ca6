package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarize_PicksDominantTopic(t *testing.T) {
	s := NewFrequencySummarizer()
	text := "The scholarship pays tuition fees for students. " +
		"Scholarship applications for the scholarship need income proof from students. " +
		"The weather was pleasant that afternoon."

	out := s.Summarize(text, 1)
	assert.Contains(t, out, "scholarship")
	assert.NotContains(t, out, "weather")
}

func TestSummarize_RespectsSentenceLimit(t *testing.T) {
	s := NewFrequencySummarizer()
	text := "One sentence. Two sentence. Three sentence. Four sentence. Five sentence. Six sentence."
	out := s.Summarize(text, 2)
	assert.Equal(t, 2, strings.Count(out, "."))
}

func TestSummarize_KeepsOriginalOrder(t *testing.T) {
	s := NewFrequencySummarizer()
	text := "Alpha rules apply first here. Some filler words only once. Alpha rules apply again later."
	out := s.Summarize(text, 2)
	first := strings.Index(out, "first")
	later := strings.Index(out, "later")
	assert.GreaterOrEqual(t, first, 0)
	assert.Greater(t, later, first)
}

func TestSummarize_NoSentenceTerminators(t *testing.T) {
	s := NewFrequencySummarizer()
	out := s.Summarize("  just a fragment without punctuation  ", 3)
	assert.Equal(t, "just a fragment without punctuation", out)
}

func TestSummarize_ZeroMaxUsesDefault(t *testing.T) {
	s := NewFrequencySummarizer()
	text := "A. B. C. D. E. F. G."
	out := s.Summarize(text, 0)
	assert.Equal(t, 5, strings.Count(out, "."))
}
