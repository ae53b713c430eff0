package rag

import (
	"fmt"
	"strings"
)

// NoContextAnswer is returned verbatim when retrieval finds nothing for the
// tenant, without calling the generation backend.
const NoContextAnswer = "I don't have enough information to answer this question. Please upload relevant documents first."

// buildContext renders retrieved chunks as numbered blocks, best match first.
func buildContext(texts []string, scores []float64) string {
	var b strings.Builder
	for i, text := range texts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Document %d] (Relevance: %.2f)\n%s", i+1, scores[i], text)
	}
	return b.String()
}

// buildPrompt assembles the generation prompt. The instruction pins the
// model to the provided context so it does not answer from its own
// training data.
func buildPrompt(contextBlock, question string) string {
	return fmt.Sprintf(`You are a helpful assistant answering questions based on the provided documents.

Use ONLY the context below to answer the question. If the context does not contain enough information to answer, say "I don't have enough information to answer this question."

Context:
%s

Question: %s

Answer:`, contextBlock, question)
}
