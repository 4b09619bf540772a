package service

import (
	"fmt"
	"strings"

	"librag/internal/domain"
)

// NoReasoning is the reasoning segment when the completion carries none.
const NoReasoning = "No thinking trace available."

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

const instructions = `Instructions:
- You are a library assistant. Answer the query concisely and accurately based only on the provided context.
- A book with copies greater than 0 is available. Always state the exact number of copies available.
- If the query asks about a specific book ID, use the 'Book ID' field in the context to identify the correct book.
- For general queries (e.g., 'available books'), list relevant books with their titles, authors, and available copies.
- For transaction queries, summarize relevant transaction details (e.g., who borrowed, when).
- Use insights to provide additional value, such as trends or recommendations.
- Format the response clearly with bullet points or paragraphs for readability.
- If no relevant information is found, say so politely.
`

// BuildPrompt embeds the context verbatim ahead of the query and the fixed
// instruction block.
func BuildPrompt(query, contextText string) string {
	return fmt.Sprintf("Context:\n%s\n\nQuery: %s\n\n%s", contextText, query, instructions)
}

// SplitReasoning separates a <think>...</think> segment from the answer.
// Without the closing marker the whole completion is the answer.
func SplitReasoning(raw string) domain.Answer {
	ans := domain.Answer{Reasoning: NoReasoning, Answer: raw, Raw: raw}
	end := strings.LastIndex(raw, thinkClose)
	if end < 0 {
		return ans
	}
	ans.Answer = strings.TrimSpace(raw[end+len(thinkClose):])
	if start := strings.Index(raw, thinkOpen); start >= 0 && start < end {
		ans.Reasoning = strings.TrimSpace(raw[start+len(thinkOpen) : end])
	}
	return ans
}
