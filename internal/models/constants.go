package models

const (
	RefusalPhrase    = "I don't have the necessary information to answer your question."
	ContextSeparator = "\n\n"
)

var (
	// PromptTemplate is rendered with the go-template format of
	// langchaingo prompts; inputs are "context" and "question".
	PromptTemplate = `
CONTEXT:
{{.context}}

RULES:
- Answer only based on the CONTEXT.
- If the information is not explicitly in the CONTEXT, answer:
  "` + RefusalPhrase + `"
- Never make things up or use outside knowledge.
- Never give opinions or interpretations beyond what is written.

EXAMPLES OF OUT-OF-CONTEXT QUESTIONS:
Question: "What is the capital of France?"
Answer: "` + RefusalPhrase + `"

Question: "How many customers do we have in 2024?"
Answer: "` + RefusalPhrase + `"

Question: "Do you think this is good or bad?"
Answer: "` + RefusalPhrase + `"

USER QUESTION:
{{.question}}

ANSWER THE "USER QUESTION"
`
)
