package models

const (
	// NotFoundAnswer is the sentinel the model is told to return when the
	// context does not contain the answer.
	NotFoundAnswer   = "I cannot find the answer in the provided documents."
	ContextSeparator = "\n\n"
	ThinkTag         = `(?s)<think>.*?</think>`
	PreviewLength    = 100
)

var (
	AnswerPromptTemplate = `You are a helpful document question-answering assistant.

Instructions:
1. Answer the question based ONLY on the provided context
2. Provide clear, well-structured answers
3. If listing items (contacts, requirements, dates), include ALL relevant items from the context
4. Do not include partial lists - if you start a list, complete it
5. Use proper formatting: bullet points for lists, clear sections for different topics
6. If the answer cannot be found in the context, say: "%s"
7. Do not add disclaimers about "limited information" if you can answer from the context
8. Be concise but complete - include all relevant details

Context:
%s

Question: %s

Answer:`

	ContextLabelTemplate = "[Context %d]:\n%s"
)
