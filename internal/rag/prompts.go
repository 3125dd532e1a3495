package rag

import (
	"fmt"
	"strings"
)

const (
	// RefusalAnswer is returned when the context does not contain the answer.
	RefusalAnswer = "I cannot find the answer in this paper."
	// FallbackAnswer is returned when the model could not produce an answer.
	FallbackAnswer = "I'm sorry, I couldn't generate an answer right now. Please try again."
)

const answerSystemPrompt = `You are a highly knowledgeable research assistant. Your job is to answer the user's
question using ONLY the information found in the retrieved context from the research paper.

Follow these rules strictly:

1. If the answer IS found in the context, provide a clear, concise explanation.
2. If the answer is NOT found in the context, reply exactly with:
   "` + RefusalAnswer + `"
3. Do NOT use outside knowledge.
4. Use the conversation history only to maintain continuity, not to add new facts.
5. Avoid hallucination at all costs.`

const feedbackTemplate = `Reviewer feedback on your previous answer:
%s

Your previous answer was rejected for the reason above. Write a new answer that corrects
this problem. Only state what the retrieved context supports.`

const evaluatorPrompt = `You are a strict QA evaluator for a RAG system.

IMPORTANT: Limit your reasoning to 1000 words.

Analyze the following components:
1. User Question: %s
2. Retrieved Context: %s
3. System Answer: %s

Step 1: Assess Relevance. Does the System Answer directly address the User Question?
NOTE: If the system answers "I cannot find the answer" and the context truly lacks the
information, mark relevance as true.

Step 2: Assess Faithfulness. Is every claim in the System Answer supported by the
Retrieved Context? If the answer contains information NOT present in the context, it is
NOT faithful.

Respond with a single JSON object and nothing else:
{"is_relevant": true|false, "is_faithful": true|false, "reasoning": "<short explanation>"}`

const summaryPrompt = `You are an expert academic researcher. Your task is to read the provided research paper
content and generate a structured summary following the required format.

Strictly follow this structure:

1. **Title & Authors / Abstract**
   - Extract the paper title.
   - Extract the author(s).
   - Provide a clear and concise abstract-style summary.

2. **Problem Statement**
   - Identify the main research problem or gap the authors aim to address.
   - State it clearly in 2 to 4 sentences.

3. **Methodology**
   - Describe the methods, techniques, models, datasets, or experiments used.
   - Keep it concise but informative.

4. **Key Results**
   - Highlight the major findings or outcomes of the study.
   - Mention specific performance metrics or results if present.

5. **Conclusion**
   - Summarize the authors' final insights, implications, or next steps.

--------------------------
### Research Paper Text:
%s`

// answerUserPrompt lays out context, history and question for the generator.
func answerUserPrompt(context, history, question string) string {
	var b strings.Builder
	b.WriteString("-----------------------------\nRetrieved Context:\n")
	b.WriteString(context)
	b.WriteString("\n\nConversation History:\n")
	b.WriteString(history)
	b.WriteString("\n\nUser Question:\n")
	b.WriteString(question)
	b.WriteString("\n-----------------------------\n")
	b.WriteString("Provide the best possible answer based ONLY on the context above.")
	return b.String()
}

func feedbackBlock(feedback string) string {
	return fmt.Sprintf(feedbackTemplate, feedback)
}

// formatHistory renders the last turns messages as "role: content" lines.
func formatHistory(history []HistoryMessage, turns int) string {
	if turns <= 0 {
		return ""
	}
	if len(history) > turns {
		history = history[len(history)-turns:]
	}
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, m.Role+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}
