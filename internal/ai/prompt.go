package ai

import "fmt"

// SystemPrompt returns the system prompt for report summarization.
func SystemPrompt() string {
	return `You are an operations assistant. You receive a report of log lines
already grouped into named categories (for example "Errors" or
"Warnings"), each with a match count and a sample of the most recent
matching lines.

Write a short plain-text summary for a developer reading it in a chat:

1. One sentence on the overall picture (which categories fired, how much).
2. Up to three bullet points on the most notable recurring problems,
   quoting a fragment of a representative line where it helps.
3. One sentence suggesting the most useful next step, if any.

Keep it under 120 words. No markdown headers, no code blocks. Do not
invent details that are not in the report.`
}

// BuildUserPrompt wraps the formatted report for the summarize call.
func BuildUserPrompt(report string) string {
	return fmt.Sprintf("Summarize this categorized log report:\n\n%s", report)
}
