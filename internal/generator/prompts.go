package generator

import (
	"fmt"
	"strings"
)

type prompt struct {
	kind        string
	system      string
	user        string
	maxTokens   int
	temperature float64
}

func checklistPrompt(f Facts) prompt {
	return prompt{
		kind:   "checklist",
		system: "You are a maritime engineer creating safety checklists for vessel engine inspections. Be thorough and prioritize safety.",
		user: fmt.Sprintf(`Generate a comprehensive engine inspection checklist based on the following details:

- Issue keywords: %s
- Subject: %s
- Case: %s

Create a detailed, step-by-step checklist that covers:
1. Safety precautions
2. Visual inspection steps
3. Operational checks
4. Documentation requirements
5. When to contact professionals

Format as a clear, numbered checklist that can be printed and used in the field.`,
			strings.Join(f.Keywords, ", "), f.Subject, f.CaseNumber),
		maxTokens:   1000,
		temperature: 0.3,
	}
}

func replyPrompt(f Facts) prompt {
	return prompt{
		kind:   "reply",
		system: "You are a professional maritime safety expert specializing in vessel engine issues. Generate helpful, actionable email responses.",
		user: fmt.Sprintf(`Generate a professional, empathetic email response for a vessel engine-related inquiry.

Original Email Details:
- Subject: %s
- From: %s
- Keywords detected: %s
- Original message: %s

Guidelines:
1. Be professional and understanding
2. Acknowledge the urgency of engine issues
3. Reference the attached engine inspection checklist
4. Encourage following the checklist step by step
5. Mention that a follow-up will be sent in 2 hours
6. Include the case number: %s
7. Use HTML formatting for better readability

Generate a complete email response in HTML format.`,
			f.Subject, f.Sender, strings.Join(f.Keywords, ", "), f.Body, f.CaseNumber),
		maxTokens:   800,
		temperature: 0.7,
	}
}

func followUpPrompt(f Facts) prompt {
	return prompt{
		kind:   "follow_up",
		system: "You are following up on a vessel engine issue to ensure the customer has the support they need.",
		user: fmt.Sprintf(`Generate a follow-up email for case %s about %s.

This is a 2-hour follow-up to check on progress and offer additional assistance.

Guidelines:
1. Ask about progress on the checklist
2. Offer additional support
3. Be professional and caring
4. Include case number
5. Use HTML formatting

Keep it concise but helpful.`, f.CaseNumber, f.Subject),
		maxTokens:   400,
		temperature: 0.7,
	}
}
