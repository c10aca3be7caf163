package generator

import (
	"context"
	"fmt"
)

// Fallback returns fixed texts embedding the case number
type Fallback struct{}

func (Fallback) Name() string {
	return "fallback"
}

func (Fallback) DraftChecklist(_ context.Context, facts Facts) string {
	return FallbackChecklist(facts.CaseNumber)
}

func (Fallback) DraftReply(_ context.Context, facts Facts) string {
	return FallbackReply(facts.CaseNumber)
}

func (Fallback) DraftFollowUp(_ context.Context, facts Facts) string {
	return FallbackFollowUp(facts.CaseNumber)
}

func FallbackChecklist(caseNumber string) string {
	return fmt.Sprintf("Engine Inspection Checklist - Case %s\n\n"+
		"1. Ensure engine is shut down and cool\n"+
		"2. Check for visible damage\n"+
		"3. Inspect fluid levels\n"+
		"4. Document all findings\n"+
		"5. Contact certified marine technician if issues persist", caseNumber)
}

func FallbackReply(caseNumber string) string {
	return fmt.Sprintf("Thank you for your inquiry regarding the engine issue. "+
		"We have received your message and assigned case number %s. "+
		"Please find the attached checklist for immediate inspection steps.", caseNumber)
}

func FallbackFollowUp(caseNumber string) string {
	return fmt.Sprintf("Following up on case %s. "+
		"We hope the inspection checklist has been helpful. "+
		"Please let us know if you need additional assistance.", caseNumber)
}
