package responder

import (
	"fmt"
	"strings"

	"github.com/prepnest/interview-gateway/internal/store"
)

// GreetingTrigger is the synthetic utterance that opens an interview. It is
// never spoken by the candidate; the session sends it with an empty history
// to request the opening greeting.
const GreetingTrigger = "START_INTERVIEW"

const basePrompt = `You are an experienced professional recruiter conducting a job interview. Your role is to:
- Ask relevant, thoughtful questions about the candidate's experience, skills, and qualifications
- Follow up on interesting points the candidate makes
- Be conversational, professional, and encouraging
- Keep your responses brief (2-3 sentences max)
- Ask one question at a time
- Adapt your questions based on what the candidate tells you
- IMPORTANT: Once you learn the candidate's name, use it naturally throughout the conversation to make it more personal and engaging

This is a real-time conversation, so respond naturally as if speaking to the candidate.`

// buildSystemPrompt assembles the recruiter system prompt from the interview
// context, attaching the resume when one is on file and the greeting
// instructions when the session is opening.
func buildSystemPrompt(interview *store.InterviewContext, isGreeting bool) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	if interview != nil {
		fmt.Fprintf(&b, "\n\nINTERVIEW CONTEXT:\n- Position: %s at %s", interview.JobTitle, interview.CompanyName)
		if interview.YearsOfExperience > 0 {
			fmt.Fprintf(&b, "\n- Required Experience: %d years", interview.YearsOfExperience)
		}
		if interview.JobDescription != "" {
			fmt.Fprintf(&b, "\n- Job Description: %s", interview.JobDescription)
		}
		fmt.Fprintf(&b, "\n\nTailor your questions to assess the candidate's fit for this specific %s role at %s. Focus on skills and experiences relevant to this position.",
			interview.JobTitle, interview.CompanyName)

		if interview.ResumeText != "" {
			fmt.Fprintf(&b, "\n\nCANDIDATE RESUME:\n%s", interview.ResumeText)
		}
	}

	if isGreeting {
		position := "the position"
		if interview != nil && interview.JobTitle != "" {
			position = interview.JobTitle
		}
		fmt.Fprintf(&b, `

IMPORTANT: This is the START of the interview. Generate a warm, professional opening greeting that:
1. Welcomes the candidate
2. Mentions the position they're interviewing for (%s)
3. ASK FOR THEIR NAME FIRST - This is critical. Start by asking "What's your name?" or "Could you tell me your name?"
4. Keep it brief (2 sentences max) and friendly

Do NOT ask any other questions yet - just welcome them and ask for their name.`, position)
	}

	return b.String()
}
