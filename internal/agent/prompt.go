package agent

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/sells-group/apply-cli/internal/profile"
)

// Prompt modes.
const (
	ModeApplication = "application"
	ModeNavigation  = "navigation"
)

// ReportBlockerTool is the built-in tool the model calls when it cannot go on
// without the operator.
const ReportBlockerTool = "report_blocker"

// navigationPrompt is used for plain browsing requests.
const navigationPrompt = `You are a browser automation assistant. Navigate to URLs, search for information, and interact with web pages as requested by the user. Be precise and confirm actions.`

// applicationRules is the fixed part of the application prompt.
const applicationRules = `## Core Responsibilities

1. Navigate to application pages: open the job URL and find the application form.
2. Fill forms accurately: detect text inputs, dropdowns, checkboxes, radio buttons and file uploads, map each field to the applicant data, and handle label variations ("First Name" vs "Given Name").
3. Handle different platforms: Greenhouse, Lever, Workday, LinkedIn Easy Apply, Taleo, iCIMS and custom company portals.
4. Upload documents: the resume from the resume path, a cover letter only if required. Respect file type restrictions.
5. Answer screening questions truthfully from the applicant data. Keep open-ended answers concise and relevant.
6. Before submitting, summarize what will be submitted. After submitting, confirm success.

## Field Mapping Guidelines
- Diversity questions are usually optional: skip them or choose "Prefer not to answer".
- If work authorization or salary is asked and not covered by the applicant data, stop and report it.

## Best Practices
- Take a snapshot before acting and verify field labels before filling.
- Scroll to elements before clicking. Confirm file uploads succeeded.
- If an element is not found, try an alternative reference once before giving up.
- If the page does not load, wait and retry.
- Never share applicant data outside the application form.

## Blockers
Call the ` + ReportBlockerTool + ` tool instead of continuing when:
- a CAPTCHA is shown (category "captcha")
- a login wall or "Session expired" page appears (category "authentication")
- a validation error persists that you cannot fix from the applicant data (category "form_validation", name the field)
- a required element cannot be found after retrying (category "element_not_found")

## Error Messages to Watch For
- "This field is required"
- "Invalid email format"
- "File size too large"
- "Unsupported file type"
- "Please complete CAPTCHA"
- "Session expired"

## Success Indicators
- "Application submitted successfully"
- "Thank you for applying"
- "We've received your application"
- A confirmation email is mentioned or the page redirects to a confirmation page

When the application is submitted, reply with a short summary and no tool call.`

// SystemPrompt renders the system prompt for mode. Unknown modes fall back to
// the application prompt; a nil profile renders "Not provided" everywhere.
func SystemPrompt(mode string, p *profile.Profile) string {
	if mode == ModeNavigation {
		return navigationPrompt
	}
	if p == nil {
		p = &profile.Profile{}
	}

	var sb strings.Builder
	sb.WriteString("You are an expert job application automation assistant. You apply to jobs for the applicant below using browser automation tools.\n\n")

	sb.WriteString("## Applicant\n")
	writeField(&sb, "Name", p.FullName())
	writeField(&sb, "Email", p.Email)
	writeField(&sb, "Phone", p.Phone)
	writeField(&sb, "LinkedIn", p.LinkedInURL)
	writeField(&sb, "GitHub", p.GitHubURL)
	writeField(&sb, "Portfolio", p.PortfolioURL)
	writeField(&sb, "Website", p.WebsiteURL)
	writeField(&sb, "Location", p.Location)
	writeField(&sb, "Resume Path", p.ResumePath)
	if p.CoverLetterPath != "" {
		writeField(&sb, "Cover Letter Path", p.CoverLetterPath)
	}
	sb.WriteString(fmt.Sprintf("- Willing to relocate: %t\n", p.WillingToRelocate))
	sb.WriteString(fmt.Sprintf("- Requires sponsorship: %t\n", p.RequiresSponsorship))
	if p.YearsOfExperience > 0 {
		sb.WriteString(fmt.Sprintf("- Years of experience: %g\n", p.YearsOfExperience))
	}
	if p.NoticePeriod != "" {
		writeField(&sb, "Notice period", p.NoticePeriod)
	}
	if p.SalaryMin != "" || p.SalaryMax != "" {
		sb.WriteString(fmt.Sprintf("- Salary expectation: %s-%s %s\n", p.SalaryMin, p.SalaryMax, p.SalaryCurrency))
	}

	if p.ExperienceSummary != "" {
		sb.WriteString("\n## Experience Summary\n")
		sb.WriteString(p.ExperienceSummary)
		sb.WriteString("\n")
	}

	if len(p.WorkExperience) > 0 {
		sb.WriteString("\n## Work Experience\n")
		for _, w := range p.WorkExperience {
			sb.WriteString(fmt.Sprintf("- %s at %s (%s)\n", w.Title, w.Company, w.Duration))
		}
	}

	if len(p.Education) > 0 {
		sb.WriteString("\n## Education\n")
		for _, e := range p.Education {
			sb.WriteString(fmt.Sprintf("- %s, %s %s\n", e.Degree, e.University, e.GraduationYear))
		}
	}

	if len(p.Skills) > 0 {
		sb.WriteString("\n## Skills\n")
		sb.WriteString(strings.Join(p.Skills, ", "))
		sb.WriteString("\n")
	}

	if len(p.ScreeningAnswers) > 0 {
		sb.WriteString("\n## Screening Answers\n")
		keys := make([]string, 0, len(p.ScreeningAnswers))
		for k := range p.ScreeningAnswers {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			v, _ := json.Marshal(p.ScreeningAnswers[k])
			sb.WriteString(fmt.Sprintf("- %s: %s\n", k, v))
		}
	}

	sb.WriteString("\n## Field Mapping\n")
	sb.WriteString(fmt.Sprintf("- \"First Name\", \"Given Name\", \"Legal First Name\" -> %s\n", orNotProvided(p.FirstName)))
	sb.WriteString(fmt.Sprintf("- \"Last Name\", \"Surname\", \"Family Name\" -> %s\n", orNotProvided(p.LastName)))
	sb.WriteString(fmt.Sprintf("- \"Email\", \"Email Address\", \"Work Email\" -> %s\n", orNotProvided(p.Email)))
	sb.WriteString(fmt.Sprintf("- \"Phone\", \"Mobile\", \"Contact Number\" -> %s\n", orNotProvided(p.Phone)))
	sb.WriteString(fmt.Sprintf("- \"City\", \"Location\", \"Current Location\" -> %s\n", orNotProvided(p.Location)))

	sb.WriteString("\n")
	sb.WriteString(applicationRules)
	return sb.String()
}

func writeField(sb *strings.Builder, label, value string) {
	sb.WriteString(fmt.Sprintf("- %s: %s\n", label, orNotProvided(value)))
}

func orNotProvided(v string) string {
	if strings.TrimSpace(v) == "" {
		return "Not provided"
	}
	return v
}
