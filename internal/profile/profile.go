// Package profile loads the applicant details the agent uses to fill forms.
package profile

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Placeholder values shipped in the sample profile. They count as missing.
const (
	PlaceholderEmail = "your.email@example.com"
	PlaceholderPhone = "+1-555-010-5555"
)

// Profile is the applicant's personal and professional information.
type Profile struct {
	FirstName string `yaml:"first_name" json:"first_name"`
	LastName  string `yaml:"last_name" json:"last_name"`
	Email     string `yaml:"email" json:"email"`
	Phone     string `yaml:"phone" json:"phone"`

	LinkedInURL  string `yaml:"linkedin_url" json:"linkedin_url,omitempty"`
	GitHubURL    string `yaml:"github_url" json:"github_url,omitempty"`
	PortfolioURL string `yaml:"portfolio_url" json:"portfolio_url,omitempty"`
	WebsiteURL   string `yaml:"website_url" json:"website_url,omitempty"`

	Location            string  `yaml:"location" json:"location"`
	WillingToRelocate   bool    `yaml:"willing_to_relocate" json:"willing_to_relocate"`
	RequiresSponsorship bool    `yaml:"requires_sponsorship" json:"requires_sponsorship"`
	ResumePath          string  `yaml:"resume_path" json:"resume_path"`
	CoverLetterPath     string  `yaml:"cover_letter_path" json:"cover_letter_path,omitempty"`
	ExperienceSummary   string  `yaml:"experience_summary" json:"experience_summary"`
	YearsOfExperience   float64 `yaml:"years_of_experience" json:"years_of_experience"`

	Education      []Education      `yaml:"education" json:"education,omitempty"`
	WorkExperience []WorkExperience `yaml:"work_experience" json:"work_experience,omitempty"`
	Skills         []string         `yaml:"skills" json:"skills,omitempty"`
	Projects       []Project        `yaml:"projects" json:"projects,omitempty"`
	Achievements   []string         `yaml:"achievements" json:"achievements,omitempty"`
	Certifications []string         `yaml:"certifications" json:"certifications,omitempty"`

	PreferredJobTitles []string `yaml:"preferred_job_titles" json:"preferred_job_titles,omitempty"`
	PreferredLocations []string `yaml:"preferred_locations" json:"preferred_locations,omitempty"`

	SalaryMin      string `yaml:"salary_expectation_min" json:"salary_expectation_min,omitempty"`
	SalaryMax      string `yaml:"salary_expectation_max" json:"salary_expectation_max,omitempty"`
	SalaryCurrency string `yaml:"salary_currency" json:"salary_currency,omitempty"`
	NoticePeriod   string `yaml:"notice_period" json:"notice_period,omitempty"`
	StartDate      string `yaml:"available_start_date" json:"available_start_date,omitempty"`

	ScreeningAnswers map[string]any `yaml:"screening_answers" json:"screening_answers,omitempty"`
	References       []Reference    `yaml:"references" json:"references,omitempty"`
}

// Education is one degree.
type Education struct {
	Degree         string `yaml:"degree" json:"degree"`
	University     string `yaml:"university" json:"university"`
	GraduationYear string `yaml:"graduation_year" json:"graduation_year,omitempty"`
	GPA            string `yaml:"gpa" json:"gpa,omitempty"`
	Location       string `yaml:"location" json:"location,omitempty"`
	Duration       string `yaml:"duration" json:"duration,omitempty"`
}

// WorkExperience is one position, most recent first.
type WorkExperience struct {
	Title        string   `yaml:"title" json:"title"`
	Company      string   `yaml:"company" json:"company"`
	Duration     string   `yaml:"duration" json:"duration,omitempty"`
	Location     string   `yaml:"location" json:"location,omitempty"`
	Description  string   `yaml:"description" json:"description,omitempty"`
	Achievements []string `yaml:"achievements" json:"achievements,omitempty"`
}

// Project is a portfolio project.
type Project struct {
	Name         string   `yaml:"name" json:"name"`
	Description  string   `yaml:"description" json:"description,omitempty"`
	Technologies []string `yaml:"technologies" json:"technologies,omitempty"`
}

// Reference is a professional reference.
type Reference struct {
	Name    string `yaml:"name" json:"name"`
	Title   string `yaml:"title" json:"title,omitempty"`
	Company string `yaml:"company" json:"company,omitempty"`
	Email   string `yaml:"email" json:"email,omitempty"`
	Phone   string `yaml:"phone" json:"phone,omitempty"`
}

// Load reads a profile from a YAML file.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "profile: read %s", path)
	}
	return Parse(data)
}

// Parse decodes a YAML profile document.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "profile: parse")
	}
	p.ExperienceSummary = strings.TrimSpace(p.ExperienceSummary)
	return &p, nil
}

// FullName joins first and last name.
func (p *Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// Validate returns the required fields that are empty or still hold a
// placeholder value, in a stable order. An empty result means the profile is
// complete.
func (p *Profile) Validate() []string {
	required := []struct {
		name  string
		value string
	}{
		{"first_name", p.FirstName},
		{"last_name", p.LastName},
		{"email", p.Email},
		{"phone", p.Phone},
		{"location", p.Location},
		{"resume_path", p.ResumePath},
		{"experience_summary", p.ExperienceSummary},
	}

	var missing []string
	for _, f := range required {
		v := strings.TrimSpace(f.value)
		if v == "" || v == PlaceholderEmail || v == PlaceholderPhone {
			missing = append(missing, f.name)
		}
	}
	return missing
}
