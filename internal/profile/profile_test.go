package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
first_name: Ada
last_name: Lovelace
email: ada@example.org
phone: "+44 20 7946 0000"
linkedin_url: https://linkedin.com/in/ada
location: London, UK
willing_to_relocate: true
resume_path: /home/ada/resume.pdf
experience_summary: |
  Analyst and engineer.
years_of_experience: 4.5
education:
  - degree: B.Sc. Mathematics
    university: University of London
    graduation_year: "2019"
work_experience:
  - title: Engineer
    company: Analytical Engines Ltd
    duration: 2020 - Present
    achievements:
      - Wrote the first program
skills: [Go, Python, SQL]
salary_currency: GBP
screening_answers:
  authorized_to_work_uk: true
  years_of_go_experience: 3
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "Ada Lovelace", p.FullName())
	assert.Equal(t, "Analyst and engineer.", p.ExperienceSummary)
	assert.InDelta(t, 4.5, p.YearsOfExperience, 0.001)
	assert.True(t, p.WillingToRelocate)
	assert.False(t, p.RequiresSponsorship)
	require.Len(t, p.Education, 1)
	assert.Equal(t, "University of London", p.Education[0].University)
	require.Len(t, p.WorkExperience, 1)
	assert.Equal(t, []string{"Wrote the first program"}, p.WorkExperience[0].Achievements)
	assert.Equal(t, []string{"Go", "Python", "SQL"}, p.Skills)
	assert.Equal(t, true, p.ScreeningAnswers["authorized_to_work_uk"])
	assert.Equal(t, 3, p.ScreeningAnswers["years_of_go_experience"])
	assert.Empty(t, p.Validate())
}

func TestParseInvalid(t *testing.T) {
	_, err := Parse([]byte("first_name: [unterminated"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.FirstName)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		p    Profile
		want []string
	}{
		{
			name: "empty",
			p:    Profile{},
			want: []string{"first_name", "last_name", "email", "phone", "location", "resume_path", "experience_summary"},
		},
		{
			name: "placeholders count as missing",
			p: Profile{
				FirstName: "Ada", LastName: "Lovelace",
				Email: PlaceholderEmail, Phone: PlaceholderPhone,
				Location: "London", ResumePath: "/r.pdf", ExperienceSummary: "x",
			},
			want: []string{"email", "phone"},
		},
		{
			name: "whitespace only",
			p: Profile{
				FirstName: "  ", LastName: "Lovelace", Email: "a@b.c", Phone: "1",
				Location: "London", ResumePath: "/r.pdf", ExperienceSummary: "x",
			},
			want: []string{"first_name"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.p.Validate())
		})
	}
}
