package email

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lettertrack/lettertrack/internal/models"
)

func TestComposeLetterEmail_AllFieldsPresent(t *testing.T) {
	cfg := ComposerConfig{ProfessorName: "Dr. Grace Hopper", Institution: "Yale University"}
	req := &models.LetterRequest{StudentName: "Ada Lovelace"}
	dest := &models.SubmissionDestination{
		RecipientEmail:  "admissions@mit.edu",
		RecipientName:   "Prof. Smith",
		InstitutionName: "MIT",
		ProgramName:     "PhD in Computer Science",
	}

	msg := ComposeLetterEmail(cfg, req, dest)

	assert.Equal(t, "admissions@mit.edu", msg.To)
	assert.Equal(t, "Prof. Smith", msg.ToName)
	assert.Equal(t, "Letter of Recommendation - Ada Lovelace - PhD in Computer Science", msg.Subject)
	assert.Contains(t, msg.Body, "Dear Prof. Smith,")
	assert.Contains(t, msg.Body, "Ada Lovelace")
	assert.Contains(t, msg.Body, "PhD in Computer Science at MIT")
	assert.Contains(t, msg.Body, "Dr. Grace Hopper")
	assert.Contains(t, msg.Body, "Yale University")
}

func TestComposeLetterEmail_FallbacksForMissingFields(t *testing.T) {
	msg := ComposeLetterEmail(ComposerConfig{}, &models.LetterRequest{}, &models.SubmissionDestination{
		RecipientEmail: "admissions@example.edu",
	})

	assert.Equal(t, "Letter of Recommendation - the applicant", msg.Subject)
	assert.Contains(t, msg.Body, "Dear Admissions Committee,")
	assert.Contains(t, msg.Body, "the applicant")
	assert.Contains(t, msg.Body, "your institution")
	assert.Contains(t, msg.Body, "The recommending professor")
	assert.NotContains(t, msg.Body, "{{")
}
