package email

import (
	"fmt"
	"strings"

	"github.com/lettertrack/lettertrack/internal/models"
)

// Message is one outbound email with optional file attachments.
type Message struct {
	To          string
	ToName      string
	Subject     string
	Body        string
	Attachments []string
}

// ComposerConfig carries the sender-side identity used in letter emails.
type ComposerConfig struct {
	ProfessorName string
	Institution   string
}

// ComposeLetterEmail builds the message delivering a recommendation letter
// to a destination. Every optional field falls back to sensible neutral
// text so a sparsely filled destination still produces a presentable email.
func ComposeLetterEmail(cfg ComposerConfig, req *models.LetterRequest, dest *models.SubmissionDestination) *Message {
	professor := cfg.ProfessorName
	if professor == "" {
		professor = "The recommending professor"
	}
	student := req.StudentName
	if student == "" {
		student = "the applicant"
	}
	recipient := dest.RecipientName
	if recipient == "" {
		recipient = "Admissions Committee"
	}
	institution := dest.InstitutionName
	if institution == "" {
		institution = "your institution"
	}

	subject := fmt.Sprintf("Letter of Recommendation - %s", student)
	if dest.ProgramName != "" {
		subject += fmt.Sprintf(" - %s", dest.ProgramName)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", recipient)
	fmt.Fprintf(&b, "Please find attached a letter of recommendation for %s", student)
	if dest.ProgramName != "" {
		fmt.Fprintf(&b, ", submitted in support of their application to %s at %s", dest.ProgramName, institution)
	} else {
		fmt.Fprintf(&b, ", submitted in support of their application to %s", institution)
	}
	b.WriteString(".\n\n")
	fmt.Fprintf(&b, "Sincerely,\n%s", professor)
	if cfg.Institution != "" {
		fmt.Fprintf(&b, "\n%s", cfg.Institution)
	}
	b.WriteString("\n")

	return &Message{
		To:      dest.RecipientEmail,
		ToName:  recipient,
		Subject: subject,
		Body:    b.String(),
	}
}
