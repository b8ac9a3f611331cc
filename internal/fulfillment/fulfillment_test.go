package fulfillment

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lettertrack/lettertrack/internal/access"
	"github.com/lettertrack/lettertrack/internal/apperr"
	"github.com/lettertrack/lettertrack/internal/email"
	"github.com/lettertrack/lettertrack/internal/models"
	"github.com/lettertrack/lettertrack/internal/repository"
	"github.com/lettertrack/lettertrack/internal/storage"
	"github.com/lettertrack/lettertrack/internal/upload"
	"github.com/lettertrack/lettertrack/pkg/database"
)

// stubRenderer returns a fixed artifact path without touching disk.
type stubRenderer struct {
	path    string
	renders int
	err     error
}

func (r *stubRenderer) ExistingArtifactPath(letter *models.Letter) (string, bool) {
	if letter.PDFPath != "" {
		return letter.PDFPath, true
	}
	return "", false
}

func (r *stubRenderer) RenderArtifact(letter *models.Letter, req *models.LetterRequest) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.renders++
	return r.path, nil
}

// stubTransport records sent messages and optionally fails.
type stubTransport struct {
	sent []*email.Message
	err  error
}

func (t *stubTransport) Send(ctx context.Context, msg *email.Message) error {
	if t.err != nil {
		return t.err
	}
	t.sent = append(t.sent, msg)
	return nil
}

type testEnv struct {
	svc       *Service
	db        *database.DB
	uploadDir string
	renderer  *stubRenderer
	transport *stubTransport
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zap.NewNop()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "test.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	migrator := database.NewMigrator(db, logger)
	require.NoError(t, migrator.RunMigrations("../../migrations"))

	uploadDir := t.TempDir()
	renderer := &stubRenderer{path: filepath.Join(t.TempDir(), "letter_v1.pdf")}
	transport := &stubTransport{}

	svc := NewService(Deps{
		DB:           db,
		Requests:     repository.NewRequestRepository(db.DB, logger),
		Destinations: repository.NewDestinationRepository(db.DB, logger),
		Letters:      repository.NewLetterRepository(db.DB, logger),
		Documents:    repository.NewDocumentRepository(db.DB, logger),
		Templates:    repository.NewTemplateRepository(db.DB, logger),
		Issuer:       access.NewIssuer(logger),
		Validator:    upload.NewValidator(storage.NewLocalFileStorage(uploadDir, logger), logger),
		Folders:      storage.NewFolderManager(uploadDir, logger),
		Renderer:     renderer,
		Transport:    transport,
		Composer:     email.ComposerConfig{ProfessorName: "Prof. Chen", Institution: "State University"},
		Logger:       logger,
	})
	return &testEnv{svc: svc, db: db, uploadDir: uploadDir, renderer: renderer, transport: transport}
}

func (e *testEnv) createRequest(t *testing.T) *models.LetterRequest {
	t.Helper()
	req, err := e.svc.CreateRequest(context.Background(), CreateRequestInput{
		StudentName:  "Ada Lovelace",
		StudentEmail: "ada@example.edu",
	})
	require.NoError(t, err)
	return req
}

func (e *testEnv) addDestination(t *testing.T, requestID string, input AddDestinationInput) *models.SubmissionDestination {
	t.Helper()
	dest, err := e.svc.AddDestination(context.Background(), requestID, input)
	require.NoError(t, err)
	return dest
}

func TestCreateRequest_IssuesAccessCode(t *testing.T) {
	env := newTestEnv(t)

	req := env.createRequest(t)

	assert.Len(t, req.AccessCode, access.CodeLength)
	assert.Equal(t, models.RequestStatusPending, req.Status)
	assert.False(t, req.CodeGeneratedAt.IsZero())

	found, err := env.svc.GetRequestByAccessCode(context.Background(), req.AccessCode)
	require.NoError(t, err)
	assert.Equal(t, req.ID, found.ID)
}

func TestRegenerateAccessCode_ReplacesCode(t *testing.T) {
	env := newTestEnv(t)
	req := env.createRequest(t)

	updated, err := env.svc.RegenerateAccessCode(context.Background(), req.ID)
	require.NoError(t, err)
	assert.NotEqual(t, req.AccessCode, updated.AccessCode)
	assert.True(t, updated.CodeGeneratedAt.After(req.CodeGeneratedAt) || updated.CodeGeneratedAt.Equal(req.CodeGeneratedAt))

	// The old code no longer resolves.
	_, err = env.svc.GetRequestByAccessCode(context.Background(), req.AccessCode)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestCompletionAggregation(t *testing.T) {
	ctx := context.Background()

	t.Run("all destinations delivered completes the request", func(t *testing.T) {
		env := newTestEnv(t)
		req := env.createRequest(t)
		d1 := env.addDestination(t, req.ID, AddDestinationInput{Method: models.MethodDownload})
		d2 := env.addDestination(t, req.ID, AddDestinationInput{Method: models.MethodPortal})

		_, err := env.svc.MarkDestinationSent(ctx, d1.ID)
		require.NoError(t, err)

		mid, err := env.svc.GetRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.NotEqual(t, models.RequestStatusCompleted, mid.Status)

		_, err = env.svc.MarkDestinationSent(ctx, d2.ID)
		require.NoError(t, err)

		done, err := env.svc.GetRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RequestStatusCompleted, done.Status)
	})

	t.Run("confirmed counts as delivered", func(t *testing.T) {
		env := newTestEnv(t)
		req := env.createRequest(t)
		d := env.addDestination(t, req.ID, AddDestinationInput{Method: models.MethodDownload})

		_, err := env.svc.MarkDestinationSent(ctx, d.ID)
		require.NoError(t, err)
		_, err = env.svc.ConfirmDestination(ctx, d.ID)
		require.NoError(t, err)

		done, err := env.svc.GetRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RequestStatusCompleted, done.Status)
	})

	t.Run("reset reverts a completed request to in progress", func(t *testing.T) {
		env := newTestEnv(t)
		req := env.createRequest(t)
		d := env.addDestination(t, req.ID, AddDestinationInput{Method: models.MethodDownload})

		_, err := env.svc.MarkDestinationSent(ctx, d.ID)
		require.NoError(t, err)

		reset, err := env.svc.ResetDestination(ctx, d.ID)
		require.NoError(t, err)
		assert.Equal(t, models.DestinationStatusPending, reset.Status)
		assert.Nil(t, reset.SentAt)
		assert.Nil(t, reset.ConfirmedAt)
		assert.Empty(t, reset.FailureReason)

		reverted, err := env.svc.GetRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.Equal(t, models.RequestStatusInProgress, reverted.Status)
	})

	t.Run("zero destinations never completes", func(t *testing.T) {
		env := newTestEnv(t)
		req := env.createRequest(t)
		d := env.addDestination(t, req.ID, AddDestinationInput{Method: models.MethodDownload})

		_, err := env.svc.MarkDestinationSent(ctx, d.ID)
		require.NoError(t, err)
		require.NoError(t, env.svc.RemoveDestination(ctx, d.ID))

		after, err := env.svc.GetRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.NotEqual(t, models.RequestStatusCompleted, after.Status)
	})

	t.Run("failed destination blocks completion", func(t *testing.T) {
		env := newTestEnv(t)
		req := env.createRequest(t)
		d1 := env.addDestination(t, req.ID, AddDestinationInput{Method: models.MethodDownload})
		d2 := env.addDestination(t, req.ID, AddDestinationInput{Method: models.MethodPortal})

		_, err := env.svc.MarkDestinationSent(ctx, d1.ID)
		require.NoError(t, err)
		failed, err := env.svc.FailDestination(ctx, d2.ID, "portal unavailable")
		require.NoError(t, err)
		assert.Equal(t, "portal unavailable", failed.FailureReason)

		after, err := env.svc.GetRequest(ctx, req.ID)
		require.NoError(t, err)
		assert.NotEqual(t, models.RequestStatusCompleted, after.Status)
	})
}

func TestDestinationTransitions_RejectInvalidMoves(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	req := env.createRequest(t)
	d := env.addDestination(t, req.ID, AddDestinationInput{Method: models.MethodDownload})

	// CONFIRM requires SENT.
	_, err := env.svc.ConfirmDestination(ctx, d.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindPrecondition))

	_, err = env.svc.MarkDestinationSent(ctx, d.ID)
	require.NoError(t, err)
	_, err = env.svc.ConfirmDestination(ctx, d.ID)
	require.NoError(t, err)

	// CONFIRMED only permits RESET.
	_, err = env.svc.MarkDestinationSent(ctx, d.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindPrecondition))
	_, err = env.svc.FailDestination(ctx, d.ID, "late failure")
	assert.True(t, apperr.IsKind(err, apperr.KindPrecondition))
}

func TestDispatchEmail_PreconditionsInOrder(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	req := env.createRequest(t)

	letter, err := env.svc.CreateLetter(ctx, req.ID, CreateLetterInput{Content: "Dear Committee, ..."})
	require.NoError(t, err)
	emailDest := env.addDestination(t, req.ID, AddDestinationInput{Method: models.MethodEmail, RecipientEmail: "dean@example.edu"})

	t.Run("missing letter", func(t *testing.T) {
		_, err := env.svc.DispatchEmail(ctx, "no-such-letter", emailDest.ID)
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	})

	t.Run("missing destination", func(t *testing.T) {
		_, err := env.svc.DispatchEmail(ctx, letter.ID, "no-such-destination")
		assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	})

	t.Run("destination on another request", func(t *testing.T) {
		other := env.createRequest(t)
		foreign := env.addDestination(t, other.ID, AddDestinationInput{Method: models.MethodEmail, RecipientEmail: "dean@example.edu"})
		_, err := env.svc.DispatchEmail(ctx, letter.ID, foreign.ID)
		assert.True(t, apperr.IsKind(err, apperr.KindPrecondition))
	})

	t.Run("non-email method", func(t *testing.T) {
		portal := env.addDestination(t, req.ID, AddDestinationInput{Method: models.MethodPortal})
		_, err := env.svc.DispatchEmail(ctx, letter.ID, portal.ID)
		assert.True(t, apperr.IsKind(err, apperr.KindPrecondition))
	})

	t.Run("missing recipient email", func(t *testing.T) {
		noAddr := env.addDestination(t, req.ID, AddDestinationInput{Method: models.MethodEmail})
		_, err := env.svc.DispatchEmail(ctx, letter.ID, noAddr.ID)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})
}

func TestDispatchEmail_Success(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	req := env.createRequest(t)

	letter, err := env.svc.CreateLetter(ctx, req.ID, CreateLetterInput{Content: "Dear Committee, ..."})
	require.NoError(t, err)
	dest := env.addDestination(t, req.ID, AddDestinationInput{
		Method:          models.MethodEmail,
		RecipientEmail:  "dean@example.edu",
		RecipientName:   "Dean Rivera",
		InstitutionName: "State University",
	})

	sent, err := env.svc.DispatchEmail(ctx, letter.ID, dest.ID)
	require.NoError(t, err)

	assert.Equal(t, models.DestinationStatusSent, sent.Status)
	assert.NotNil(t, sent.SentAt)
	require.Len(t, env.transport.sent, 1)
	assert.Equal(t, "dean@example.edu", env.transport.sent[0].To)
	assert.Equal(t, []string{env.renderer.path}, env.transport.sent[0].Attachments)

	// Only destination delivered, so the request completes.
	done, err := env.svc.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusCompleted, done.Status)

	// The rendered path is recorded so a second dispatch reuses it.
	stored, err := env.svc.GetLetter(ctx, letter.ID)
	require.NoError(t, err)
	assert.Equal(t, env.renderer.path, stored.PDFPath)
	assert.Equal(t, 1, env.renderer.renders)
}

func TestDispatchEmail_TransportFailureRecordsReason(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.transport.err = errors.New("smtp 554: relay refused")

	req := env.createRequest(t)
	letter, err := env.svc.CreateLetter(ctx, req.ID, CreateLetterInput{Content: "Dear Committee, ..."})
	require.NoError(t, err)
	dest := env.addDestination(t, req.ID, AddDestinationInput{Method: models.MethodEmail, RecipientEmail: "dean@example.edu"})

	_, err = env.svc.DispatchEmail(ctx, letter.ID, dest.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindTransport))

	failed, getErr := env.svc.GetDestination(ctx, dest.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.DestinationStatusFailed, failed.Status)
	assert.Equal(t, "smtp 554: relay refused", failed.FailureReason)

	after, getErr := env.svc.GetRequest(ctx, req.ID)
	require.NoError(t, getErr)
	assert.NotEqual(t, models.RequestStatusCompleted, after.Status)
}

func TestCreateLetter_Versioning(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	req := env.createRequest(t)

	first, err := env.svc.CreateLetter(ctx, req.ID, CreateLetterInput{Content: "draft one"})
	require.NoError(t, err)
	second, err := env.svc.CreateLetter(ctx, req.ID, CreateLetterInput{Content: "draft two"})
	require.NoError(t, err)

	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 2, second.Version)

	letters, err := env.svc.ListLetters(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, letters, 2)
	assert.Equal(t, 2, letters[0].Version) // newest first
}

func TestCreateLetter_TemplateInterpolation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	req := env.createRequest(t)

	tmpl, err := env.svc.CreateTemplate(ctx, &models.Template{
		Name:    "Standard",
		Content: "Dear {{ recipient_name }}, I recommend {{student_name}} without reservation. Re: {{ program }}",
		Variables: []models.TemplateVariable{
			{Name: "recipient_name"},
			{Name: "student_name"},
			{Name: "program"},
		},
	})
	require.NoError(t, err)

	t.Run("missing declared variable is rejected", func(t *testing.T) {
		_, err := env.svc.CreateLetter(ctx, req.ID, CreateLetterInput{
			TemplateID: tmpl.ID,
			Variables: map[string]*string{
				"recipient_name": strPtr("Dean Rivera"),
			},
		})
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
		assert.Contains(t, err.Error(), "student_name")
	})

	t.Run("empty input falls back to the default template", func(t *testing.T) {
		require.NoError(t, env.svc.SetDefaultTemplate(ctx, tmpl.ID))

		letter, err := env.svc.CreateLetter(ctx, req.ID, CreateLetterInput{
			Variables: map[string]*string{
				"recipient_name": strPtr("Dean Rivera"),
				"student_name":   strPtr("Ada Lovelace"),
				"program":        strPtr("Mathematics PhD"),
			},
		})
		require.NoError(t, err)
		assert.Equal(t, tmpl.ID, letter.TemplateID)
	})

	t.Run("no template and no content is rejected", func(t *testing.T) {
		fresh := newTestEnv(t)
		r := fresh.createRequest(t)
		_, err := fresh.svc.CreateLetter(ctx, r.ID, CreateLetterInput{})
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	})

	t.Run("nil values substitute as empty strings", func(t *testing.T) {
		letter, err := env.svc.CreateLetter(ctx, req.ID, CreateLetterInput{
			TemplateID: tmpl.ID,
			Variables: map[string]*string{
				"recipient_name": strPtr("Dean Rivera"),
				"student_name":   strPtr("Ada Lovelace"),
				"program":        nil,
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "Dear Dean Rivera, I recommend Ada Lovelace without reservation. Re: ", letter.Content)
		assert.Equal(t, tmpl.ID, letter.TemplateID)
	})
}

func TestUploadDocuments_TwoPhaseValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	req := env.createRequest(t)

	pdf := append([]byte("%PDF-1.7\n"), []byte("content")...)
	fakePNG := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 0x4A, 0x46} // JPEG bytes

	outcome, err := env.svc.UploadDocuments(ctx, req.AccessCode, []upload.IncomingFile{
		{OriginalName: "transcript.pdf", DeclaredMIME: "application/pdf", Content: pdf},
		{OriginalName: "photo.png", DeclaredMIME: "image/png", Content: fakePNG},
	})
	require.NoError(t, err)

	require.Len(t, outcome.Accepted, 1)
	assert.Equal(t, "transcript.pdf", outcome.Accepted[0].OriginalName)
	assert.NotContains(t, outcome.Accepted[0].StoredPath, "transcript")
	assert.Equal(t, []string{"photo.png"}, outcome.Rejected)

	docs, err := env.svc.ListDocuments(ctx, req.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestUploadDocuments_RecordFailureLeavesNoOrphans(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	req := env.createRequest(t)

	// Force the document insert to fail after validation succeeds.
	_, err := env.db.Exec("DROP TABLE documents")
	require.NoError(t, err)

	pdf := append([]byte("%PDF-1.7\n"), []byte("content")...)
	_, err = env.svc.UploadDocuments(ctx, req.AccessCode, []upload.IncomingFile{
		{OriginalName: "transcript.pdf", DeclaredMIME: "application/pdf", Content: pdf},
	})
	require.Error(t, err)

	// No document row could be recorded, so no validated file may remain on
	// disk.
	var files []string
	require.NoError(t, filepath.WalkDir(env.uploadDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	}))
	assert.Empty(t, files)
}

func TestUploadDocuments_DisallowedTypeAborts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	req := env.createRequest(t)

	_, err := env.svc.UploadDocuments(ctx, req.AccessCode, []upload.IncomingFile{
		{OriginalName: "script.sh", DeclaredMIME: "application/x-sh", Content: []byte("#!/bin/sh")},
	})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestDeleteRequest_Cascades(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	req := env.createRequest(t)
	dest := env.addDestination(t, req.ID, AddDestinationInput{Method: models.MethodDownload})
	letter, err := env.svc.CreateLetter(ctx, req.ID, CreateLetterInput{Content: "draft"})
	require.NoError(t, err)

	require.NoError(t, env.svc.DeleteRequest(ctx, req.ID))

	_, err = env.svc.GetRequest(ctx, req.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	_, err = env.svc.GetDestination(ctx, dest.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	_, err = env.svc.GetLetter(ctx, letter.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestUpdateRequest_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	req := env.createRequest(t)

	_, err := env.svc.UpdateRequest(ctx, req.ID, models.RequestPatch{
		Status: models.NewField("DELIVERED"),
	})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))

	_, err = env.svc.UpdateRequest(ctx, req.ID, models.RequestPatch{
		StudentEmail: models.NewField("not-an-email"),
	})
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestSetDefaultTemplate_SingleDefault(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	a, err := env.svc.CreateTemplate(ctx, &models.Template{Name: "A", Content: "a"})
	require.NoError(t, err)
	b, err := env.svc.CreateTemplate(ctx, &models.Template{Name: "B", Content: "b"})
	require.NoError(t, err)

	require.NoError(t, env.svc.SetDefaultTemplate(ctx, a.ID))
	require.NoError(t, env.svc.SetDefaultTemplate(ctx, b.ID))

	templates, err := env.svc.ListTemplates(ctx)
	require.NoError(t, err)
	defaults := 0
	for _, tmpl := range templates {
		if tmpl.IsDefault {
			defaults++
			assert.Equal(t, b.ID, tmpl.ID)
		}
	}
	assert.Equal(t, 1, defaults)
}

func strPtr(s string) *string { return &s }
