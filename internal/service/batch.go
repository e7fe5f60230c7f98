// Package service implements the application's business operations over
// the contact, template and dispatch cores.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/festal-inc/haishin/internal/contact"
	"github.com/festal-inc/haishin/internal/dispatch"
	"github.com/festal-inc/haishin/internal/domain"
	"github.com/festal-inc/haishin/internal/events"
	"github.com/festal-inc/haishin/internal/job"
	"github.com/festal-inc/haishin/internal/mail"
	"github.com/festal-inc/haishin/internal/template"
)

// PreviewLimit is the number of contacts rendered for a template preview.
const PreviewLimit = 3

// BatchService owns batch jobs end to end: contact ingestion into a job,
// template preview, and the dispatch run with its result ledger.
type BatchService struct {
	store         *job.Store
	orchestrator  *dispatch.Orchestrator
	verifier      mail.UserVerifier
	publisher     events.Publisher
	allowedDomain string
	logger        *slog.Logger

	// now is swappable in tests (feeds the {today} template variable).
	now func() time.Time
}

// NewBatchService creates the batch service. publisher may be nil.
func NewBatchService(store *job.Store, orchestrator *dispatch.Orchestrator, verifier mail.UserVerifier, publisher events.Publisher, allowedDomain string, logger *slog.Logger) *BatchService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchService{
		store:         store,
		orchestrator:  orchestrator,
		verifier:      verifier,
		publisher:     publisher,
		allowedDomain: allowedDomain,
		logger:        logger,
		now:           time.Now,
	}
}

// VerifyOperator checks the allowed-domain rule and resolves the operator
// against the provider directory. Called before any batch work starts.
func (s *BatchService) VerifyOperator(ctx context.Context, email string) (*mail.Identity, error) {
	if err := s.checkSenderDomain(email, "auth.verify"); err != nil {
		return nil, err
	}

	identity, err := s.verifier.LookupUser(ctx, email)
	if errors.Is(err, mail.ErrNotImplemented) {
		// Providers without a directory (SMTP) pass the domain check only.
		return &mail.Identity{
			DisplayName: strings.SplitN(email, "@", 2)[0],
			Email:       email,
			Department:  "不明",
		}, nil
	}
	if err != nil {
		return nil, domain.WrapError(err, domain.EUNAUTHORIZED, "auth.verify",
			"ユーザーが見つかりません。正しいメールアドレスを入力してください。")
	}
	return identity, nil
}

// CreateFromRows normalizes an upload's raw rows into a pending job.
// A legacy flat email list, an unrecognized layout, and the
// zero-contact aggregate condition are all rejected here.
func (s *BatchService) CreateFromRows(rows []domain.Row, senderEmail string) (*job.Job, error) {
	if err := s.checkSenderDomain(senderEmail, "batch.create"); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.Invalid("batch.create", "ファイルにデータが含まれていません")
	}

	switch contact.DetectFormat(rows) {
	case contact.FormatContactList:
	case contact.FormatLegacyList:
		return nil, domain.Invalid("batch.create",
			"旧形式のファイルです。宛先リスト形式（email・name カラム）でアップロードしてください。")
	default:
		return nil, domain.Invalid("batch.create",
			"有効なファイル形式ではありません。email と name カラムが必要です。")
	}

	contacts := contact.Normalize(rows)
	if len(contacts) == 0 {
		return nil, domain.Invalid("batch.create",
			"有効な宛先データが見つかりませんでした。email と name カラムが必要です。")
	}

	j := job.New(senderEmail, contacts)
	s.store.Put(j)

	s.logger.Info("batch: job created",
		"job_id", j.ID.String(),
		"sender", senderEmail,
		"rows", len(rows),
		"contacts", len(contacts),
	)
	return j, nil
}

// Preview renders the template against the job's first contacts and
// reports the placeholder identifiers the template uses.
func (s *BatchService) Preview(id uuid.UUID, tmpl domain.Template) ([]domain.RenderedMessage, []string, error) {
	j := s.store.Get(id)
	if j == nil {
		return nil, nil, domain.NotFound("batch.preview", "job", id.String())
	}

	contacts := j.Contacts
	if len(contacts) > PreviewLimit {
		contacts = contacts[:PreviewLimit]
	}

	messages := template.RenderAll(tmpl, contacts, s.templateExtras(""))
	variables := template.ExtractVariables(tmpl.Subject + "\n" + tmpl.Body)
	return messages, variables, nil
}

// Start validates the dispatch request, renders every message, and runs
// the batch in the background. The caller polls Progress for the ledger.
// An empty subject or body is rejected here, before the template engine.
func (s *BatchService) Start(id uuid.UUID, tmpl domain.Template, delaySeconds int, senderName string) error {
	j := s.store.Get(id)
	if j == nil {
		return domain.NotFound("batch.start", "job", id.String())
	}
	if strings.TrimSpace(tmpl.Subject) == "" || strings.TrimSpace(tmpl.Body) == "" {
		return domain.Invalid("batch.start", "件名と本文を入力してください")
	}
	if delaySeconds < 0 {
		return domain.Invalid("batch.start", "送信間隔は0秒以上で指定してください")
	}

	messages := template.RenderAll(tmpl, j.Contacts, s.templateExtras(senderName))
	if !j.Begin(tmpl, len(messages)) {
		return domain.Conflict("batch.start", "このジョブは既に送信開始されています")
	}

	s.publisher.JobStarted(events.JobStartedEvent{
		JobID:       j.ID.String(),
		SenderEmail: j.SenderEmail,
		Total:       len(messages),
		StartedAt:   s.now(),
	})

	// The batch deliberately outlives the HTTP request that started it.
	go s.run(context.Background(), j, messages, time.Duration(delaySeconds)*time.Second)

	return nil
}

// Progress returns a snapshot of a job's ledger and counts.
func (s *BatchService) Progress(id uuid.UUID) (job.Progress, error) {
	j := s.store.Get(id)
	if j == nil {
		return job.Progress{}, domain.NotFound("batch.progress", "job", id.String())
	}
	return j.Snapshot(), nil
}

func (s *BatchService) run(ctx context.Context, j *job.Job, messages []domain.RenderedMessage, delay time.Duration) {
	s.logger.Info("batch: dispatch started",
		"job_id", j.ID.String(),
		"total", len(messages),
		"delay", delay.String(),
	)

	s.orchestrator.Dispatch(ctx, messages, j.SenderEmail, delay, func(r domain.DispatchResult) {
		j.Append(r)
		s.publisher.JobResult(events.JobResultEvent{JobID: j.ID.String(), Result: r})
	})

	elapsed := j.Finish()
	dispatch.BatchDuration.Observe(elapsed.Seconds())

	p := j.Snapshot()
	s.publisher.JobCompleted(events.JobCompletedEvent{
		JobID:     j.ID.String(),
		Total:     p.Total,
		Succeeded: p.Succeeded,
		Failed:    p.Failed,
		DoneAt:    s.now(),
	})

	s.logger.Info("batch: dispatch completed",
		"job_id", j.ID.String(),
		"total", p.Total,
		"succeeded", p.Succeeded,
		"failed", p.Failed,
		"elapsed", elapsed.String(),
	)
}

// templateExtras supplies the caller-context template variables. These
// never shadow canonical contact fields (BuildVariableMap guarantees it).
func (s *BatchService) templateExtras(senderName string) map[string]string {
	extras := map[string]string{
		"today": s.now().Format("2006年1月2日"),
	}
	if senderName != "" {
		extras["sender"] = senderName
	}
	return extras
}

func (s *BatchService) checkSenderDomain(email, op string) error {
	if email == "" || !strings.Contains(email, "@") || !strings.Contains(email, s.allowedDomain) {
		return domain.Forbidden(op, "有効な"+s.allowedDomain+"のメールアドレスを入力してください")
	}
	return nil
}
