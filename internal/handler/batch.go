package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/festal-inc/haishin/internal/domain"
	"github.com/festal-inc/haishin/internal/ingest"
	"github.com/festal-inc/haishin/internal/service"
)

// BatchHandler owns the upload → preview → send → progress flow.
type BatchHandler struct {
	service      *service.BatchService
	defaultDelay int
	logger       *slog.Logger
}

func NewBatchHandler(service *service.BatchService, defaultDelay int, logger *slog.Logger) *BatchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchHandler{
		service:      service,
		defaultDelay: defaultDelay,
		logger:       logger,
	}
}

type uploadResponse struct {
	JobID    uuid.UUID        `json:"job_id"`
	Contacts []domain.Contact `json:"contacts"`
	Count    int              `json:"count"`
}

// Upload handles POST /api/upload. Multipart form with a "file" part
// (CSV or Excel) and a "sender_email" field. The parsed contacts are
// stored as a pending job; nothing is sent yet.
func (h *BatchHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(4 << 20); err != nil {
		respondError(w, r, domain.Invalid("handler.upload", "ファイルのアップロードに失敗しました"))
		return
	}

	senderEmail := r.FormValue("sender_email")
	if senderEmail == "" {
		respondError(w, r, domain.Invalid("handler.upload", "送信元メールアドレスを指定してください"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, domain.Invalid("handler.upload", "ファイルが選択されていません"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, domain.Internal(err, "handler.upload", "ファイルの読み込みに失敗しました"))
		return
	}

	rows, err := ingest.ParseFile(header.Filename, data)
	if err != nil {
		respondError(w, r, err)
		return
	}

	j, err := h.service.CreateFromRows(rows, senderEmail)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, uploadResponse{
		JobID:    j.ID,
		Contacts: j.Contacts,
		Count:    len(j.Contacts),
	})
}

type previewRequest struct {
	JobID   string `json:"job_id" validate:"required,uuid"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type previewResponse struct {
	Messages  []domain.RenderedMessage `json:"messages"`
	Variables []string                 `json:"variables"`
}

// Preview handles POST /api/preview. Renders the template against the
// first contacts of the job so the operator can check placeholder
// expansion before sending.
func (h *BatchHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	id, err := uuid.Parse(req.JobID)
	if err != nil {
		respondError(w, r, domain.Invalid("handler.preview", "ジョブIDが不正です"))
		return
	}

	messages, variables, err := h.service.Preview(id, domain.Template{
		Subject: req.Subject,
		Body:    req.Body,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, previewResponse{Messages: messages, Variables: variables})
}

type sendRequest struct {
	JobID        string `json:"job_id" validate:"required,uuid"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	DelaySeconds *int   `json:"delay_seconds" validate:"omitempty,gte=0"`
	SenderName   string `json:"sender_name"`
}

type sendResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	Status string    `json:"status"`
	Total  int       `json:"total"`
}

// Send handles POST /api/send. Starts the batch in the background and
// returns immediately; progress is polled via GET /api/jobs/{id}.
func (h *BatchHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	id, err := uuid.Parse(req.JobID)
	if err != nil {
		respondError(w, r, domain.Invalid("handler.send", "ジョブIDが不正です"))
		return
	}

	delay := h.defaultDelay
	if req.DelaySeconds != nil {
		delay = *req.DelaySeconds
	}

	tmpl := domain.Template{Subject: req.Subject, Body: req.Body}
	if err := h.service.Start(id, tmpl, delay, req.SenderName); err != nil {
		respondError(w, r, err)
		return
	}

	progress, err := h.service.Progress(id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusAccepted, sendResponse{
		JobID:  id,
		Status: string(progress.Status),
		Total:  progress.Total,
	})
}

// Progress handles GET /api/jobs/{id}. Returns the job status and the
// per-recipient result ledger accumulated so far.
func (h *BatchHandler) Progress(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, r, domain.Invalid("handler.progress", "ジョブIDが不正です"))
		return
	}

	progress, err := h.service.Progress(id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, progress)
}
