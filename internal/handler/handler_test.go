package handler_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/festal-inc/haishin/internal/dispatch"
	"github.com/festal-inc/haishin/internal/handler"
	"github.com/festal-inc/haishin/internal/job"
	"github.com/festal-inc/haishin/internal/mail"
	"github.com/festal-inc/haishin/internal/router"
	"github.com/festal-inc/haishin/internal/service"
)

const operator = "suzuki@festal-inc.com"

const contactsCSV = "Email,氏名,会社\n" +
	"tanaka@example.co.jp,田中太郎,株式会社A\n" +
	"sato@example.co.jp,佐藤花子,株式会社B\n"

func newTestServer(t *testing.T, sender *mail.MockSender) *router.Router {
	t.Helper()
	if sender == nil {
		sender = mail.NewMockSender()
	}
	svc := service.NewBatchService(
		job.NewStore(),
		dispatch.NewOrchestrator(sender, nil),
		sender,
		nil,
		"@festal-inc.com",
		nil,
	)

	auth := handler.NewAuthHandler(svc, nil)
	batch := handler.NewBatchHandler(svc, 0, nil)

	r := router.New()
	r.Post("/api/auth", auth.Verify)
	r.Post("/api/upload", batch.Upload)
	r.Post("/api/preview", batch.Preview)
	r.Post("/api/send", batch.Send)
	r.Get("/api/jobs/{id}", batch.Progress)
	r.Get("/health", handler.Health)
	return r
}

func postJSON(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func uploadCSV(t *testing.T, r http.Handler, senderEmail, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("sender_email", senderEmail))
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst))
}

func TestAuth_Verify(t *testing.T) {
	srv := newTestServer(t, nil)

	w := postJSON(t, srv, "/api/auth", map[string]string{"user_email": operator})
	require.Equal(t, http.StatusOK, w.Code)

	var identity mail.Identity
	decodeBody(t, w, &identity)
	assert.Equal(t, operator, identity.Email)
}

func TestAuth_Verify_WrongDomain(t *testing.T) {
	srv := newTestServer(t, nil)

	w := postJSON(t, srv, "/api/auth", map[string]string{"user_email": "someone@gmail.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAuth_Verify_InvalidBody(t *testing.T) {
	srv := newTestServer(t, nil)

	w := postJSON(t, srv, "/api/auth", map[string]string{"user_email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_CSV(t *testing.T) {
	srv := newTestServer(t, nil)

	w := uploadCSV(t, srv, operator, "contacts.csv", contactsCSV)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		JobID    string `json:"job_id"`
		Contacts []struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"contacts"`
		Count int `json:"count"`
	}
	decodeBody(t, w, &resp)
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, 2, resp.Count)
	require.Len(t, resp.Contacts, 2)
	assert.Equal(t, "田中太郎", resp.Contacts[0].Name)
}

func TestUpload_MissingSender(t *testing.T) {
	srv := newTestServer(t, nil)

	w := uploadCSV(t, srv, "", "contacts.csv", contactsCSV)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_UnsupportedExtension(t *testing.T) {
	srv := newTestServer(t, nil)

	w := uploadCSV(t, srv, operator, "contacts.txt", contactsCSV)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreview(t *testing.T) {
	srv := newTestServer(t, nil)

	w := uploadCSV(t, srv, operator, "contacts.csv", contactsCSV)
	require.Equal(t, http.StatusCreated, w.Code)
	var up struct {
		JobID string `json:"job_id"`
	}
	decodeBody(t, w, &up)

	w = postJSON(t, srv, "/api/preview", map[string]string{
		"job_id":  up.JobID,
		"subject": "【{company}】のご案内",
		"body":    "{name}様\nお世話になっております。",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Messages []struct {
			Subject string `json:"subject"`
			Body    string `json:"body"`
		} `json:"messages"`
		Variables []string `json:"variables"`
	}
	decodeBody(t, w, &resp)
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "【株式会社A】のご案内", resp.Messages[0].Subject)
	assert.True(t, strings.HasPrefix(resp.Messages[0].Body, "田中太郎様"))
	assert.Equal(t, []string{"company", "name"}, resp.Variables)
}

func TestPreview_UnknownJob(t *testing.T) {
	srv := newTestServer(t, nil)

	w := postJSON(t, srv, "/api/preview", map[string]string{
		"job_id":  "0e8dd0cb-0c53-4dd9-86f4-43b99407ea2f",
		"subject": "s",
		"body":    "b",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSend_FullFlow(t *testing.T) {
	sender := mail.NewMockSender()
	srv := newTestServer(t, sender)

	w := uploadCSV(t, srv, operator, "contacts.csv", contactsCSV)
	require.Equal(t, http.StatusCreated, w.Code)
	var up struct {
		JobID string `json:"job_id"`
	}
	decodeBody(t, w, &up)

	w = postJSON(t, srv, "/api/send", map[string]any{
		"job_id":        up.JobID,
		"subject":       "{name}様へ",
		"body":          "本文",
		"delay_seconds": 0,
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	var sent struct {
		Status string `json:"status"`
		Total  int    `json:"total"`
	}
	decodeBody(t, w, &sent)
	assert.Equal(t, 2, sent.Total)

	// The batch runs in the background; poll until done.
	require.Eventually(t, func() bool {
		req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+up.JobID, nil)
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			return false
		}
		var p struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
			return false
		}
		return p.Status == "done"
	}, 2*time.Second, 10*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/"+up.JobID, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	var p struct {
		Succeeded int `json:"succeeded"`
		Failed    int `json:"failed"`
		Results   []struct {
			Index   int    `json:"index"`
			Email   string `json:"email"`
			Success bool   `json:"success"`
			Message string `json:"message"`
		} `json:"results"`
	}
	decodeBody(t, rec, &p)
	assert.Equal(t, 2, p.Succeeded)
	assert.Equal(t, 0, p.Failed)
	require.Len(t, p.Results, 2)
	assert.Equal(t, "送信成功", p.Results[0].Message)

	require.Len(t, sender.Sent(), 2)
	assert.Equal(t, "田中太郎様へ", sender.Sent()[0].Subject)
}

func TestSend_EmptyTemplate(t *testing.T) {
	srv := newTestServer(t, nil)

	w := uploadCSV(t, srv, operator, "contacts.csv", contactsCSV)
	require.Equal(t, http.StatusCreated, w.Code)
	var up struct {
		JobID string `json:"job_id"`
	}
	decodeBody(t, w, &up)

	w = postJSON(t, srv, "/api/send", map[string]any{
		"job_id": up.JobID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSend_StartsOnlyOnce(t *testing.T) {
	srv := newTestServer(t, nil)

	w := uploadCSV(t, srv, operator, "contacts.csv", contactsCSV)
	require.Equal(t, http.StatusCreated, w.Code)
	var up struct {
		JobID string `json:"job_id"`
	}
	decodeBody(t, w, &up)

	body := map[string]any{
		"job_id":        up.JobID,
		"subject":       "件名",
		"body":          "本文",
		"delay_seconds": 0,
	}
	w = postJSON(t, srv, "/api/send", body)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = postJSON(t, srv, "/api/send", body)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestProgress_InvalidID(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/not-a-uuid", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProgress_NotFound(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/jobs/0e8dd0cb-0c53-4dd9-86f4-43b99407ea2f", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestSend_InvalidJobID(t *testing.T) {
	srv := newTestServer(t, nil)

	w := postJSON(t, srv, "/api/send", map[string]any{
		"job_id":  "nope",
		"subject": "s",
		"body":    "b",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
