package assessment

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newHandler(repo Repository) *Handler {
	svc := newTestService(repo)
	return NewHandler(svc, NewJobManager(svc, time.Minute, testLogger()))
}

func TestSubmitAssessment_JSON(t *testing.T) {
	repo := newMockRepo()
	h := newHandler(repo)

	body := `{"patient_id": "p-1", "view_mode": "Doctor View", "chief_complaint": "productive cough and fever", "age": 54, "sex": "M"}`
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.SubmitAssessment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	var job Job
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("failed to decode job: %v", err)
	}
	if job.ID == "" {
		t.Fatal("expected job id")
	}
	if job.PatientID != "p-1" {
		t.Errorf("unexpected patient id: %q", job.PatientID)
	}

	done := waitForJob(t, h.jobs, job.ID)
	if done.Status != JobDone {
		t.Fatalf("expected done, got %s (%s)", done.Status, done.Error)
	}
}

func TestSubmitAssessment_MissingPatientID(t *testing.T) {
	h := newHandler(newMockRepo())

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments", strings.NewReader(`{"chief_complaint": "cough"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.SubmitAssessment(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", httpErr.Code)
	}
}

func TestSubmitAssessment_Multipart(t *testing.T) {
	h := newHandler(newMockRepo())

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("patient_id", "p-7")
	w.WriteField("view_mode", "Patient View")
	w.WriteField("chief_complaint", "cough and slight fever")
	w.WriteField("age", "31")
	w.WriteField("context_snapshot", `{"ward": "B2"}`)
	fw, err := w.CreateFormFile("image", "chest.png")
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte{0x89, 0x50, 0x4E, 0x47})
	w.Close()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.SubmitAssessment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var job Job
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatal(err)
	}
	waitForJob(t, h.jobs, job.ID)
}

func TestSubmitAssessment_BadSnapshotJSON(t *testing.T) {
	h := newHandler(newMockRepo())

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("patient_id", "p-7")
	w.WriteField("context_snapshot", "{not json")
	w.Close()

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/assessments", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.SubmitAssessment(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad snapshot, got %v", err)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	h := newHandler(newMockRepo())

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessment-jobs/nope", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("nope")

	err := h.GetJob(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestGetAssessment(t *testing.T) {
	repo := newMockRepo()
	repo.records["as-1"] = &Record{ID: "as-1", PatientID: "p-1"}
	h := newHandler(repo)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments/as-1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("as-1")

	if err := h.GetAssessment(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	var got Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.ID != "as-1" {
		t.Errorf("unexpected record: %+v", got)
	}
}

func TestGetAssessment_NotFound(t *testing.T) {
	h := newHandler(newMockRepo())

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments/nope", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("nope")

	err := h.GetAssessment(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestListAssessments_FiltersByPatient(t *testing.T) {
	repo := newMockRepo()
	repo.records["a"] = &Record{ID: "a", PatientID: "p-1"}
	repo.records["b"] = &Record{ID: "b", PatientID: "p-2"}
	h := newHandler(repo)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/assessments?patient_id=p-1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListAssessments(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp struct {
		Data  []Record `json:"data"`
		Total int      `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || len(resp.Data) != 1 || resp.Data[0].ID != "a" {
		t.Errorf("unexpected response: %+v", resp)
	}
}
