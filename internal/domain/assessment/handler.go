package assessment

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/wardlight/wardlight/internal/platform/auth"
	"github.com/wardlight/wardlight/pkg/pagination"
)

type Handler struct {
	svc  *Service
	jobs *JobManager
}

func NewHandler(svc *Service, jobs *JobManager) *Handler {
	return &Handler{svc: svc, jobs: jobs}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("admin", "physician", "nurse"))
	g.POST("/assessments", h.SubmitAssessment)
	g.GET("/assessment-jobs/:id", h.GetJob)
	g.GET("/assessments", h.ListAssessments)
	g.GET("/assessments/:id", h.GetAssessment)
}

// submitRequest is the JSON body variant. Multipart submissions carry the
// same fields as form values plus optional audio and image file parts.
type submitRequest struct {
	PatientID  string                 `json:"patient_id"`
	ViewMode   string                 `json:"view_mode"`
	Chief      string                 `json:"chief_complaint"`
	History    string                 `json:"history"`
	Age        int                    `json:"age"`
	Sex        string                 `json:"sex"`
	InternPlan string                 `json:"intern_plan"`
	Snapshot   map[string]interface{} `json:"context_snapshot"`
}

// SubmitAssessment accepts a run request and returns 202 with a job id.
// Clients poll the job endpoint for the assessment id.
func (h *Handler) SubmitAssessment(c echo.Context) error {
	in, err := h.parseSubmit(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	job, err := h.jobs.Submit(in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusAccepted, job)
}

func (h *Handler) GetJob(c echo.Context) error {
	job, ok := h.jobs.Get(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "job not found")
	}
	return c.JSON(http.StatusOK, job)
}

func (h *Handler) GetAssessment(c echo.Context) error {
	rec, err := h.svc.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "assessment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) ListAssessments(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()

	var (
		items []*Record
		total int
		err   error
	)
	if patientID := c.QueryParam("patient_id"); patientID != "" {
		items, total, err = h.svc.ListByPatient(ctx, patientID, pg.Limit, pg.Offset)
	} else {
		items, total, err = h.svc.List(ctx, pg.Limit, pg.Offset)
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) parseSubmit(c echo.Context) (RunInput, error) {
	ct := c.Request().Header.Get(echo.HeaderContentType)
	if strings.HasPrefix(ct, echo.MIMEMultipartForm) {
		return h.parseMultipart(c)
	}

	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return RunInput{}, err
	}
	return RunInput{
		PatientID:  req.PatientID,
		ViewMode:   ViewMode(req.ViewMode),
		Chief:      req.Chief,
		History:    req.History,
		Age:        req.Age,
		Sex:        req.Sex,
		InternPlan: req.InternPlan,
		Snapshot:   req.Snapshot,
	}, nil
}

func (h *Handler) parseMultipart(c echo.Context) (RunInput, error) {
	age, _ := strconv.Atoi(c.FormValue("age"))
	in := RunInput{
		PatientID:  c.FormValue("patient_id"),
		ViewMode:   ViewMode(c.FormValue("view_mode")),
		Chief:      c.FormValue("chief_complaint"),
		History:    c.FormValue("history"),
		Age:        age,
		Sex:        c.FormValue("sex"),
		InternPlan: c.FormValue("intern_plan"),
	}
	if snap := c.FormValue("context_snapshot"); snap != "" {
		if err := json.Unmarshal([]byte(snap), &in.Snapshot); err != nil {
			return RunInput{}, errors.New("context_snapshot is not valid JSON")
		}
	}

	if fh, err := c.FormFile("image"); err == nil {
		data, err := readPart(fh)
		if err != nil {
			return RunInput{}, err
		}
		in.Image = data
	}
	if fh, err := c.FormFile("audio"); err == nil {
		path, err := stageAudio(fh)
		if err != nil {
			return RunInput{}, err
		}
		in.AudioPath = path
	}
	return in, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// stageAudio writes the upload to a temp file so the transcriber can stream
// it. The job manager removes the file after the run.
func stageAudio(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.CreateTemp("", "wardlight-audio-*")
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}
