package api

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/runelight-sys/LyroDocs/internal/models"
	"github.com/runelight-sys/LyroDocs/internal/ocr"
	"github.com/runelight-sys/LyroDocs/internal/services"
)

// multipartOverhead is the request body allowance on top of the upload
// limit for boundaries, part headers and other form fields.
const multipartOverhead = 1 << 20

//go:embed web/index.html
var webFS embed.FS

var allowedExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

type Server struct {
	mux       *http.ServeMux
	pipeline  *services.Pipeline
	jobs      *JobManager
	slots     chan struct{}
	logger    *slog.Logger
	maxUpload int64
	logoPath  string
}

// Options configures the HTTP surface.
type Options struct {
	MaxUploadBytes int64
	LogoPath       string
	Logger         *slog.Logger
}

// AnalyzeResponse is the body of a synchronous analysis.
type AnalyzeResponse struct {
	*models.AnalysisResult
	Preview    string `json:"preview,omitempty"`
	Exportable bool   `json:"exportable"`
}

// PreviewResponse describes an accepted upload before analysis.
type PreviewResponse struct {
	Name           string `json:"name"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	OriginalWidth  int    `json:"originalWidth"`
	OriginalHeight int    `json:"originalHeight"`
	Preview        string `json:"preview"`
}

func NewServer(pipeline *services.Pipeline, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	s := &Server{
		mux:       http.NewServeMux(),
		pipeline:  pipeline,
		jobs:      NewJobManager(),
		slots:     make(chan struct{}, maxActiveJobs),
		logger:    opts.Logger,
		maxUpload: opts.MaxUploadBytes,
		logoPath:  opts.LogoPath,
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/logo", s.handleLogo)
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/preview", s.handlePreview)
	s.mux.HandleFunc("/api/analyze", s.handleAnalyze)
	s.mux.HandleFunc("/api/export", s.handleExport)
	s.mux.HandleFunc("/api/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/jobs/", s.handleJobActions)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, http.MethodGet, http.MethodHead)
		return
	}
	page, err := webFS.ReadFile("web/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ui unavailable")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

func (s *Server) handleLogo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, http.MethodGet, http.MethodHead)
		return
	}
	if s.logoPath == "" {
		http.NotFound(w, r)
		return
	}
	if _, err := os.Stat(s.logoPath); err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, s.logoPath)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"engine": string(s.pipeline.EngineStatus()),
	})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	upload, status, err := s.readUpload(w, r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}
	preview, err := services.PreviewDataURI(upload)
	if err != nil {
		s.logger.Error("preview encoding failed", "error", err)
		writeError(w, http.StatusInternalServerError, "preview unavailable")
		return
	}
	writeJSON(w, http.StatusOK, PreviewResponse{
		Name:           upload.Name,
		Width:          upload.Width(),
		Height:         upload.Height(),
		OriginalWidth:  upload.OriginalWidth,
		OriginalHeight: upload.OriginalHeight,
		Preview:        preview,
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	default:
		writeError(w, http.StatusTooManyRequests, ErrTooManyJobs.Error())
		return
	}

	upload, status, err := s.readUpload(w, r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	result, err := s.pipeline.Analyze(r.Context(), upload)
	if err != nil {
		writeError(w, statusForPipelineError(err), userMessage(result, err))
		return
	}

	resp := AnalyzeResponse{AnalysisResult: result, Exportable: result.Exportable()}
	if preview, err := services.PreviewDataURI(upload); err == nil {
		resp.Preview = preview
	} else {
		s.logger.Warn("preview encoding failed", "error", err)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/jobs" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	upload, status, err := s.readUpload(w, r)
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	jobID, snapshot, err := s.jobs.CreateJob(upload.Name)
	if err != nil {
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}
	go s.runAnalysisJob(context.Background(), jobID, upload)

	writeJSON(w, http.StatusAccepted, snapshot)
}

func (s *Server) handleJobActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/jobs/"), "/")
	parts := strings.Split(path, "/")
	if path == "" || len(parts) > 2 || (len(parts) == 2 && parts[1] != "export") {
		http.NotFound(w, r)
		return
	}

	job, ok := s.jobs.GetJob(parts[0])
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	if len(parts) == 1 {
		writeJSON(w, http.StatusOK, job)
		return
	}

	payload, ok := services.ExportAnalysis(job.Result)
	if !ok {
		writeError(w, http.StatusConflict, "no analysis available for download")
		return
	}
	writeAttachment(w, payload)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var payload struct {
		Analysis string `json:"analysis"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if payload.Analysis == "" {
		writeError(w, http.StatusBadRequest, "analysis must not be empty")
		return
	}
	writeAttachment(w, []byte(payload.Analysis))
}

func (s *Server) runAnalysisJob(ctx context.Context, jobID string, upload *models.UploadedImage) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("analysis job panicked", "job", jobID, "panic", r)
			s.jobs.MarkFailed(jobID, "internal error", nil)
		}
	}()

	s.jobs.MarkProcessing(jobID)
	progress := func(step, message string, current, total int) {
		s.jobs.UpdateProgress(jobID, step, message, current, total)
	}
	result, err := s.pipeline.AnalyzeWithProgress(ctx, upload, progress)
	if err != nil {
		s.jobs.MarkFailed(jobID, userMessage(result, err), result)
		return
	}
	s.jobs.MarkComplete(jobID, result)
}

// readUpload streams the "file" field of a multipart upload into memory and
// decodes it. Nothing is written to disk. The returned status is meant for
// the error response.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*models.UploadedImage, int, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverhead)
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, http.StatusBadRequest, errors.New("invalid multipart form")
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, http.StatusBadRequest, errors.New("no file uploaded")
		}
		if err != nil {
			return nil, uploadErrorStatus(err), errors.New("invalid multipart form")
		}
		if part.FormName() != "file" || part.FileName() == "" {
			_ = part.Close()
			continue
		}
		upload, status, err := s.decodePart(part)
		_ = part.Close()
		return upload, status, err
	}
}

func (s *Server) decodePart(part *multipart.Part) (*models.UploadedImage, int, error) {
	name := part.FileName()
	if !allowedExtensions[strings.ToLower(filepath.Ext(name))] {
		return nil, http.StatusUnsupportedMediaType, services.ErrUnsupportedFormat
	}

	data, err := io.ReadAll(io.LimitReader(part, s.maxUpload+1))
	if err != nil {
		return nil, uploadErrorStatus(err), fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxUpload {
		return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("upload exceeds %d bytes", s.maxUpload)
	}

	upload, err := services.DecodeUpload(name, data)
	switch {
	case errors.Is(err, services.ErrUnsupportedFormat):
		return nil, http.StatusUnsupportedMediaType, services.ErrUnsupportedFormat
	case errors.Is(err, services.ErrImageTooLarge):
		return nil, http.StatusRequestEntityTooLarge, err
	case err != nil:
		return nil, http.StatusBadRequest, err
	}
	return upload, http.StatusOK, nil
}

func uploadErrorStatus(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func statusForPipelineError(err error) int {
	switch {
	case errors.Is(err, ocr.ErrEngineUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, ocr.ErrRecognitionFailed):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func userMessage(result *models.AnalysisResult, err error) string {
	if result != nil && result.ErrorMessage != "" {
		return result.ErrorMessage
	}
	return err.Error()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func writeAttachment(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", services.ExportContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", services.ExportFileName))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
