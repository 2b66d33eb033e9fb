package api

import (
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"webpptx/internal/config"
	"webpptx/internal/deck"
	"webpptx/internal/models"
	"webpptx/internal/queue"
	"webpptx/internal/ratelimit"
	"webpptx/internal/store"
	"webpptx/internal/telemetry"
)

const presField = "pres"

var allowedStillExts = map[string]bool{
	".png": true, ".gif": true, ".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true,
}

// Server wires the HTTP boundary: authentication, multipart admission, and
// non-blocking result retrieval. Everything heavier runs on the worker pool.
type Server struct {
	cfg     config.Config
	store   *store.Store
	queue   *queue.RedisQueue
	limiter *ratelimit.TokenBucket
}

// New constructs the API server.
func New(cfg config.Config, st *store.Store, q *queue.RedisQueue, limiter *ratelimit.TokenBucket) *Server {
	return &Server{cfg: cfg, store: st, queue: q, limiter: limiter}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Mount("/metrics", telemetry.Handler())

	r.Post("/jobs/metadata", func(w http.ResponseWriter, r *http.Request) {
		s.handleSubmit(w, r, models.KindMetadata)
	})
	r.Post("/jobs/animation", func(w http.ResponseWriter, r *http.Request) {
		s.handleSubmit(w, r, models.KindAnimation)
	})
	r.Get("/jobs/{id}", s.handleGetJob)
	r.Get("/jobs/{id}/result", s.handleResult)
	return r
}

type submitResponse struct {
	JobID string `json:"jobID"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, kind string) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	if !s.authenticated(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(r.Context(), "rl:"+clientKey(r))
		if err != nil {
			http.Error(w, "rate limit error", http.StatusInternalServerError)
			return
		}
		if !allowed {
			telemetry.RateLimitRejects.Inc()
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
	}

	pres, header, err := r.FormFile(presField)
	if err != nil {
		http.Error(w, "presentation file is required", http.StatusBadRequest)
		return
	}
	defer pres.Close()
	if !strings.EqualFold(filepath.Ext(header.Filename), ".pptx") {
		http.Error(w, "unsupported presentation format", http.StatusUnprocessableEntity)
		return
	}

	jobID := uuid.New().String()
	jobDir := filepath.Join(s.cfg.TempDir, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		http.Error(w, "temp storage unavailable", http.StatusInternalServerError)
		return
	}

	packagePath := filepath.Join(jobDir, "pres.pptx")
	if err := saveUpload(pres, packagePath); err != nil {
		http.Error(w, "failed to store upload", http.StatusInternalServerError)
		return
	}

	slideCount, err := deck.CountSlides(packagePath)
	if err != nil {
		http.Error(w, "unreadable presentation package", http.StatusUnprocessableEntity)
		return
	}

	job := models.Job{ID: jobID, Kind: kind, PackagePath: packagePath}
	if kind == models.KindAnimation {
		stills, err := s.saveStills(r, jobDir)
		if err != nil {
			http.Error(w, err.Error(), errStatus(err))
			return
		}
		if len(stills) != slideCount {
			http.Error(w, "still image count does not match slide count", http.StatusUnprocessableEntity)
			return
		}
		job.StillImages = stills
	}

	s.store.Create(job)
	if err := s.queue.Enqueue(r.Context(), jobID); err != nil {
		_ = s.store.MarkFailed(jobID, "enqueue failed")
		http.Error(w, "enqueue failed", http.StatusInternalServerError)
		return
	}
	telemetry.JobsSubmitted.WithLabelValues(kind).Inc()

	writeJSON(w, http.StatusAccepted, submitResponse{JobID: jobID})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if !s.authenticated(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	job, ok := s.store.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleResult serves a done job's archive exactly once. Unknown, pending,
// failed, and already-retrieved identities are indistinguishable: all yield
// an empty response.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	if !s.authenticated(r) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	path, ok := s.store.TakeResult(chi.URLParam(r, "id"))
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("read result %s: %v", path, err)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	telemetry.ResultsRetrieved.Inc()
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="response.zip"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// saveStills writes the attached slide stills in slide order. The order is
// a numeric-aware sort of the multipart field names; callers must name the
// fields so that this order equals slide order.
func (s *Server) saveStills(r *http.Request, jobDir string) ([]string, error) {
	form := r.MultipartForm
	if form == nil {
		return nil, &submitError{status: http.StatusBadRequest, msg: "still images are required"}
	}
	names := make([]string, 0, len(form.File))
	for field := range form.File {
		if field != presField {
			names = append(names, field)
		}
	}
	if len(names) == 0 {
		return nil, &submitError{status: http.StatusBadRequest, msg: "still images are required"}
	}
	sort.Slice(names, func(i, j int) bool { return naturalLess(names[i], names[j]) })

	paths := make([]string, 0, len(names))
	for i, field := range names {
		header := form.File[field][0]
		ext := strings.ToLower(filepath.Ext(header.Filename))
		if !allowedStillExts[ext] {
			return nil, &submitError{status: http.StatusUnprocessableEntity, msg: "unsupported still image format: " + header.Filename}
		}
		f, err := header.Open()
		if err != nil {
			return nil, &submitError{status: http.StatusBadRequest, msg: "unreadable still image: " + header.Filename}
		}
		dest := filepath.Join(jobDir, "still"+strconv.Itoa(i+1)+ext)
		err = saveUpload(f, dest)
		f.Close()
		if err != nil {
			return nil, &submitError{status: http.StatusInternalServerError, msg: "failed to store still image"}
		}
		paths = append(paths, dest)
	}
	return paths, nil
}

func (s *Server) authenticated(r *http.Request) bool {
	if s.cfg.APIKey == "" {
		return false
	}
	key := r.Header.Get("X-API-Key")
	if key == "" {
		key = r.FormValue("key")
	}
	return key == s.cfg.APIKey
}

type submitError struct {
	status int
	msg    string
}

func (e *submitError) Error() string { return e.msg }

func errStatus(err error) int {
	if se, ok := err.(*submitError); ok {
		return se.status
	}
	return http.StatusInternalServerError
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func saveUpload(src multipart.File, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// naturalLess orders strings with embedded numbers numerically, so slide2
// sorts before slide10.
func naturalLess(a, b string) bool {
	for len(a) > 0 && len(b) > 0 {
		if isDigit(a[0]) && isDigit(b[0]) {
			na, ra := leadingInt(a)
			nb, rb := leadingInt(b)
			if na != nb {
				return na < nb
			}
			a, b = ra, rb
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func leadingInt(s string) (int, string) {
	i, n := 0, 0
	for i < len(s) && isDigit(s[i]) {
		n = n*10 + int(s[i]-'0')
		i++
	}
	return n, s[i:]
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
