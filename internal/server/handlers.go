package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/ppiankov/taxaformer/internal/model"
	"github.com/ppiankov/taxaformer/internal/worker"
)

// formOverhead is the multipart framing allowed on top of the file itself
const formOverhead = 1 << 20

// jobView is the JSON shape of a job's queue status
type jobView struct {
	Status             string `json:"status"`
	JobID              string `json:"job_id"`
	Filename           string `json:"filename"`
	Cached             bool   `json:"cached,omitempty"`
	Position           int    `json:"position,omitempty"`
	QueueLength        int    `json:"queue_length,omitempty"`
	Progress           int    `json:"progress"`
	EstimatedWait      int    `json:"estimated_wait,omitempty"`
	EstimatedRemaining int    `json:"estimated_remaining,omitempty"`
	Message            string `json:"message,omitempty"`
	Error              string `json:"error,omitempty"`
}

type successBody struct {
	Status string                `json:"status"`
	JobID  string                `json:"job_id,omitempty"`
	Cached bool                  `json:"cached,omitempty"`
	Data   *model.AnalysisResult `json:"data"`
}

func seconds(d time.Duration) int {
	return int(d.Round(time.Second) / time.Second)
}

func (s *Server) view(st worker.JobStatus) jobView {
	v := jobView{
		Status:   string(st.State),
		JobID:    st.ID,
		Filename: st.SampleName,
		Cached:   st.Cached,
		Progress: st.Progress,
		Error:    st.Error,
	}
	switch st.State {
	case worker.StateQueued:
		wait := seconds(st.EstimatedWait)
		v.Position = st.Position
		v.QueueLength = s.scheduler.Stats().QueueLength
		v.EstimatedWait = wait
		v.Message = fmt.Sprintf("Your file is #%d in queue. Estimated wait: %dm %ds", st.Position, wait/60, wait%60)
	case worker.StateProcessing:
		v.EstimatedRemaining = seconds(st.EstimatedWait)
		v.Message = "Your file is currently being processed"
	}
	return v
}

// Index reports that the service is up
func (s *Server) Index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "online",
		"service":   "Taxaformer API",
		"version":   s.version,
		"timestamp": s.now().Format(time.RFC3339),
	})
}

// Health reports service health and queue load
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	_, err := os.Stat(s.cfg.TempDir)
	stats := s.scheduler.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"timestamp":       s.now().Format(time.RFC3339),
		"temp_dir_exists": err == nil,
		"queue_length":    stats.QueueLength,
		"processing":      stats.Processing,
	})
}

// QueueStatus reports the job of one session
func (s *Server) QueueStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID != "" {
		if st, ok := s.scheduler.SessionStatus(sessionID); ok {
			writeJSON(w, http.StatusOK, s.view(st))
			return
		}
	}

	stats := s.scheduler.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "no_job",
		"queue_length":   stats.QueueLength,
		"estimated_wait": seconds(stats.EstimatedWaitNewJob),
	})
}

// QueueStats reports overall queue statistics
func (s *Server) QueueStats(w http.ResponseWriter, r *http.Request) {
	stats := s.scheduler.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"queue_length":               stats.QueueLength,
		"processing":                 stats.Processing,
		"completed":                  stats.Completed,
		"failed":                     stats.Failed,
		"workers":                    stats.Workers,
		"max_queue":                  stats.MaxQueue,
		"estimated_wait_for_new_job": seconds(stats.EstimatedWaitNewJob),
		"avg_processing_seconds":     stats.AvgProcessingSeconds,
	})
}

// Job reports one job's status
func (s *Server) Job(w http.ResponseWriter, r *http.Request) {
	st, err := s.scheduler.Status(mux.Vars(r)["id"])
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(st))
}

// JobResult returns the analysis of a finished job, or its status while pending
func (s *Server) JobResult(w http.ResponseWriter, r *http.Request) {
	result, st, err := s.scheduler.Result(mux.Vars(r)["id"])
	switch {
	case errors.Is(err, worker.ErrUnknownJob):
		fail(w, err)
	case err != nil:
		status, body := mapError(err)
		body.JobID = st.ID
		writeError(w, status, body)
	case !st.State.Finished():
		writeJSON(w, http.StatusAccepted, s.view(st))
	default:
		writeJSON(w, http.StatusOK, successBody{Status: "success", JobID: st.ID, Cached: st.Cached, Data: result})
	}
}

// Analyze accepts a sequence file upload and queues it.
// With ?wait=true the request blocks until the analysis finishes.
func (s *Server) Analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+formOverhead)

	up, err := s.receive(r)
	if err != nil {
		s.logger.Warn("upload rejected", zap.Error(err))
		fail(w, err)
		return
	}

	st, err := s.scheduler.Submit(r.Context(), worker.Submission{
		SessionID:   up.sessionID,
		SampleName:  up.filename,
		Path:        up.path,
		RemoveAfter: true,
	})
	if err != nil {
		_ = os.Remove(up.path)
		fail(w, err)
		return
	}

	if r.URL.Query().Get("wait") != "true" && !st.State.Finished() {
		writeJSON(w, http.StatusAccepted, s.view(st))
		return
	}

	result, st, err := s.scheduler.Wait(r.Context(), st.ID)
	if err != nil {
		status, body := mapError(err)
		body.JobID = st.ID
		writeError(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, successBody{Status: "success", JobID: st.ID, Cached: st.Cached, Data: result})
}

type upload struct {
	filename  string
	sessionID string
	path      string
}

// receive streams the multipart body, writing the file part to TempDir
func (s *Server) receive(r *http.Request) (upload, error) {
	var up upload

	mr, err := r.MultipartReader()
	if err != nil {
		return up, fmt.Errorf("read multipart body: %w", err)
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.discard(up)
			return upload{}, fmt.Errorf("read multipart body: %w", err)
		}

		switch part.FormName() {
		case "session_id":
			b, err := io.ReadAll(io.LimitReader(part, 256))
			if err != nil {
				s.discard(up)
				return upload{}, fmt.Errorf("read session id: %w", err)
			}
			up.sessionID = strings.TrimSpace(string(b))
		case "file":
			if up.path != "" {
				continue
			}
			up.filename, up.path, err = s.saveFile(part)
			if err != nil {
				return upload{}, err
			}
		}
		_ = part.Close()
	}

	if up.path == "" {
		return upload{}, errNoFilename
	}
	return up, nil
}

func (s *Server) discard(up upload) {
	if up.path != "" {
		_ = os.Remove(up.path)
	}
}

// saveFile validates the file part and writes it, decoded to UTF-8, to a temp file
func (s *Server) saveFile(part *multipart.Part) (string, string, error) {
	name := filepath.Base(part.FileName())
	if part.FileName() == "" || name == "." || name == "/" {
		return "", "", errNoFilename
	}

	ext := strings.ToLower(filepath.Ext(name))
	if !slices.Contains(s.cfg.AllowedExtensions, ext) {
		return "", "", &model.UnsupportedFormatError{
			Filename:  name,
			Extension: ext,
			Allowed:   s.cfg.AllowedExtensions,
		}
	}

	decoded, err := charset.NewReader(part, part.Header.Get("Content-Type"))
	if err != nil {
		return "", "", fmt.Errorf("decode %s: %w", name, err)
	}

	if err := os.MkdirAll(s.cfg.TempDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create temp dir: %w", err)
	}
	f, err := os.CreateTemp(s.cfg.TempDir, "upload-*"+ext)
	if err != nil {
		return "", "", fmt.Errorf("create temp file: %w", err)
	}

	limit := s.cfg.MaxUploadBytes
	n, err := io.Copy(f, io.LimitReader(decoded, limit+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		err = fmt.Errorf("save %s: %w", name, err)
	case closeErr != nil:
		err = fmt.Errorf("save %s: %w", name, closeErr)
	case n > limit:
		err = &errTooLarge{limit: limit}
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", "", err
	}

	s.logger.Debug("upload saved",
		zap.String("filename", name),
		zap.Int64("bytes", n),
		zap.String("path", f.Name()))
	return name, f.Name(), nil
}
