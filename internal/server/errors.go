package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ppiankov/taxaformer/internal/model"
	"github.com/ppiankov/taxaformer/internal/worker"
)

const (
	suggestEmpty   = "Please ensure your file contains valid FASTA/FASTQ sequences with headers (>) and DNA data"
	suggestSize    = "Please upload a smaller file or split your sequences into multiple files"
	suggestRetry   = "Please try again or contact support if the problem persists"
	suggestWait    = "Please wait for your current job to finish before uploading another file"
	suggestLater   = "The queue is full, please try again in a few minutes"
	suggestBackend = "The classification service failed, please try again later"
)

// apiError is the JSON body of every failed request
type apiError struct {
	Status            string   `json:"status"`
	Code              string   `json:"error_code"`
	Message           string   `json:"message"`
	Suggestion        string   `json:"suggestion,omitempty"`
	AllowedExtensions []string `json:"allowed_extensions,omitempty"`
	MaxSizeBytes      int64    `json:"max_size_bytes,omitempty"`
	JobID             string   `json:"job_id,omitempty"`
}

// errTooLarge marks an upload over the configured size limit
type errTooLarge struct {
	limit int64
}

func (e *errTooLarge) Error() string {
	return "file too large"
}

// errNoFilename marks a file part without a name
var errNoFilename = errors.New("no file provided")

// mapError maps an error to its HTTP status and body
func mapError(err error) (int, apiError) {
	var (
		tooLarge    *errTooLarge
		maxBytes    *http.MaxBytesError
		unsupported *model.UnsupportedFormatError
		classifier  *model.ClassifierError
	)

	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, apiError{
			Code:         "FILE_TOO_LARGE",
			Message:      err.Error(),
			Suggestion:   suggestSize,
			MaxSizeBytes: tooLarge.limit,
		}
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, apiError{
			Code:         "FILE_TOO_LARGE",
			Message:      "request body too large",
			Suggestion:   suggestSize,
			MaxSizeBytes: maxBytes.Limit,
		}
	case errors.Is(err, errNoFilename):
		return http.StatusBadRequest, apiError{
			Code:    "NO_FILENAME",
			Message: err.Error(),
		}
	case errors.As(err, &unsupported):
		return http.StatusBadRequest, apiError{
			Code:              "INVALID_FILE_TYPE",
			Message:           err.Error(),
			AllowedExtensions: unsupported.Allowed,
		}
	case errors.Is(err, model.ErrEmptyInput):
		return http.StatusUnprocessableEntity, apiError{
			Code:       "EMPTY_FILE",
			Message:    err.Error(),
			Suggestion: suggestEmpty,
		}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, apiError{
			Code:       "TIMEOUT",
			Message:    err.Error(),
			Suggestion: suggestSize,
		}
	case errors.As(err, &classifier):
		return http.StatusBadGateway, apiError{
			Code:       "CLASSIFIER_ERROR",
			Message:    err.Error(),
			Suggestion: suggestBackend,
		}
	case errors.Is(err, worker.ErrQueueFull):
		return http.StatusServiceUnavailable, apiError{
			Code:       "QUEUE_FULL",
			Message:    err.Error(),
			Suggestion: suggestLater,
		}
	case errors.Is(err, worker.ErrSchedulerClosed):
		return http.StatusServiceUnavailable, apiError{
			Code:    "SHUTTING_DOWN",
			Message: err.Error(),
		}
	case errors.Is(err, worker.ErrSessionBusy):
		return http.StatusConflict, apiError{
			Code:       "SESSION_BUSY",
			Message:    err.Error(),
			Suggestion: suggestWait,
		}
	case errors.Is(err, worker.ErrUnknownJob):
		return http.StatusNotFound, apiError{
			Code:    "JOB_NOT_FOUND",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, apiError{
			Code:       "INTERNAL_ERROR",
			Message:    err.Error(),
			Suggestion: suggestRetry,
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, body apiError) {
	body.Status = "error"
	writeJSON(w, status, body)
}

// fail writes the mapped response for err
func fail(w http.ResponseWriter, err error) {
	status, body := mapError(err)
	writeError(w, status, body)
}
