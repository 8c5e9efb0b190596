package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/Tutortoise/object-detection-service/detections"
	"github.com/Tutortoise/object-detection-service/logger"
	"github.com/Tutortoise/object-detection-service/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Multipart field names accepted for the upload, in order of preference.
var uploadFields = []string{"image", "file"}

var errNoUpload = errors.New("no image field in form")

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := logger.RequestIDFrom(ctx)
	timings := &models.ProcessingTimings{RequestID: requestID}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	imgBytes, err := readUpload(r, s.maxUploadBytes)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.sendErrorResponse(w, CodeUploadTooLarge, MsgUploadTooLarge,
				fmt.Sprintf("limit is %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		s.sendErrorResponse(w, CodeInvalidRequest, MsgInvalidRequest, err.Error(), http.StatusBadRequest)
		return
	}

	response, err := s.processor.Process(ctx, imgBytes, timings)
	if err != nil {
		s.sendProcessingError(w, r, err)
		return
	}

	s.logTimings(timings, len(response.DetectedObjects))
	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"message": MsgAPIInfo})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.stats.Stats())
}

// sendProcessingError maps pipeline failures onto responses. Client faults
// are 400, a saturated engine is 503, anything else is an internal error
// logged under a trace id.
func (s *Server) sendProcessingError(w http.ResponseWriter, r *http.Request, err error) {
	entry := logger.WithRequestID(r.Context(), s.log).WithFields(logrus.Fields{
		"error": err.Error(),
		"path":  r.URL.Path,
	})

	var decodeErr *models.DecodeError
	switch {
	case errors.As(err, &decodeErr):
		entry.Warn("Rejected undecodable image")
		s.sendErrorResponse(w, CodeInvalidImage, MsgInvalidImage, decodeErr.Error(), http.StatusBadRequest)
	case errors.Is(err, detections.ErrAcquireTimeout),
		errors.Is(err, detections.ErrPoolClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		entry.Warn("No model session available")
		s.sendErrorResponse(w, CodeSessionError, MsgEngineBusy, err.Error(), http.StatusServiceUnavailable)
	default:
		fields := logger.Fields{
			logger.RequestIDKey: logger.RequestIDFrom(r.Context()),
			"error":             err.Error(),
			"operation":         operationFor(err),
		}
		traceID := logger.ErrorWithTraceID(s.log, fields, "Image processing failed")
		s.writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Code:    CodeProcessingError,
			Message: MsgProcessingFailed,
			TraceID: traceID,
		})
	}
}

func operationFor(err error) string {
	var (
		unknown   *models.UnknownClassError
		encodeErr *models.EncodeError
		inferErr  *models.InferenceError
	)
	switch {
	case errors.As(err, &unknown):
		return "normalize"
	case errors.As(err, &encodeErr):
		return "encode"
	case errors.As(err, &inferErr):
		return "inference"
	default:
		return "process"
	}
}

func (s *Server) logTimings(t *models.ProcessingTimings, count int) {
	if !s.log.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	s.log.WithFields(logrus.Fields{
		logger.RequestIDKey: t.RequestID,
		"objects":           count,
		"decode":            t.ImageDecode.String(),
		"letterbox":         t.Letterbox.String(),
		"inference":         t.Inference.String(),
		"postprocess":       t.Postprocess.String(),
		"normalize":         t.Normalize.String(),
		"render":            t.Render.String(),
		"encode":            t.Encode.String(),
		"total":             t.Total.String(),
	}).Debug("Processing times")
}

// readUpload extracts the image bytes from any of the accepted request forms.
func readUpload(r *http.Request, maxBytes int64) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/json":
		return handleJSONRequest(r)
	case "multipart/form-data":
		return handleMultipartRequest(r, maxBytes)
	default:
		return handleRawRequest(r)
	}
}

func handleJSONRequest(r *http.Request) ([]byte, error) {
	var req struct {
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}

	payload := strings.TrimSpace(req.Image)
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 || !strings.HasSuffix(payload[:comma], ";base64") {
			return nil, errors.New("image data URI must be base64 encoded")
		}
		payload = payload[comma+1:]
	}
	return base64.StdEncoding.DecodeString(payload)
}

func handleMultipartRequest(r *http.Request, maxBytes int64) ([]byte, error) {
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		return nil, err
	}

	for _, field := range uploadFields {
		file, _, err := r.FormFile(field)
		if errors.Is(err, http.ErrMissingFile) {
			continue
		}
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	}
	return nil, errNoUpload
}

func handleRawRequest(r *http.Request) ([]byte, error) {
	return io.ReadAll(r.Body)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.WithError(err).WithField("status", status).Debug("Failed to write JSON response")
	}
}

func (s *Server) sendErrorResponse(w http.ResponseWriter, code, message, details string, status int) {
	s.writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
		Details: details,
	})
}
