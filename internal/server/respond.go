package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/datawatch/datawatch/pkg/errors"
)

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithField("error", err).Error("Cannot encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	appErr, ok := err.(*apperrors.AppError)
	if !ok {
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: errorBody{Code: apperrors.CodeInternalError, Message: err.Error()},
		})
		return
	}

	s.writeJSON(w, httpStatus(appErr), errorResponse{
		Error: errorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
	})
}

// httpStatus refines the error type's default status with per-code mappings
// that only matter at the HTTP boundary.
func httpStatus(err *apperrors.AppError) int {
	switch err.Code {
	case apperrors.CodeDuplicateFile:
		return http.StatusConflict
	case apperrors.CodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case apperrors.CodeFileNotFound, apperrors.CodeBaselineNotFound, apperrors.CodeReportNotFound:
		return http.StatusNotFound
	case apperrors.CodeWriteFailed, apperrors.CodeReadFailed,
		apperrors.CodeDeleteFailed, apperrors.CodeConnectionFailed:
		return http.StatusInternalServerError
	}
	return err.HTTPStatus
}
