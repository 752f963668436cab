package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/leslieo2/go-healthchecks/internal/checker"
	"github.com/leslieo2/go-healthchecks/internal/config"
	"github.com/leslieo2/go-healthchecks/internal/constants"
	"github.com/leslieo2/go-healthchecks/internal/server/middleware"
)

// reportHandler serves the aggregate report: every visible check keyed by name.
func (s *Server) reportHandler(w http.ResponseWriter, r *http.Request) {
	st := s.state.Load()

	report, err := st.checker.CreateReport(r)
	if err != nil {
		s.handleCheckError(w, r, err)
		return
	}

	status := http.StatusOK
	if !report.Healthy {
		status = errorCode(r, st.checks)
	}
	s.sendJSONResponse(w, r, st, status, report.Results)

	s.logger.Debug("Report served",
		zap.Int("checks", len(report.Results)),
		zap.Bool("healthy", report.Healthy),
		zap.Int("status_code", status),
	)
}

// serviceHandler serves one check, optionally walking into its result along
// the remaining path segments.
func (s *Server) serviceHandler(w http.ResponseWriter, r *http.Request) {
	st := s.state.Load()

	segments := splitPath(chi.URLParam(r, "*"))
	if len(segments) == 0 {
		s.sendErrorResponse(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
		return
	}

	result, err := st.checker.CreateServiceResult(r, segments[0], segments[1:]...)
	if err != nil {
		s.handleCheckError(w, r, err)
		return
	}

	switch v := result.(type) {
	case nil:
		s.sendErrorResponse(w, http.StatusNotFound, http.StatusText(http.StatusNotFound))
	case bool:
		status := http.StatusOK
		body := "true"
		if !v {
			status = errorCode(r, st.checks)
			body = "false"
		}
		s.sendTextResponse(w, r, st, status, []byte(body))
	case string:
		s.sendTextResponse(w, r, st, http.StatusOK, []byte(v))
	case []byte:
		s.sendTextResponse(w, r, st, http.StatusOK, v)
	default:
		s.sendJSONResponse(w, r, st, http.StatusOK, v)
	}
}

// handleCheckError maps checker errors onto HTTP. Anything that is not an
// access denial is a configuration problem.
func (s *Server) handleCheckError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, checker.ErrUnauthorized) {
		w.Header().Set(constants.HeaderWWWAuthenticate, constants.BasicRealmChallenge)
		s.sendErrorResponse(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	s.logger.Error("Check configuration error",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	s.sendErrorResponse(w, http.StatusInternalServerError, err.Error())
}

// errorCode is the status used for unhealthy results: a valid per-request
// override, else the configured code.
func errorCode(r *http.Request, checks config.ChecksConfig) int {
	if code, ok := middleware.ErrorCodeFromContext(r.Context()); ok {
		return code
	}
	return checks.ErrorCode
}

func splitPath(p string) []string {
	var segments []string
	for _, seg := range strings.Split(p, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}
