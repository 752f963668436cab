package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/leslieo2/go-healthchecks/internal/constants"
)

// sendJSONResponse encodes v and sends it with the given status
func (s *Server) sendJSONResponse(w http.ResponseWriter, r *http.Request, st *state, statusCode int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to serialize response", zap.String("path", r.URL.Path), zap.Error(err))
		s.sendErrorResponse(w, http.StatusInternalServerError, "failed to serialize response")
		return
	}
	s.send(w, r, st, statusCode, constants.ContentTypeJSON, body)
}

// sendTextResponse sends body verbatim as plain text
func (s *Server) sendTextResponse(w http.ResponseWriter, r *http.Request, st *state, statusCode int, body []byte) {
	s.send(w, r, st, statusCode, constants.ContentTypeText, body)
}

// send writes a rendered result. With ETags enabled a successful body is
// hashed and a matching If-None-Match turns the reply into 304.
func (s *Server) send(w http.ResponseWriter, r *http.Request, st *state, statusCode int, contentType string, body []byte) {
	if st.checks.ETag && statusCode >= 200 && statusCode < 300 {
		etag := computeETag(body)
		w.Header().Set(constants.HeaderETag, etag)
		if (r.Method == http.MethodGet || r.Method == http.MethodHead) && etagMatches(r.Header.Get(constants.HeaderIfNoneMatch), etag) {
			w.WriteHeader(http.StatusNotModified)
			return
		}
	}

	w.Header().Set(constants.HeaderContentType, contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(statusCode)
	_, _ = w.Write(body)
}

// sendErrorResponse sends a JSON error response
func (s *Server) sendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// computeETag returns a strong validator for body.
func computeETag(body []byte) string {
	return `"` + strconv.FormatUint(xxhash.Sum64(body), 16) + `"`
}

// etagMatches applies the weak comparison If-None-Match calls for.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
