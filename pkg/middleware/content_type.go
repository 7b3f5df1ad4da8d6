package middleware

import (
	"net/http"
	"smartassist/pkg/logger"
	"strings"
)

const (
	ContentTypeJSON      = "application/json"
	ContentTypeMultipart = "multipart/form-data"
)

// ContentTypeValidation requires JSON bodies on mutating requests. Paths listed
// in uploadPaths accept multipart/form-data instead.
func ContentTypeValidation(log *logger.Logger, uploadPaths ...string) func(http.Handler) http.Handler {
	uploads := make(map[string]struct{}, len(uploadPaths))
	for _, p := range uploadPaths {
		uploads[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if requiresContentType(r.Method) {
				contentType := extractContentType(r.Header.Get("Content-Type"))

				expected := ContentTypeJSON
				if _, ok := uploads[r.URL.Path]; ok {
					expected = ContentTypeMultipart
				}

				if contentType != expected {
					rejectInvalidContentType(w, log, r, contentType, expected)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func requiresContentType(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch
}

func extractContentType(header string) string {
	if header == "" {
		return ""
	}

	parts := strings.Split(header, ";")
	return strings.ToLower(strings.TrimSpace(parts[0]))
}

func rejectInvalidContentType(w http.ResponseWriter, log *logger.Logger, r *http.Request, contentType, expected string) {
	log.Warn("Invalid Content-Type header",
		"request_id", RequestIDFromContext(r.Context()),
		"content_type", contentType,
		"expected", expected,
		"path", r.URL.Path,
		"method", r.Method,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnsupportedMediaType)
	_, _ = w.Write([]byte(`{"error":"Content-Type must be ` + expected + `","code":"INVALID_INPUT"}`))
}
