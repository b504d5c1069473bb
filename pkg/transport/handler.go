package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzhttp"

	"github.com/woopsa-protocol/woopsa-go/pkg/interaction"
	"github.com/woopsa-protocol/woopsa-go/pkg/version"
	"github.com/woopsa-protocol/woopsa-go/pkg/wire"
)

// DefaultPrefix is the URL prefix of all verbs.
const DefaultPrefix = "/woopsa"

// maxFormSize bounds request bodies.
const maxFormSize = 1 << 20

// Handler serves Woopsa verbs from an interaction server.
type Handler struct {
	server *interaction.Server
	prefix string
	logger *slog.Logger
}

// NewHandler creates a handler serving server below prefix.
// An empty prefix selects DefaultPrefix. logger may be nil.
func NewHandler(server *interaction.Server, prefix string, logger *slog.Logger) *Handler {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Handler{
		server: server,
		prefix: "/" + strings.Trim(prefix, "/"),
		logger: logger,
	}
}

// Compressed wraps the handler with gzip response compression.
func (h *Handler) Compressed() http.Handler {
	return gzhttp.GzipHandler(h)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set(version.Header, version.Current)

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest, ok := strings.CutPrefix(r.URL.Path, h.prefix+"/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	verb, path, _ := strings.Cut(rest, "/")
	action, err := wire.ParseAction(verb)
	if err != nil {
		h.writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormSize)
	if err := r.ParseForm(); err != nil {
		h.writeError(w, errors.Join(wire.ErrInvalidArgument, err))
		return
	}

	body, err := h.server.Serve(r.Context(), action, "/"+path, r.Form)
	if err != nil {
		h.debugLog("request failed", "action", action, "path", path, "error", err)
		writeJSON(w, StatusCode(err), body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	body, _ := errorBody(err)
	writeJSON(w, StatusCode(err), body)
}

func (h *Handler) debugLog(msg string, args ...any) {
	if h.logger != nil {
		h.logger.Debug(msg, args...)
	}
}

// StatusCode maps a protocol error onto an HTTP status.
func StatusCode(err error) int {
	switch wire.ErrorType(err) {
	case wire.TypeNotFound:
		return http.StatusNotFound
	case wire.TypeInvalidArgument, wire.TypeReadOnly:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error) ([]byte, error) {
	return json.Marshal(wire.NewError(err))
}

// writeJSON writes a pre-encoded JSON body.
func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
