// Package httpapi binds the engine and transport shim to the exact HTTP
// surface the registry contract requires. Routing itself is deliberately
// thin: request decoding/routing is out of the engine's scope, so this
// layer exists only to give it a runnable home.
package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/onelson/estuary-go/internal/apperrors"
	"github.com/onelson/estuary-go/internal/logging"
	"github.com/onelson/estuary-go/internal/registry/engine"
	"github.com/onelson/estuary-go/internal/registry/gittransport"
)

// Server wires an Engine and a git transport Shim onto a ServeMux.
type Server struct {
	engine     *engine.Engine
	transport  *gittransport.Shim
	publishKey string
}

// New builds a Server. publishKey may be empty, in which case auth is a
// no-op.
func New(e *engine.Engine, shim *gittransport.Shim, publishKey string) *Server {
	return &Server{engine: e, transport: shim, publishKey: publishKey}
}

// Mux returns an http.Handler implementing the registry's full HTTP
// surface using the standard library's method-aware pattern matching.
func (s *Server) Mux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /api/v1/crates/new", s.withCorrelation(s.authenticated(s.handlePublish)))
	mux.HandleFunc("DELETE /api/v1/crates/{name}/{version}/yank", s.withCorrelation(s.authenticated(s.handleYank)))
	mux.HandleFunc("PUT /api/v1/crates/{name}/{version}/unyank", s.withCorrelation(s.authenticated(s.handleUnyank)))
	mux.HandleFunc("GET /api/v1/crates/{name}/{version}/download", s.withCorrelation(s.handleDownload))
	mux.HandleFunc("GET /api/v1/crates", s.withCorrelation(s.handleSearch))
	mux.HandleFunc("GET /api/v1/crates/me", s.withCorrelation(s.handleLoginStub))
	mux.HandleFunc("GET /api/v1/crates/{name}/owners", s.withCorrelation(s.handleOwnersList))
	mux.HandleFunc("PUT /api/v1/crates/{name}/owners", s.withCorrelation(s.authenticated(s.handleOwnersAdd)))
	mux.HandleFunc("DELETE /api/v1/crates/{name}/owners", s.withCorrelation(s.authenticated(s.handleOwnersRemove)))
	mux.HandleFunc("GET /git/index/info/refs", s.withCorrelation(s.handleInfoRefs))
	mux.HandleFunc("POST /git/index/git-upload-pack", s.withCorrelation(s.handleUploadPack))
	return mux
}

func (s *Server) withCorrelation(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := logging.NewCorrelationID()
		ctx := logging.WithCorrelationID(r.Context(), id)
		next(w, r.WithContext(ctx))
	}
}

func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.publishKey == "" {
			next(w, r)
			return
		}
		got := r.Header.Get("Authorization")
		if got == "" {
			writeAPIError(w, apperrors.New(apperrors.CodeUnauthorized, "missing Authorization header"))
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.publishKey)) != 1 {
			writeAPIError(w, apperrors.New(apperrors.CodeForbidden, "invalid publish key"))
			return
		}
		next(w, r)
	}
}

// writeAPIError implements the §6.2 convention: the JSON /api/v1/*
// endpoints always answer 200 OK, encoding failures as a JSON error body.
// Client-induced failures are logged at warn, everything else at error.
func writeAPIError(w http.ResponseWriter, env apperrors.Envelope) {
	logger := logging.Log()
	event := logger.Error
	switch env.Code {
	case apperrors.CodeInvalidPayload, apperrors.CodeInvalidPackageName, apperrors.CodeInvalidVersion,
		apperrors.CodePublish, apperrors.CodeNotFound, apperrors.CodeUnauthorized, apperrors.CodeForbidden:
		event = logger.Warn
	}
	event().Str("code", env.Code).Str("message", env.Message).Msg("api request failed")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"errors": []map[string]string{{"detail": env.Message}},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeAPIError(w, apperrors.WrapError(apperrors.CodeInvalidPayload, "failed to read request body", err))
		return
	}

	result, env := s.engine.Publish(r.Context(), body)
	if env.Code != "" {
		writeAPIError(w, env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"warnings": result.Warnings})
}

func (s *Server) handleYank(w http.ResponseWriter, r *http.Request) {
	s.setYanked(w, r, true)
}

func (s *Server) handleUnyank(w http.ResponseWriter, r *http.Request) {
	s.setYanked(w, r, false)
}

func (s *Server) setYanked(w http.ResponseWriter, r *http.Request, yanked bool) {
	name := r.PathValue("name")
	version := r.PathValue("version")
	if env := s.engine.SetYanked(r.Context(), name, version, yanked); env.Code != "" {
		writeAPIError(w, env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	version := r.PathValue("version")

	data, env := s.engine.DownloadArchive(r.Context(), name, version)
	if env.Code != "" {
		http.Error(w, env.Message, apperrors.HTTPStatus(env.Code))
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	perPage := 10
	if raw := r.URL.Query().Get("per_page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			perPage = n
		}
	}

	results, env := s.engine.Search(r.Context(), q, perPage)
	if env.Code != "" {
		writeAPIError(w, env)
		return
	}

	crates := make([]map[string]string, len(results))
	for i, r := range results {
		crates[i] = map[string]string{
			"name":        r.Name,
			"max_version": r.MaxVersion,
			"description": r.Description,
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"crates": crates,
		"meta":   map[string]int{"total": len(crates)},
	})
}

func (s *Server) handleLoginStub(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte("<html><body>estuary has no real auth; any token is accepted</body></html>"))
}

// Owner management is out of scope (no ACL model); these stubs exist only
// so clients that expect the endpoint to resolve don't hard-fail.
func (s *Server) handleOwnersList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"users": []string{}})
}

func (s *Server) handleOwnersAdd(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "msg": "owners add"})
}

func (s *Server) handleOwnersRemove(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "msg": "owners remove"})
}

func (s *Server) handleInfoRefs(w http.ResponseWriter, r *http.Request) {
	service := r.URL.Query().Get("service")
	const prefix = "git-"
	if len(service) > len(prefix) && service[:len(prefix)] == prefix {
		service = service[len(prefix):]
	} else {
		service = ""
	}

	body, env := s.transport.InfoRefs(r.Context(), service)
	if env.Code != "" {
		http.Error(w, env.Message, apperrors.HTTPStatus(env.Code))
		return
	}
	w.Header().Set("Content-Type", "application/x-git-"+service+"-advertisement")
	w.Write(body)
}

func (s *Server) handleUploadPack(w http.ResponseWriter, r *http.Request) {
	body, env := s.transport.UploadPackResult(r.Context(), r.Body)
	if env.Code != "" {
		http.Error(w, env.Message, apperrors.HTTPStatus(env.Code))
		return
	}
	w.Header().Set("Content-Type", "application/x-git-upload-pack-result")
	w.Write(body)
}
