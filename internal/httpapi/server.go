// Package httpapi exposes the board over HTTP. Reads are served from the
// in-memory mirror; every mutation goes to the document store and shows up
// locally only when the next snapshot lands.
package httpapi

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/websocket"

	"kanbanlite-backend/internal/apperr"
	"kanbanlite-backend/internal/auth"
	"kanbanlite-backend/internal/blob"
	"kanbanlite-backend/internal/board"
)

type Server struct {
	svc      *board.Service
	state    *board.State
	authMW   auth.Middleware
	authH    *auth.Handler
	blobs    blob.Store
	validate *validator.Validate
	log      *logrus.Logger

	// analyticsDB may be nil; analytics.Log treats that as disabled.
	analyticsDB *sql.DB
}

func New(svc *board.Service, state *board.State, authMW auth.Middleware, authH *auth.Handler, blobs blob.Store, analyticsDB *sql.DB, log *logrus.Logger) *Server {
	return &Server{
		svc:         svc,
		state:       state,
		authMW:      authMW,
		authH:       authH,
		blobs:       blobs,
		validate:    validator.New(),
		log:         log,
		analyticsDB: analyticsDB,
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("POST /auth/register", s.authH.Register)
	mux.HandleFunc("POST /auth/login", s.authH.Login)
	mux.HandleFunc("GET /auth/me", s.authMW.Wrap(s.authH.Me))

	mux.HandleFunc("GET /projects", s.listProjects)
	mux.HandleFunc("POST /projects", s.authMW.Wrap(s.createProject))
	mux.HandleFunc("GET /projects/{id}", s.getProject)
	mux.HandleFunc("PUT /projects/{id}", s.authMW.Wrap(s.updateProject))
	mux.HandleFunc("DELETE /projects/{id}", s.authMW.Wrap(s.deleteProject))

	mux.HandleFunc("GET /projects/{id}/tasks", s.listProjectTasks)
	mux.HandleFunc("POST /projects/{id}/tasks", s.authMW.Wrap(s.createTask))
	mux.HandleFunc("POST /projects/{id}/reorder", s.authMW.Wrap(s.reorderTasks))

	mux.HandleFunc("GET /tasks/{id}", s.getTask)
	mux.HandleFunc("PATCH /tasks/{id}", s.authMW.Wrap(s.updateTask))
	mux.HandleFunc("DELETE /tasks/{id}", s.authMW.Wrap(s.deleteTask))
	mux.HandleFunc("POST /tasks/{id}/move", s.authMW.Wrap(s.moveTask))

	mux.HandleFunc("GET /tasks/{id}/comments", s.listComments)
	mux.HandleFunc("POST /tasks/{id}/comments", s.authMW.Wrap(s.addComment))
	mux.HandleFunc("PATCH /tasks/{id}/comments/{commentID}", s.authMW.Wrap(s.updateComment))
	mux.HandleFunc("DELETE /tasks/{id}/comments/{commentID}", s.authMW.Wrap(s.deleteComment))

	mux.HandleFunc("POST /attachments", s.authMW.Wrap(s.uploadAttachment))

	mux.Handle("GET /ws", websocket.Handler(s.serveWS))

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
	}
}

// writeError maps the error taxonomy onto HTTP statuses. Store failures are
// generic on purpose; validation failures carry the specific message so the
// triggering action can be corrected.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindInvalidIndex, apperr.KindInvalidTransition:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case apperr.KindNotFound:
		http.Error(w, err.Error(), http.StatusNotFound)
	case apperr.KindStore:
		s.log.WithError(err).Error("store operation failed")
		http.Error(w, "store error", http.StatusInternalServerError)
	default:
		s.log.WithError(err).Error("unexpected error")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// ready gates reads on the sync state: provisional data is never served.
func (s *Server) ready(w http.ResponseWriter) bool {
	if err := s.state.Err(); err != nil {
		http.Error(w, "loading failed", http.StatusServiceUnavailable)
		return false
	}
	if s.state.Loading() {
		http.Error(w, "loading", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}
