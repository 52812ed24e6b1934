package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"promosms/internal/database"
	"promosms/internal/errors"
	"promosms/internal/metrics"
	"promosms/internal/middleware"
	"promosms/internal/models"
	"promosms/internal/privacy"
	"promosms/internal/query"
	"promosms/internal/service"
	"promosms/internal/translator"
	"promosms/internal/validation"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type Server struct {
	router     *mux.Router
	cfg        *models.Config
	db         *database.Database
	submitter  *service.Submitter
	drafter    *service.Drafter
	translator *translator.Translator
	executor   *query.Executor
	logger     *logrus.Logger
	server     *http.Server
}

func NewServer(
	cfg *models.Config,
	db *database.Database,
	submitter *service.Submitter,
	drafter *service.Drafter,
	tr *translator.Translator,
	executor *query.Executor,
	logger *logrus.Logger,
) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		cfg:        cfg,
		db:         db,
		submitter:  submitter,
		drafter:    drafter,
		translator: tr,
		executor:   executor,
		logger:     logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/messages", s.handleSubmit()).Methods(http.MethodPost)
	api.HandleFunc("/messages/stats", s.handleStats()).Methods(http.MethodGet)
	api.HandleFunc("/messages/draft", s.handleDraft()).Methods(http.MethodPost)
	api.HandleFunc("/messages/{id:[0-9]+}", s.handleGetMessage()).Methods(http.MethodGet)
	api.HandleFunc("/query/translate", s.handleTranslate()).Methods(http.MethodPost)
	api.HandleFunc("/query", s.handleQuery()).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Server.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}

func (s *Server) handleSubmit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid request body"))
			return
		}

		result, err := s.submitter.Submit(r.Context(), req)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, result)
	}
}

func (s *Server) handleGetMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid message id"))
			return
		}

		msg, err := s.db.GetMessage(r.Context(), id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if msg == nil {
			s.writeError(w, errors.New(errors.ErrCodeNotFound,
				fmt.Sprintf("message %d not found", id)))
			return
		}
		s.writeJSON(w, http.StatusOK, messageView(msg))
	}
}

func (s *Server) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.db.Stats(r.Context())
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, stats)
	}
}

func (s *Server) handleDraft() http.HandlerFunc {
	type draftRequest struct {
		Description string `json:"description"`
	}
	type draftResponse struct {
		Draft     string `json:"draft"`
		Chars     int    `json:"chars"`
		Remaining int    `json:"remaining"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req draftRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid request body"))
			return
		}

		draft, err := s.drafter.Draft(r.Context(), req.Description)
		if err != nil {
			s.writeError(w, err)
			return
		}

		chars, remaining := validation.BodyCharCount(draft, s.cfg.SMS.MaxLength)
		s.writeJSON(w, http.StatusOK, draftResponse{
			Draft:     draft,
			Chars:     chars,
			Remaining: remaining,
		})
	}
}

func (s *Server) handleTranslate() http.HandlerFunc {
	type translateRequest struct {
		Text string `json:"text"`
	}
	type translateResponse struct {
		SQL string `json:"sql"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req translateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid request body"))
			return
		}

		statement, err := s.translator.Translate(r.Context(), req.Text)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, translateResponse{SQL: statement})
	}
}

func (s *Server) handleQuery() http.HandlerFunc {
	type queryRequest struct {
		SQL string `json:"sql"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, errors.New(errors.ErrCodeInvalidInput, "invalid request body"))
			return
		}

		result, err := s.executor.Execute(r.Context(), req.SQL)
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	}
}

// messageView shapes a message for API responses; the recipient travels
// masked, the stored plaintext stays inside the service.
func messageView(msg *models.Message) map[string]interface{} {
	view := map[string]interface{}{
		"key":        msg.Key,
		"created_at": msg.CreatedAt,
		"class":      msg.Class,
		"body":       msg.Body,
		"recipient":  privacy.MaskPhoneNumber(msg.Recipient),
		"status":     msg.Status,
	}
	if msg.ScheduledAt != nil {
		view["scheduled_at"] = msg.ScheduledAt
	}
	if msg.SentAt != nil {
		view["sent_at"] = msg.SentAt
	}
	if msg.GatewayCode != nil {
		view["gateway_code"] = *msg.GatewayCode
	}
	if msg.GatewayMessage != nil {
		view["gateway_message"] = *msg.GatewayMessage
	}
	if msg.GatewayMsgID != nil {
		view["gateway_msg_id"] = *msg.GatewayMsgID
	}
	return view
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)

	var status int
	var message string
	switch code {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidMessage, errors.ErrCodeTranslationRejected:
		status = http.StatusBadRequest
		message = err.Error()
	case errors.ErrCodeNotFound:
		status = http.StatusNotFound
		message = err.Error()
	case errors.ErrCodeInvalidState:
		status = http.StatusConflict
		message = err.Error()
	case errors.ErrCodeTranslationUnavailable:
		status = http.StatusServiceUnavailable
		message = "translation service unavailable"
	case errors.ErrCodeQueryExecutionFailed:
		status = http.StatusBadRequest
		message = "query execution failed"
	default:
		status = http.StatusInternalServerError
		message = errors.GetUserMessage(err)
		s.logger.WithError(err).Error("Request failed")
	}

	s.writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:    string(code),
		Message: message,
	}})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}
