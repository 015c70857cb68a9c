package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	votationengine "quorum/contexts/meeting-governance/votation-engine"
	votationerrors "quorum/contexts/meeting-governance/votation-engine/domain/errors"
	votationhttp "quorum/contexts/meeting-governance/votation-engine/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "quorum/internal/platform/httpserver/docs"
)

const ticketHeader = "X-Ticket-Code"

type Server struct {
	mux       *http.ServeMux
	logger    *slog.Logger
	addr      string
	votations votationengine.Module
}

func New(
	votations votationengine.Module,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:       http.NewServeMux(),
		logger:    logger,
		addr:      addr,
		votations: votations,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /api/meetings/{meeting_id}/propositions/{proposition_id}/votations", s.handleStartVotation)
	s.mux.HandleFunc("POST /api/meetings/{meeting_id}/propositions/{proposition_id}/votes", s.handleCastVote)
	s.mux.HandleFunc("GET /api/propositions/{proposition_id}/votations", s.handleListVotations)
	s.mux.HandleFunc("GET /api/propositions/{proposition_id}/votations/latest", s.handleLatestVotation)
	s.mux.HandleFunc("POST /api/propositions/{proposition_id}/votations/stop", s.handleStopVotation)
	s.mux.HandleFunc("POST /api/propositions/{proposition_id}/votations/revote", s.handleRevote)
	s.mux.HandleFunc("GET /api/votations/{votation_id}/my-vote", s.handleCheckVote)
	s.mux.HandleFunc("GET /api/votations/{votation_id}/results", s.handleResults)
	s.mux.HandleFunc("POST /api/votations/{votation_id}/manual-ballots", s.handleManualBallots)
	s.mux.HandleFunc("DELETE /api/ballots/{ballot_id}", s.handleRevokeVote)
}

func (s *Server) handleStartVotation(w http.ResponseWriter, r *http.Request) {
	resp, err := s.votations.Handler.StartVotationHandler(
		r.Context(),
		r.PathValue("meeting_id"),
		r.PathValue("proposition_id"),
	)
	if err != nil {
		s.writeVotationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleStopVotation(w http.ResponseWriter, r *http.Request) {
	resp, err := s.votations.Handler.StopVotationHandler(r.Context(), r.PathValue("proposition_id"))
	if err != nil {
		s.writeVotationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRevote(w http.ResponseWriter, r *http.Request) {
	resp, err := s.votations.Handler.RevoteHandler(r.Context(), r.PathValue("proposition_id"))
	if err != nil {
		s.writeVotationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListVotations(w http.ResponseWriter, r *http.Request) {
	resp, err := s.votations.Handler.ListVotationsHandler(r.Context(), r.PathValue("proposition_id"))
	if err != nil {
		s.writeVotationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLatestVotation(w http.ResponseWriter, r *http.Request) {
	resp, err := s.votations.Handler.LatestVotationHandler(r.Context(), r.PathValue("proposition_id"))
	if err != nil {
		s.writeVotationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.Header.Get(ticketHeader))
	if code == "" {
		writeVotationError(w, http.StatusBadRequest, "missing_ticket", ticketHeader+" header is required")
		return
	}

	var req votationhttp.CastVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVotationError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}

	resp, err := s.votations.Handler.CastVoteHandler(
		r.Context(),
		code,
		r.PathValue("meeting_id"),
		r.PathValue("proposition_id"),
		req,
	)
	if err != nil {
		s.writeVotationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCheckVote(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.Header.Get(ticketHeader))
	if code == "" {
		writeVotationError(w, http.StatusBadRequest, "missing_ticket", ticketHeader+" header is required")
		return
	}
	resp, err := s.votations.Handler.CheckVoteHandler(r.Context(), code, r.PathValue("votation_id"))
	if err != nil {
		s.writeVotationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	resp, err := s.votations.Handler.ResultsHandler(r.Context(), r.PathValue("votation_id"))
	if err != nil {
		s.writeVotationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleManualBallots(w http.ResponseWriter, r *http.Request) {
	var req votationhttp.ManualBallotsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeVotationError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return
	}
	resp, err := s.votations.Handler.ManualBallotsHandler(r.Context(), r.PathValue("votation_id"), req)
	if err != nil {
		s.writeVotationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleRevokeVote(w http.ResponseWriter, r *http.Request) {
	resp, err := s.votations.Handler.RevokeVoteHandler(r.Context(), r.PathValue("ballot_id"))
	if err != nil {
		s.writeVotationDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeVotationDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, votationerrors.ErrVotationAlreadyOpen):
		writeVotationError(w, http.StatusConflict, "votation_already_open", err.Error())
	case errors.Is(err, votationerrors.ErrNoOpenVotation):
		writeVotationError(w, http.StatusConflict, "no_open_votation", err.Error())
	case errors.Is(err, votationerrors.ErrVotationClosed):
		writeVotationError(w, http.StatusConflict, "votation_closed", err.Error())
	case errors.Is(err, votationerrors.ErrWrongMeeting):
		writeVotationError(w, http.StatusBadRequest, "wrong_meeting", err.Error())
	case errors.Is(err, votationerrors.ErrPropositionNotInMeeting):
		writeVotationError(w, http.StatusBadRequest, "proposition_not_in_meeting", err.Error())
	case errors.Is(err, votationerrors.ErrVoteOptionNotInProposal):
		writeVotationError(w, http.StatusBadRequest, "invalid_vote_option", err.Error())
	case errors.Is(err, votationerrors.ErrNotFound):
		writeVotationError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, votationerrors.ErrConflict):
		writeVotationError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, votationerrors.ErrInvalidArgument):
		writeVotationError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		s.logger.Error("votation request failed",
			"event", "http_votation_internal_error",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"error", err.Error(),
		)
		writeVotationError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeVotationError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, votationhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
