package server

import (
	"context"
	"net/http"

	"github.com/jonathan/nightcrawler/internal/optimizer"
	"github.com/jonathan/nightcrawler/internal/settings"
)

// OptimizeRequest asks for one preference to be rewritten.
type OptimizeRequest struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value"`
}

// OptimizeResponse carries the result and, on success, the proposal to review.
type OptimizeResponse struct {
	optimizer.Result
	Proposal *optimizer.Proposal `json:"proposal,omitempty"`
}

// AcceptRequest stores a reviewed proposal.
type AcceptRequest struct {
	Key       string `json:"key" validate:"required"`
	Optimized string `json:"optimized"`
}

// BatchRequest runs batch optimization. Without Preferences the stored list
// is used. Save writes the outcome back to the store.
type BatchRequest struct {
	Preferences []settings.Preference `json:"preferences,omitempty"`
	Save        bool                  `json:"save"`
}

// BatchResponse is the outcome of a batch run.
type BatchResponse struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Saved   bool                  `json:"saved"`
	Report  optimizer.BatchReport `json:"report"`
}

// handleOptimize proposes a rewrite for one value. Nothing is stored.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req OptimizeRequest
	if err := s.decode(r, &req); err != nil {
		s.failure(w, err)
		return
	}
	proposal, result := s.optimizer.Propose(r.Context(), req.Key, req.Value)
	s.jsonResponse(w, http.StatusOK, OptimizeResponse{Result: result, Proposal: proposal})
}

// handleAcceptOptimization stores an accepted proposal.
func (s *Server) handleAcceptOptimization(w http.ResponseWriter, r *http.Request) {
	var req AcceptRequest
	if err := s.decode(r, &req); err != nil {
		s.failure(w, err)
		return
	}
	proposal := optimizer.Proposal{Key: req.Key, Optimized: req.Optimized}
	if err := optimizer.Accept(r.Context(), s.store, proposal); err != nil {
		s.failure(w, err)
		return
	}
	s.respondSettings(w, r, "Optimization applied")
}

// handleOptimizeAll optimizes every filled preference in one request.
func (s *Server) handleOptimizeAll(w http.ResponseWriter, r *http.Request) {
	req, entries, err := s.batchEntries(r)
	if err != nil {
		s.failure(w, err)
		return
	}
	report := s.optimizer.OptimizeAll(r.Context(), entries)
	resp, err := s.finishBatch(r.Context(), req, report)
	if err != nil {
		s.failure(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleOptimizeAllStream is handleOptimizeAll with per-entry progress
// events.
func (s *Server) handleOptimizeAllStream(w http.ResponseWriter, r *http.Request) {
	req, entries, err := s.batchEntries(r)
	if err != nil {
		s.failure(w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	report := s.optimizer.OptimizeAllWithProgress(r.Context(), entries, func(entry optimizer.EntryResult, attempted, total int) {
		if err := sse.WriteProgress(entry, attempted, total); err != nil {
			s.logger.WithError(err).Debug("progress event not delivered")
		}
	})
	resp, err := s.finishBatch(r.Context(), req, report)
	if err != nil {
		sse.WriteError(Message(err))
		return
	}
	sse.WriteComplete(resp)
}

func (s *Server) batchEntries(r *http.Request) (BatchRequest, []settings.Preference, error) {
	var req BatchRequest
	if r.ContentLength != 0 {
		if err := s.decode(r, &req); err != nil {
			return req, nil, err
		}
	}
	if req.Preferences != nil {
		return req, req.Preferences, nil
	}
	current, err := s.store.Get(r.Context())
	if err != nil {
		return req, nil, err
	}
	return req, current.PersonalPreferences.Ordered(), nil
}

func (s *Server) finishBatch(ctx context.Context, req BatchRequest, report optimizer.BatchReport) (BatchResponse, error) {
	resp := BatchResponse{Success: true, Message: report.Summary(), Report: report}
	if req.Save && report.Optimized > 0 {
		if err := s.store.UpdatePersonalPreferences(ctx, settings.FromEntries(report.Entries)); err != nil {
			return resp, err
		}
		resp.Saved = true
	}
	return resp, nil
}
