package server

import (
	"net/http"
	"strings"

	"github.com/jonathan/nightcrawler/internal/fetch"
	"github.com/jonathan/nightcrawler/internal/matching"
	"github.com/jonathan/nightcrawler/internal/page"
)

// MatchRequest asks for a job-fit verdict. Either JobDescription or URL must
// be set. URL must be http(s); saved pages are only read by the match command.
type MatchRequest struct {
	JobDescription string `json:"jobDescription"`
	CompanyInfo    string `json:"companyInfo"`
	URL            string `json:"url"`
}

// MatchResponse is the analysis result plus the text it was based on.
type MatchResponse struct {
	matching.Result
	Source      string `json:"source,omitempty"`
	CompanyInfo string `json:"companyInfo,omitempty"`
}

// handleMatch runs a job-fit analysis against the stored preferences.
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if err := s.decode(r, &req); err != nil {
		s.failure(w, err)
		return
	}

	description := strings.TrimSpace(req.JobDescription)
	company := strings.TrimSpace(req.CompanyInfo)
	source := "request"

	if description == "" {
		location := strings.TrimSpace(req.URL)
		if location == "" {
			s.failure(w, &ErrValidation{Field: "jobDescription", Message: "jobDescription or url is required"})
			return
		}
		if !fetch.IsURL(location) {
			s.failure(w, &ErrValidation{Field: "url", Message: "url must start with http:// or https://"})
			return
		}
		if s.loadPost == nil {
			s.failure(w, &ErrValidation{Field: "url", Message: "loading postings by URL is not enabled"})
			return
		}
		posting, err := s.loadPost(r.Context(), location)
		if err != nil {
			s.failure(w, err)
			return
		}
		description = posting.JobDescription
		if company == "" {
			company = posting.CompanyInfo
		}
		source = posting.Source
	}

	preferences := page.MsgPreferenceError
	if prefs, err := s.store.Get(r.Context()); err != nil {
		s.logger.WithError(err).Warn("loading preferences for match failed")
	} else {
		preferences = matching.FormatPreferences(prefs.PersonalPreferences)
	}

	result := s.analyzer.Analyze(r.Context(), matching.Request{
		JobDescription:  description,
		CompanyInfo:     company,
		UserPreferences: preferences,
	})
	s.jsonResponse(w, http.StatusOK, MatchResponse{Result: result, Source: source, CompanyInfo: company})
}
