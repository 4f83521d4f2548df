package httpapi

import (
	"net/http"
)

type createProjectRequest struct {
	Title  string `json:"title"`
	Budget string `json:"budget"`
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	au := authUserFrom(r.Context())
	var req createProjectRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request body")
		return
	}
	p, err := s.projectSvc.Create(r.Context(), au.UserID, req.Title, req.Budget)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseUUIDParam(r, "projectId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid project id")
		return
	}
	p, err := s.projectSvc.Get(r.Context(), projectID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (s *Server) listMyProjects(w http.ResponseWriter, r *http.Request) {
	au := authUserFrom(r.Context())
	projects, err := s.projectSvc.ListByClient(r.Context(), au.UserID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"projects": projects})
}

func (s *Server) listProjectBids(w http.ResponseWriter, r *http.Request) {
	projectID, err := parseUUIDParam(r, "projectId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "invalid project id")
		return
	}
	bids, err := s.negotiationSvc.ListProjectBids(r.Context(), projectID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"bids": bids})
}
