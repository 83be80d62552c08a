package server

import (
	"io"
	"net/http"
	"strings"

	"api-testgen/internal/parser"
	"api-testgen/internal/types"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// DocumentRequest carries a document inline or as a URL to fetch
type DocumentRequest struct {
	Raw  string `json:"raw"`
	Hint string `json:"hint"`
	URL  string `json:"url"`
}

// RunRequest selects the test cases to run; empty means all
type RunRequest struct {
	IDs []string `json:"ids"`
}

// RunResponse is the outcome of a batch run
type RunResponse struct {
	Results []types.ExecutionResult `json:"results"`
	Errors  []string                `json:"errors,omitempty"`
}

func (s *Server) getState(c *gin.Context) {
	success(c, http.StatusOK, s.controller.State())
}

func (s *Server) loadDocument(c *gin.Context) {
	var req DocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	raw, hint := req.Raw, parser.ParseHint(req.Hint)
	if req.URL != "" {
		if s.fetcher == nil {
			failure(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "document fetching is not configured")
			return
		}
		var err error
		raw, hint, err = s.fetcher.Fetch(c.Request.Context(), req.URL)
		if err != nil {
			failure(c, http.StatusBadGateway, ErrCodeBadRequest, err.Error())
			return
		}
	}
	if strings.TrimSpace(raw) == "" {
		failure(c, http.StatusBadRequest, ErrCodeBadRequest, "either raw or url is required")
		return
	}

	if err := s.controller.LoadDocument(raw, hint); err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, s.controller.State().Document)
}

func (s *Server) next(c *gin.Context) {
	if err := s.controller.Next(); err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, s.controller.State())
}

func (s *Server) back(c *gin.Context) {
	s.controller.Back()
	success(c, http.StatusOK, s.controller.State())
}

func (s *Server) reset(c *gin.Context) {
	s.controller.Reset()
	success(c, http.StatusOK, s.controller.State())
}

func (s *Server) analyze(c *gin.Context) {
	if err := s.controller.Reanalyze(); err != nil {
		fail(c, err)
		return
	}
	state := s.controller.State()
	success(c, http.StatusOK, gin.H{"scenarios": state.Scenarios, "relations": state.Relations})
}

func (s *Server) generate(c *gin.Context) {
	if err := s.controller.Regenerate(); err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, s.controller.State().TestCases)
}

func (s *Server) addScenario(c *gin.Context) {
	var scenario types.Scenario
	if err := c.ShouldBindJSON(&scenario); err != nil {
		failure(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	added, err := s.controller.AddScenario(scenario)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusCreated, added)
}

func (s *Server) removeScenario(c *gin.Context) {
	if err := s.controller.RemoveScenario(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) addRelation(c *gin.Context) {
	var relation types.Relation
	if err := c.ShouldBindJSON(&relation); err != nil {
		failure(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	added, err := s.controller.AddRelation(relation)
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusCreated, added)
}

func (s *Server) removeRelation(c *gin.Context) {
	if err := s.controller.RemoveRelation(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// suggestRelations asks the model for relations and stores the valid ones as custom relations
func (s *Server) suggestRelations(c *gin.Context) {
	if s.suggester == nil {
		failure(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "relation suggestions are not configured")
		return
	}

	suggestions, err := s.suggester.Suggest(c.Request.Context(), s.controller.State().Endpoints)
	if err != nil {
		failure(c, http.StatusBadGateway, ErrCodeUnavailable, err.Error())
		return
	}

	added := make([]types.Relation, 0, len(suggestions))
	for _, suggestion := range suggestions {
		relation, err := s.controller.AddRelation(suggestion)
		if err != nil {
			s.logger.Debug("suggested relation rejected", zap.Error(err))
			continue
		}
		added = append(added, relation)
	}
	success(c, http.StatusOK, added)
}

func (s *Server) runOne(c *gin.Context) {
	if s.coordinator == nil {
		failure(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "no execution target configured")
		return
	}
	result, err := s.coordinator.RunOne(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, result)
}

func (s *Server) runAll(c *gin.Context) {
	if s.coordinator == nil {
		failure(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "no execution target configured")
		return
	}

	var req RunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			failure(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
	}
	if len(req.IDs) == 0 {
		for _, tc := range s.controller.State().TestCases {
			req.IDs = append(req.IDs, tc.ID)
		}
	}

	results, err := s.coordinator.RunAll(c.Request.Context(), req.IDs)
	resp := RunResponse{Results: results}
	if err != nil {
		resp.Errors = strings.Split(err.Error(), "\n")
	}
	success(c, http.StatusOK, resp)
}

func (s *Server) exportSnapshot(c *gin.Context) {
	data, err := s.controller.Serialize()
	if err != nil {
		fail(c, err)
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

func (s *Server) importSnapshot(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		failure(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	if err := s.controller.Restore(data); err != nil {
		fail(c, err)
		return
	}
	success(c, http.StatusOK, s.controller.State())
}
