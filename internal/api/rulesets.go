package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/xiaobei/rulesconv/internal/events"
	"github.com/xiaobei/rulesconv/internal/fetcher"
	"github.com/xiaobei/rulesconv/internal/logger"
	"github.com/xiaobei/rulesconv/internal/storage"
)

// rulesetRequest is the body of POST/PUT ruleset calls. Enabled defaults to true.
type rulesetRequest struct {
	Group    string `json:"group"`
	Path     string `json:"path"`
	Type     string `json:"type"`
	Interval int    `json:"interval"`
	Priority int    `json:"priority"`
	Enabled  *bool  `json:"enabled"`
}

func (r rulesetRequest) ruleset() storage.Ruleset {
	return storage.Ruleset{
		Group:          r.Group,
		Path:           r.Path,
		Type:           r.Type,
		UpdateInterval: r.Interval,
		Priority:       r.Priority,
		Enabled:        lo.FromPtrOr(r.Enabled, true),
	}
}

// ==================== Ruleset API ====================

func (s *Server) getRulesets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.rulesets.GetAll()})
}

func (s *Server) addRuleset(c *gin.Context) {
	var req rulesetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rs, err := s.rulesets.Add(req.ruleset())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rs})
}

func (s *Server) updateRuleset(c *gin.Context) {
	var req rulesetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rs := req.ruleset()
	rs.ID = c.Param("id")
	if err := s.rulesets.Update(rs); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.rulesets.Get(rs.ID)})
}

func (s *Server) replaceRulesets(c *gin.Context) {
	var reqs []rulesetRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rulesets := lo.Map(reqs, func(r rulesetRequest, i int) storage.Ruleset {
		rs := r.ruleset()
		if rs.Priority == 0 {
			rs.Priority = i
		}
		return rs
	})
	if err := s.rulesets.Replace(rulesets); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.rulesets.GetAll()})
}

func (s *Server) deleteRuleset(c *gin.Context) {
	if err := s.rulesets.Delete(c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Deleted successfully"})
}

// ==================== Settings API ====================

func (s *Server) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.store.GetSettings()})
}

func (s *Server) updateSettings(c *gin.Context) {
	settings := *s.store.GetSettings()
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validateSettings(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.UpdateSettings(&settings); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Timeout and TTL live in the fetcher
	s.convert.SetFetcher(fetcher.FromSettings(s.store, &settings))
	// Restart scheduler (interval may have been updated)
	s.scheduler.Restart()
	s.bus.Publish(events.SettingsChanged, settings)
	logger.Printf("[API] Settings updated")

	c.JSON(http.StatusOK, gin.H{"data": settings, "message": "Updated successfully"})
}

func validateSettings(s *storage.Settings) error {
	switch {
	case s.MaxAllowedRules < 0:
		return fmt.Errorf("max_allowed_rules must not be negative")
	case s.CacheTTL < 0:
		return fmt.Errorf("cache_ttl must not be negative")
	case s.RefreshInterval < 0:
		return fmt.Errorf("refresh_interval must not be negative")
	case s.FetchTimeout < 0:
		return fmt.Errorf("fetch_timeout must not be negative")
	}
	return nil
}
