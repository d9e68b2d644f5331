package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/xiaobei/rulesconv/internal/service"
)

const textPlain = "text/plain; charset=utf-8"

// ==================== Conversion API ====================

func (s *Server) convertConfig(c *gin.Context) {
	var req service.ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Target == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target is required"})
		return
	}

	text, err := s.convert.Convert(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": text})
}

// previewConfig renders the stored rulesets into an empty document.
func (s *Server) previewConfig(c *gin.Context) {
	text, err := s.convert.Convert(c.Request.Context(), service.ConvertRequest{Target: c.Param("target")})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, textPlain, []byte(text))
}

func (s *Server) getRuleset(c *gin.Context) {
	kind, err := strconv.Atoi(c.Query("type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid type parameter"})
		return
	}
	if c.Query("url") == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	text, err := s.convert.Ruleset(c.Request.Context(), kind, c.Query("url"), c.Query("group"))
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, textPlain, []byte(text))
}

func (s *Server) refreshCache(c *gin.Context) {
	result := s.scheduler.RunOnce(c.Request.Context())
	if result.Error != "" {
		c.JSON(http.StatusOK, gin.H{"data": result, "warning": "Refreshed with errors: " + result.Error})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}
