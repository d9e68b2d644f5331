package api

import (
	"net/http"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/xiaobei/rulesconv/internal/logger"
	"github.com/xiaobei/rulesconv/pkg/utils"
)

// ProcessStats describes the running server process.
type ProcessStats struct {
	PID        int     `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	MemoryMB   float64 `json:"memory_mb"`
	Memory     string  `json:"memory"`
	Goroutines int     `json:"goroutines"`
}

// ==================== Monitoring API ====================

func (s *Server) getStatus(c *gin.Context) {
	rulesets := s.rulesets.GetAll()
	enabled := 0
	for _, rs := range rulesets {
		if rs.Enabled {
			enabled++
		}
	}

	result := gin.H{
		"version":          s.version,
		"uptime_seconds":   int64(time.Since(s.startedAt).Seconds()),
		"rulesets":         len(rulesets),
		"rulesets_enabled": enabled,
		"scheduler": gin.H{
			"running":     s.scheduler.IsRunning(),
			"interval":    s.scheduler.GetInterval().String(),
			"next_update": s.scheduler.GetNextUpdateTime(),
		},
	}

	pid := int32(os.Getpid())
	if proc, err := process.NewProcess(pid); err == nil {
		stats := ProcessStats{PID: int(pid), Goroutines: runtime.NumGoroutine()}
		stats.CPUPercent, _ = proc.CPUPercent()
		if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
			stats.MemoryMB = float64(memInfo.RSS) / 1024 / 1024
			stats.Memory = utils.FormatBytes(memInfo.RSS)
		}
		result["process"] = stats
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) getLogs(c *gin.Context) {
	lines := 200 // Default to 200 lines
	if linesParam := c.Query("lines"); linesParam != "" {
		if n, err := strconv.Atoi(linesParam); err == nil && n > 0 {
			lines = n
		}
	}

	logs, err := logger.ReadAppLogs(lines)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": logs})
}

// getRecentLogs serves the in-memory buffer with level/search/since filters.
func (s *Server) getRecentLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	sinceID, _ := strconv.ParseInt(c.DefaultQuery("since", "0"), 10, 64)
	entries := logger.Recent(limit, c.Query("level"), c.Query("search"), sinceID)
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

// streamEvents forwards bus events as Server-Sent Events until the client leaves.
func (s *Server) streamEvents(c *gin.Context) {
	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub.ID)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events:
			if !ok {
				return
			}
			c.SSEvent(ev.Type, ev)
			c.Writer.Flush()
		}
	}
}
