package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) sendLogsHandler(c *gin.Context) {
	if s.monitor == nil {
		c.String(http.StatusNotFound, "logging monitor not configured")
		return
	}

	c.Header("Content-Type", "text/plain")
	if _, err := c.Writer.Write(s.monitor.History()); err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
	}
}

func (s *Server) streamLogsHandler(c *gin.Context) {
	if s.monitor == nil {
		c.String(http.StatusNotFound, "logging monitor not configured")
		return
	}

	c.Header("Content-Type", "text/plain")
	c.Header("Transfer-Encoding", "chunked")
	c.Header("X-Content-Type-Options", "nosniff")
	// prevent nginx from buffering streamed logs
	c.Header("X-Accel-Buffering", "no")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.AbortWithError(http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	if _, skipHistory := c.GetQuery("no-history"); !skipHistory {
		if history := s.monitor.History(); len(history) != 0 {
			c.Writer.Write(history)
			flusher.Flush()
		}
	}

	sendChan := make(chan []byte, 10)
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	defer s.monitor.OnLogData(func(data []byte) {
		select {
		case sendChan <- data:
		case <-ctx.Done():
		default:
		}
	})()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownCtx.Done():
			return
		case data := <-sendChan:
			c.Writer.Write(data)
			flusher.Flush()
		}
	}
}
