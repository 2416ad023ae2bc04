package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"
	"github.com/mostlygeek/meltdown/bus"
	"github.com/mostlygeek/meltdown/event"
	"github.com/mostlygeek/meltdown/logging"
	"github.com/mostlygeek/meltdown/selector"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const maxBodySize = 4 << 20

// Server exposes a bus over HTTP.
type Server struct {
	bus       *bus.Bus
	monitor   *logging.Monitor
	logger    zerolog.Logger
	ginEngine *gin.Engine

	shutdownCtx    context.Context
	shutdownCancel context.CancelFunc
}

// New builds the HTTP routes for b. monitor may be nil, in which case the
// log endpoints return 404.
func New(b *bus.Bus, monitor *logging.Monitor, logger zerolog.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		bus:            b,
		monitor:        monitor,
		logger:         logger,
		ginEngine:      gin.New(),
		shutdownCtx:    ctx,
		shutdownCancel: cancel,
	}

	s.ginEngine.Use(gin.Recovery(), s.requestLogger)

	s.ginEngine.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	s.ginEngine.POST("/events/:key", s.notifyHandler)
	s.ginEngine.GET("/registrations/:key", s.registrationsHandler)

	// in server_loghandlers.go
	s.ginEngine.GET("/logs", s.sendLogsHandler)
	s.ginEngine.GET("/logs/stream", s.streamLogsHandler)

	return s
}

// Handler returns the gzip wrapped http.Handler.
func (s *Server) Handler() http.Handler {
	return gzhttp.GzipHandler(s.ginEngine)
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("address", addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.shutdownCancel()
		return err
	case <-ctx.Done():
	}

	// unblock log streams before waiting on connections
	s.shutdownCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug().
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("status", c.Writer.Status()).
		Dur("duration", time.Since(start)).
		Msg("request")
}

func (s *Server) notifyHandler(c *gin.Context) {
	key := c.Param("key")

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodySize))
	if err != nil {
		c.String(http.StatusBadRequest, "could not read request body")
		return
	}

	ev, err := parseEvent(c.GetHeader("Content-Type"), body)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}

	if err := s.bus.Notify(c.Request.Context(), key, ev); err != nil {
		if errors.Is(err, bus.ErrNoConsumers) {
			c.String(http.StatusNotFound, err.Error())
			return
		}
		c.String(http.StatusInternalServerError, err.Error())
		return
	}

	resp, err := sjson.SetBytes([]byte(`{}`), "id", ev.ID)
	if err == nil {
		resp, err = sjson.SetBytes(resp, "key", key)
	}
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, fmt.Errorf("error encoding response"))
		return
	}
	c.Data(http.StatusAccepted, "application/json", resp)
}

// parseEvent decodes a request body. JSON bodies are read field by field so
// that data keeps whatever shape the client sent.
func parseEvent(contentType string, body []byte) (*event.Event, error) {
	format, err := event.ParseFormat(contentType)
	if err != nil {
		return nil, err
	}

	if format == event.FormatCBOR {
		return event.Unmarshal(body, event.FormatCBOR)
	}

	if len(strings.TrimSpace(string(body))) == 0 {
		return event.New(nil), nil
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("invalid JSON")
	}

	parsed := gjson.ParseBytes(body)
	if !parsed.IsObject() {
		return nil, fmt.Errorf("event body must be a JSON object")
	}

	ev := event.New(parsed.Get("data").Value())

	replyTo := parsed.Get("replyTo")
	if !replyTo.Exists() {
		replyTo = parsed.Get("reply-to")
	}
	if replyTo.Exists() {
		ev.ReplyTo = replyTo.Value()
	}

	parsed.Get("headers").ForEach(func(k, v gjson.Result) bool {
		ev.Headers.Set(k.String(), v.String())
		return true
	})

	if id := parsed.Get("id"); id.Exists() && id.String() != "" {
		ev.ID = id.String()
	}
	return ev, nil
}

type registrationView struct {
	ID             uint64 `json:"id"`
	Selector       string `json:"selector"`
	Default        bool   `json:"default"`
	CancelAfterUse bool   `json:"cancelAfterUse"`
}

func (s *Server) registrationsHandler(c *gin.Context) {
	key := c.Param("key")
	regs := s.bus.Select(key)

	views := make([]registrationView, 0, len(regs))
	for _, reg := range regs {
		views = append(views, registrationView{
			ID:             reg.ID(),
			Selector:       selector.Describe(reg.Selector()),
			Default:        reg.IsDefault(),
			CancelAfterUse: reg.CancelAfterUse(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"key":           key,
		"registrations": views,
	})
}
