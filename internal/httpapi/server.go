// Package httpapi serves health, metrics and read-only guild state over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"aoi/internal/command"
	"aoi/internal/metrics"
	"aoi/internal/permission"
	"aoi/internal/state"
	"aoi/internal/storage"
	"aoi/internal/version"
	"aoi/pkg/cmd"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	addr     string
	engine   *gin.Engine
	state    *state.State
	registry *cmd.Registry
	log      zerolog.Logger
}

// New builds the engine. m may be nil, in which case /metrics is not served.
func New(addr string, st *state.State, registry *cmd.Registry, m *metrics.Metrics, log zerolog.Logger) *Server {
	log = log.With().Str("component", "http").Logger()

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(log))

	s := &Server{addr: addr, engine: engine, state: st, registry: registry, log: log}

	engine.GET("/healthz", s.health)
	if m != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}
	engine.GET("/modules", s.modules)
	guilds := engine.Group("/guilds/:id", validGuild)
	guilds.GET("/permissions", s.permissions)
	guilds.GET("/prefix", s.prefix)
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func validGuild(c *gin.Context) {
	if _, err := strconv.ParseUint(c.Param("id"), 10, 64); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "guild id must be a snowflake"})
		return
	}
	c.Next()
}

func (s *Server) health(c *gin.Context) {
	out := gin.H{
		"status":         "ok",
		"version":        version.String(),
		"default_prefix": s.state.Prefixes.Fallback(),
		"jobs":           s.state.Jobs().List(),
	}
	if sr, ok := s.state.Store.(storage.StatsReporter); ok {
		out["storage"] = sr.Stats()
	}
	c.JSON(http.StatusOK, out)
}

func notFound(c *gin.Context, guildID string) {
	c.JSON(http.StatusNotFound, gin.H{"error": "unknown guild", "guild": guildID})
}

type ruleView struct {
	Index       int    `json:"index"`
	Rule        string `json:"rule"`
	Valid       bool   `json:"valid"`
	Description string `json:"description,omitempty"`
}

func (s *Server) permissions(c *gin.Context) {
	guildID := c.Param("id")
	rules, found, err := s.state.Rules.Lookup(c.Request.Context(), guildID)
	if err != nil {
		s.log.Error().Err(err).Str("guild", guildID).Msg("failed to load rules")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load rules"})
		return
	}
	if !found {
		notFound(c, guildID)
		return
	}

	out := make([]ruleView, len(rules))
	for i, raw := range rules {
		out[i] = ruleView{Index: i, Rule: raw}
		if r, err := permission.ParseRule(raw); err == nil {
			out[i].Valid = true
			out[i].Description = r.Describe()
		}
	}
	c.JSON(http.StatusOK, gin.H{"guild": guildID, "rules": out})
}

func (s *Server) prefix(c *gin.Context) {
	guildID := c.Param("id")
	p, ok := s.state.Prefixes.Table().Get(guildID)
	if !ok {
		var err error
		if p, ok, err = s.state.Store.LookupPrefix(c.Request.Context(), guildID); err != nil {
			s.log.Error().Err(err).Str("guild", guildID).Msg("failed to load prefix")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load prefix"})
			return
		}
	}
	if !ok {
		notFound(c, guildID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"guild": guildID, "prefix": p})
}

type moduleView struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Commands    []string `json:"commands"`
}

func (s *Server) modules(c *gin.Context) {
	descs := command.ModuleDescriptions()
	mods := s.registry.Modules()
	out := make([]moduleView, 0, len(mods))
	for _, mod := range mods {
		v := moduleView{Name: mod, Description: descs[mod], Commands: []string{}}
		for _, cc := range s.registry.ByModule(mod) {
			v.Commands = append(v.Commands, cc.Name())
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, out)
}
