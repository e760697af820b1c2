package http

import (
	"context"
	"net/http"

	"github.com/dkeye/polyglot/internal/adapters/signal"
	"github.com/dkeye/polyglot/internal/app/orch"
	"github.com/dkeye/polyglot/internal/config"
	"github.com/dkeye/polyglot/internal/domain"
	"github.com/dkeye/polyglot/internal/metrics"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	sessionName = "PolyglotSession"
	sessionUser = "uid"
	userHeader  = "X-User-ID"
	ctxUser     = "user_id"
)

// IdentityMiddleware resolves the caller from the cookie session, falling
// back to the X-User-ID header for non-browser clients.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, _ := sessions.Default(c).Get(sessionUser).(string)
		if uid == "" {
			uid = c.GetHeader(userHeader)
		}
		if uid != "" {
			c.Set(ctxUser, uid)
		}
		c.Next()
	}
}

func requireUser(c *gin.Context) {
	if c.GetString(ctxUser) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
		return
	}
	c.Next()
}

func currentUser(c *gin.Context) domain.UserID {
	return domain.UserID(c.GetString(ctxUser))
}

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator, accounts Accounts, ctl *signal.SignalWSController, m metrics.Collector) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 7, HttpOnly: true})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(IdentityMiddleware())

	h := &handlers{orch: o, accounts: accounts}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": o.Registry.Count(), "calls": o.Calls.Count()})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	api := r.Group("/api")
	api.POST("/users", h.createUser)
	api.POST("/session", h.signIn)
	api.DELETE("/session", h.signOut)

	authed := api.Group("", requireUser)
	authed.GET("/ws/signal", func(c *gin.Context) {
		p, err := o.Directory.Participant(c.Request.Context(), currentUser(c))
		if err != nil {
			respondError(c, err)
			return
		}
		log.Info().Str("module", "adapters.http").Str("user", string(p.ID)).Msg("ws signal endpoint hit")
		ctl.HandleSignal(ctx, c.Writer, c.Request, p)
	})
	authed.GET("/rooms", h.listRooms)
	authed.POST("/rooms", h.createRoom)
	authed.GET("/rooms/:id/messages", h.history)
	authed.PUT("/users/:id/language", h.setLanguage)

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
