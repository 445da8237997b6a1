package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/discourse/discourse-invite-tokens/internal/config"
	"github.com/discourse/discourse-invite-tokens/internal/group"
	"github.com/discourse/discourse-invite-tokens/internal/invite"
	invitedomain "github.com/discourse/discourse-invite-tokens/internal/invite/domain"
	"github.com/discourse/discourse-invite-tokens/internal/notifier"
	providersemail "github.com/discourse/discourse-invite-tokens/internal/providers/email"
	"github.com/discourse/discourse-invite-tokens/internal/ratelimit"
	"github.com/discourse/discourse-invite-tokens/internal/topic"
	"github.com/discourse/discourse-invite-tokens/internal/user"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	group.Module,
	topic.Module,
	user.Module,
	invite.Module,
	providersemail.Module,
	notifier.Module,
	ratelimit.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(run),
)

type Params struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	Engine   *gin.Engine
	Invites  invitedomain.Service
	Notifier notifier.Notifier
	Limiter  *ratelimit.RedeemLimiter `optional:"true"`
}

type Server struct {
	cfg      config.Config
	log      *zap.Logger
	engine   *gin.Engine
	invites  invitedomain.Service
	notifier notifier.Notifier
	limiter  *ratelimit.RedeemLimiter
}

func NewServer(p Params) *Server {
	return &Server{
		cfg:      p.Cfg,
		log:      p.Log.Named("server"),
		engine:   p.Engine,
		invites:  p.Invites,
		notifier: p.Notifier,
		limiter:  p.Limiter,
	}
}

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ActorMiddleware(cfg))
	r.Use(ErrorHandlingMiddleware(log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/invite-token")
	api.POST("/generate", s.GenerateInviteTokens)
	api.GET("/redeem/:token", s.ShowInvite)
	api.PUT("/redeem/:token", s.RedeemInviteToken)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
