package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/herwingx/nexogym-sub000/internal/access"
	"github.com/herwingx/nexogym-sub000/internal/config"
	"github.com/herwingx/nexogym-sub000/internal/http/middleware"
	"github.com/herwingx/nexogym-sub000/internal/repository"
	"github.com/herwingx/nexogym-sub000/internal/service/checkin"
	"github.com/herwingx/nexogym-sub000/internal/service/reconcile"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.uber.org/zap"
)

// Deps are the collaborators the HTTP surface needs. History and Redis may be nil.
type Deps struct {
	Store      repository.Store
	History    repository.CHEntriesRepository
	Checkin    *checkin.Service
	Reconciler *reconcile.Service
	QR         *access.QRTokenCodec
	Redis      *redis.Client
	Log        *zap.Logger
	// Now stamps issued QR tokens; nil means time.Now.
	Now func() time.Time
}

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

type requestValidator struct {
	v *validator.Validate
}

func (rv *requestValidator) Validate(i any) error { return rv.v.Struct(i) }

func NewServer(cfg config.Config, d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	// echo
	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(echoLogLevel(cfg.Log.Level))
	e.Validator = &requestValidator{v: validator.New()}
	e.Use(echoMid.Recover(), echoMid.Logger(), otelecho.Middleware(serviceName(cfg)))

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// middlewares
	authMW := middleware.APIKeyMiddleware(d.Store)
	deviceMW := middleware.DeviceSecretMiddleware(d.Store)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          d.Redis,
		DefaultRPS:     cfg.RateLimit.RPS,
		Burst:          cfg.RateLimit.Burst,
		KeyPrefix:      "rl:tenant:",
		Window:         time.Second,
		RetryAfterHint: true,
		Now:            d.Now,
	})

	// routes
	v1 := e.Group("/v1", authMW, rlMW)
	v1.POST("/checkin", checkinHandler(d.Checkin))
	v1.POST("/courtesy", courtesyHandler(d.Checkin))
	v1.POST("/qr/issue", issueQRHandler(d.Store, d.QR, d.Now))
	v1.PUT("/tenant/settings", updateSettingsHandler(d.Store))
	if d.History != nil {
		v1.GET("/entries", listEntriesHandler(d.History))
	}

	hw := e.Group("/v1/hardware", deviceMW, rlMW)
	hw.POST("/biometric", biometricHandler(d.Checkin))

	admin := e.Group("/v1/admin", middleware.OperatorTokenMiddleware(cfg.Reconcile.OperatorToken))
	admin.POST("/reconcile", reconcileHandler(d.Reconciler))

	return &Server{e: e, log: d.Log}
}

func serviceName(cfg config.Config) string {
	if cfg.Tracing.ServiceName != "" {
		return cfg.Tracing.ServiceName
	}
	return "nexogym"
}

func echoLogLevel(level string) log.Lvl {
	switch level {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}

// ServeHTTP lets tests drive the router without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.e.ServeHTTP(w, r) }

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}
func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }
