package server

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"coartistry-backend/internal/auth"
	"coartistry-backend/internal/config"
	"coartistry-backend/internal/handler"
	"coartistry-backend/internal/metrics"
	"coartistry-backend/internal/relay"
	"coartistry-backend/internal/room"
	"coartistry-backend/internal/session"
)

const shutdownTimeout = 30 * time.Second

// Deps 서버가 사용하는 외부 협력자
type Deps struct {
	Users   handler.UserStore
	Rooms   handler.RoomStore
	Revoked auth.RevocationList
	Checks  []handler.Check
	Metrics *metrics.Metrics
}

// Server Fiber 서버 래퍼
type Server struct {
	app           *fiber.App
	cfg           *config.Config
	logger        *zap.Logger
	metrics       *metrics.Metrics
	registry      *room.Registry
	engine        *relay.Engine
	gate          *auth.Gate
	authHandler   *handler.AuthHandler
	roomHandler   *handler.RoomHandler
	healthHandler *handler.HealthHandler
}

// New 새 서버 인스턴스 생성
func New(cfg *config.Config, deps Deps, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Revoked == nil {
		deps.Revoked = auth.NewMemoryRevocationList()
	}

	app := fiber.New(fiber.Config{
		AppName:               "CoArtistry Backend",
		ServerHeader:          "Fiber",
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		Prefork:               false, // WebSocket과 호환성 문제로 비활성화
		ReadBufferSize:        16384,
		WriteBufferSize:       16384,
		BodyLimit:             cfg.Server.BodyLimit,
		DisableStartupMessage: true,
	})

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
	gate := auth.NewGate(jwtManager, deps.Revoked)
	registry := room.NewRegistry(deps.Rooms, log)
	engine := relay.NewEngine(registry, deps.Metrics, log, relay.Options{
		RoomLookupTimeout: cfg.Relay.RoomLookupTimeout,
		MaxMessageSize:    cfg.WebSocket.MaxMessageSize,
		Session: session.Options{
			WriteTimeout: cfg.WebSocket.WriteTimeout,
			RatePerSec:   cfg.Relay.RatePerSec,
			Burst:        cfg.Relay.Burst,
		},
	})

	return &Server{
		app:           app,
		cfg:           cfg,
		logger:        log,
		metrics:       deps.Metrics,
		registry:      registry,
		engine:        engine,
		gate:          gate,
		authHandler:   handler.NewAuthHandler(deps.Users, gate, jwtManager, cfg.Auth.BcryptCost, log),
		roomHandler:   handler.NewRoomHandler(deps.Rooms, log),
		healthHandler: handler.NewHealthHandler(deps.Checks...),
	}
}

// App Fiber 앱 (테스트용)
func (s *Server) App() *fiber.App {
	return s.app
}

// Registry 실시간 방 레지스트리
func (s *Server) Registry() *room.Registry {
	return s.registry
}

// SetupMiddleware 미들웨어 설정
func (s *Server) SetupMiddleware() {
	// 패닉 복구
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// 접근 로그
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/metrics" || c.Path() == "/health/live"
		},
	}))

	// CORS
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowOrigins,
		AllowHeaders:     s.cfg.CORS.AllowHeaders,
		AllowMethods:     "GET, POST, OPTIONS",
		AllowCredentials: s.cfg.CORS.AllowOrigins != "*",
	}))
}

// SetupRoutes 라우트 설정
func (s *Server) SetupRoutes() {
	// 상태 / 헬스체크
	s.app.Get("/", s.healthHandler.Status)
	s.app.Get("/health", s.healthHandler.Check)
	s.app.Get("/health/live", s.healthHandler.Liveness)
	s.app.Get("/health/ready", s.healthHandler.Readiness)
	s.app.Get("/metrics", s.metrics.Handler())

	// Rate Limiter 설정 (인증 엔드포인트용 - Brute Force 방지)
	authLimiter := limiter.New(limiter.Config{
		Max:        s.cfg.Auth.LoginRateLimit,
		Expiration: s.cfg.Auth.LoginRateWindow,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"message": "too many requests, please try again later",
			})
		},
	})
	requireAuth := auth.AuthMiddleware(s.gate)

	// 인증
	s.app.Post("/register", authLimiter, s.authHandler.Register)
	s.app.Post("/login", authLimiter, s.authHandler.Login)
	s.app.Post("/logout", requireAuth, s.authHandler.Logout)

	// 방 (인증 필요)
	s.app.Post("/create-room", requireAuth, s.roomHandler.CreateRoom)
	s.app.Post("/join-room", requireAuth, s.roomHandler.JoinRoom)

	// WebSocket 업그레이드 체크 미들웨어
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// 실시간 릴레이: 핸드셰이크에서 토큰 검증 후 업그레이드
	s.app.Get("/ws", s.gate.Handshake(s.rejectHandshake), websocket.New(s.engine.HandleWebSocket, websocket.Config{
		HandshakeTimeout: s.cfg.WebSocket.HandshakeTimeout,
		ReadBufferSize:   s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:  s.cfg.WebSocket.WriteBufferSize,
	}))
}

func (s *Server) rejectHandshake(c *fiber.Ctx, err error) {
	reason := auth.Reason(err)
	s.metrics.HandshakeFails.WithLabelValues(reason).Inc()
	s.logger.Debug("websocket handshake rejected",
		zap.String("ip", c.IP()), zap.String("reason", reason), zap.Error(err))
}

// Start 서버 시작 (Graceful Shutdown 지원)
func (s *Server) Start() error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		s.logger.Info("shutting down server")
		if err := s.Shutdown(); err != nil {
			s.logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	s.logger.Info("CoArtistry backend starting",
		zap.String("addr", s.cfg.Server.Port),
		zap.String("ws", "ws://localhost"+s.cfg.Server.Port+"/ws"))

	return s.app.Listen(s.cfg.Server.Port)
}

// Shutdown 서버 종료
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(shutdownTimeout)
}
