package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// StatusText GET / 응답
const StatusText = "CoArtistry Backend Server is running."

// Check 헬스체크 대상 컴포넌트
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// HealthHandler 헬스체크 핸들러
type HealthHandler struct {
	checks  []Check
	timeout time.Duration
}

// NewHealthHandler HealthHandler 생성
func NewHealthHandler(checks ...Check) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: 2 * time.Second}
}

// ComponentCheck 컴포넌트 상태
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse 헬스체크 응답
type HealthResponse struct {
	Status    string                    `json:"status"`
	Timestamp string                    `json:"timestamp"`
	Checks    map[string]ComponentCheck `json:"checks"`
}

func (h *HealthHandler) run(ctx context.Context) HealthResponse {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    make(map[string]ComponentCheck, len(h.checks)),
	}

	for _, check := range h.checks {
		start := time.Now()
		pingCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := check.Ping(pingCtx)
		cancel()

		if err != nil {
			response.Status = "unhealthy"
			response.Checks[check.Name] = ComponentCheck{
				Status: "unhealthy",
				Error:  check.Name + " ping failed",
			}
			continue
		}
		response.Checks[check.Name] = ComponentCheck{
			Status:  "healthy",
			Latency: time.Since(start).String(),
		}
	}
	return response
}

// Check 전체 상태 확인 (DB + Redis)
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	response := h.run(c.UserContext())

	statusCode := fiber.StatusOK
	if response.Status == "unhealthy" {
		statusCode = fiber.StatusServiceUnavailable
	}
	return c.Status(statusCode).JSON(response)
}

// Liveness K8s liveness probe용 (단순 체크)
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.SendString("OK")
}

// Readiness K8s readiness probe용 (의존 컴포넌트 체크)
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	if h.run(c.UserContext()).Status != "healthy" {
		return c.Status(fiber.StatusServiceUnavailable).SendString("NOT READY")
	}
	return c.SendString("READY")
}

// Status 서버 상태 문자열
func (h *HealthHandler) Status(c *fiber.Ctx) error {
	return c.SendString(StatusText)
}
