package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// AuthMiddleware JWT 인증 미들웨어 (폐기된 토큰 포함 검증)
func AuthMiddleware(gate *Gate) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token, err := TokenFromRequest(c)
		if err != nil {
			msg := "invalid authorization header format"
			if errors.Is(err, ErrMissingToken) {
				msg = "missing authorization token"
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": msg,
			})
		}

		id, err := gate.Verify(c.UserContext(), token)
		if err != nil {
			switch {
			case errors.Is(err, ErrExpiredToken):
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"message": "token expired",
					"code":    "TOKEN_EXPIRED",
				})
			case errors.Is(err, ErrRevokedToken):
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"message": "token revoked",
					"code":    "TOKEN_REVOKED",
				})
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": "invalid token",
			})
		}

		// 사용자 정보를 컨텍스트에 저장
		c.Locals(LocalsIdentity, id)
		c.Locals("userID", id.UserID)
		c.Locals("username", id.Username)

		return c.Next()
	}
}
