package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Fail writes the error body every REST endpoint uses.
func Fail(ctx *fiber.Ctx, status int, message string) error {
	return ctx.Status(status).JSON(fiber.Map{
		"success": false,
		"code":    status,
		"message": message,
	})
}

// ErrorHandler turns errors escaping a handler into the common error body.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
	}
	return Fail(ctx, status, err.Error())
}

// BearerToken returns the token from "Authorization: Bearer <token>" or "".
func BearerToken(ctx *fiber.Ctx) string {
	authHeader := ctx.Get("Authorization")
	if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
		return ""
	}
	return authHeader[7:]
}

// JwtMiddleware rejects requests without a valid access token and stores
// user_id and username in Locals.
func JwtMiddleware(issuer *TokenIssuer) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		tokenStr := BearerToken(ctx)
		if tokenStr == "" {
			return Fail(ctx, fiber.StatusUnauthorized, "Missing token")
		}

		claims, err := issuer.Parse(tokenStr)
		if err != nil {
			return Fail(ctx, fiber.StatusUnauthorized, "Invalid token")
		}

		ctx.Locals("user_id", claims.UserID)
		ctx.Locals("username", claims.Username)
		return ctx.Next()
	}
}

// UserID reads the id JwtMiddleware stored.
func UserID(ctx *fiber.Ctx) (uuid.UUID, bool) {
	raw, ok := ctx.Locals("user_id").(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
