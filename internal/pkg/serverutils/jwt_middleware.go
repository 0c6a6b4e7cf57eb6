package serverutils

import (
	"strings"

	"clinical-intake-be/internal/constant"
	"clinical-intake-be/internal/dto"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

var ErrInvalidToken = goerr.New("invalid token")

// NewJwtMiddleware resolves the bearer token into "user_id" and "role" locals.
func NewJwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		authHeader := ctx.Get("Authorization")
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token"))
		}

		identity, err := ParseToken(authHeader[7:], secret)
		if err != nil {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token"))
		}

		ctx.Locals("user_id", identity.UserId.String())
		ctx.Locals("role", identity.Role)
		return ctx.Next()
	}
}

// ParseToken validates an HMAC token and reads the user_id and role claims.
// A missing role means patient.
func ParseToken(tokenStr, secret string) (*dto.Identity, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, goerr.Wrap(ErrInvalidToken, "token rejected", goerr.V("cause", err))
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, goerr.Wrap(ErrInvalidToken, "unexpected claims type")
	}

	userIdStr, _ := claims["user_id"].(string)
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return nil, goerr.Wrap(ErrInvalidToken, "user_id claim is not a uuid")
	}

	role, _ := claims["role"].(string)
	role = strings.ToLower(role)
	if role != constant.UserRoleReviewer {
		role = constant.UserRolePatient
	}

	return &dto.Identity{UserId: userId, Role: role}, nil
}

// CurrentIdentity reads the locals set by NewJwtMiddleware.
func CurrentIdentity(ctx *fiber.Ctx) (dto.Identity, error) {
	userIdStr, _ := ctx.Locals("user_id").(string)
	userId, err := uuid.Parse(userIdStr)
	if err != nil {
		return dto.Identity{}, fiber.ErrUnauthorized
	}
	role, _ := ctx.Locals("role").(string)
	return dto.Identity{UserId: userId, Role: role}, nil
}

// RequireRole rejects callers whose role is not role. Use after NewJwtMiddleware.
func RequireRole(role string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if r, _ := ctx.Locals("role").(string); r != role {
			return ctx.Status(fiber.StatusForbidden).JSON(ErrorResponse(fiber.StatusForbidden, "Forbidden"))
		}
		return ctx.Next()
	}
}
