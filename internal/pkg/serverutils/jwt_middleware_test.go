package serverutils

import (
	"net/http/httptest"
	"testing"

	"clinical-intake-be/internal/constant"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestParseToken(t *testing.T) {
	userId := uuid.New()

	identity, err := ParseToken(signToken(t, jwt.MapClaims{"user_id": userId.String(), "role": "Reviewer"}), testSecret)
	require.NoError(t, err)
	assert.Equal(t, userId, identity.UserId)
	assert.Equal(t, constant.UserRoleReviewer, identity.Role)

	identity, err = ParseToken(signToken(t, jwt.MapClaims{"user_id": userId.String()}), testSecret)
	require.NoError(t, err)
	assert.Equal(t, constant.UserRolePatient, identity.Role)

	_, err = ParseToken(signToken(t, jwt.MapClaims{"user_id": "nope"}), testSecret)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken(signToken(t, jwt.MapClaims{"user_id": userId.String()}), "other-secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJwtMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(NewJwtMiddleware(testSecret))
	app.Get("/me", func(ctx *fiber.Ctx) error {
		identity, err := CurrentIdentity(ctx)
		if err != nil {
			return err
		}
		return ctx.SendString(identity.Role)
	})

	req := httptest.NewRequest("GET", "/me", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{"user_id": uuid.NewString()}))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestValidateRequest(t *testing.T) {
	type body struct {
		Message string `json:"message" validate:"required,max=5"`
	}

	assert.NoError(t, ValidateRequest(body{Message: "hi"}))

	err := ValidateRequest(body{Message: "too long"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "max=5", verr.Fields["message"])
}
