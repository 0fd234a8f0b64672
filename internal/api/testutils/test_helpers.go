package testutils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/ahkhan/chatpay-server/internal/api"
	"github.com/ahkhan/chatpay-server/internal/cache"
	"github.com/ahkhan/chatpay-server/internal/models"
	"github.com/ahkhan/chatpay-server/internal/repository"
	"github.com/ahkhan/chatpay-server/internal/service"
)

const testJWTSecret = "test-secret-key"

// TestContext holds all dependencies for tests. The router runs over
// the in-memory repository, so tests need neither Postgres nor Redis.
type TestContext struct {
	Router     *gin.Engine
	Repository *repository.MemoryRepository
	Service    service.Service
	JWTSecret  []byte
}

// SetupTestContext creates a new test context with initialized dependencies
func SetupTestContext(t *testing.T) *TestContext {
	t.Helper()

	repo := repository.NewMemoryRepository()
	svc := service.NewDefaultService(repo)
	handler := api.NewHandler(svc, cache.New(nil))

	gin.SetMode(gin.TestMode)
	router := gin.New()

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(testJWTSecret))
		c.Next()
	})

	handler.SetupRoutes(router)

	return &TestContext{
		Router:     router,
		Repository: repo,
		Service:    svc,
		JWTSecret:  []byte(testJWTSecret),
	}
}

// TokenFor generates a signed JWT whose subject is the given external
// user id, mirroring what the identity-provider boundary mints.
func TokenFor(t *testing.T, externalID string) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": externalID,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	})

	tokenString, err := token.SignedString([]byte(testJWTSecret))
	assert.NoError(t, err, "Failed to generate JWT token")

	return tokenString
}

// RegisterUser seeds a user profile directly through the repository and
// returns a token for them.
func RegisterUser(t *testing.T, ctx *TestContext, externalID, name, email string) string {
	t.Helper()

	_, err := ctx.Repository.UpsertUser(context.Background(), &models.User{
		ExternalID: externalID,
		Name:       name,
		Email:      email,
	})
	assert.NoError(t, err, "Failed to seed user")

	return TokenFor(t, externalID)
}

// PerformRequest executes an HTTP request against the router
func PerformRequest(r http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer

	if body != nil {
		jsonBody, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(jsonBody)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// AuthHeaders returns headers with Authorization token
func AuthHeaders(token string) map[string]string {
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}
}
