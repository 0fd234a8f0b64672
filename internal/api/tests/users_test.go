package api_test

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ahkhan/chatpay-server/internal/api/testutils"
	"github.com/ahkhan/chatpay-server/internal/models"
)

func TestUserSync(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	token := testutils.TokenFor(t, "user_ali")

	// First sync creates the profile
	syncReq := models.SyncUserRequest{
		Name:      "Ali Raza",
		Email:     "ali@example.com",
		AvatarURL: "https://img.example.com/ali.png",
	}

	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/users/sync", syncReq, testutils.AuthHeaders(token))
	assert.Equal(t, http.StatusOK, w.Code)

	var syncResp models.SyncUserResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &syncResp))
	assert.Equal(t, "success", syncResp.Status)
	assert.NotEmpty(t, syncResp.UserID)

	// Re-sync patches name and avatar but never email
	syncReq.Name = "Ali R."
	syncReq.Email = "changed@example.com"

	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/users/sync", syncReq, testutils.AuthHeaders(token))
	assert.Equal(t, http.StatusOK, w.Code)

	var again models.SyncUserResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &again))
	assert.Equal(t, syncResp.UserID, again.UserID, "upsert must reuse the existing record")

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/users/me", nil, testutils.AuthHeaders(token))
	assert.Equal(t, http.StatusOK, w.Code)

	var me models.User
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	assert.Equal(t, "Ali R.", me.Name)
	assert.Equal(t, "ali@example.com", me.Email)
}

func TestGetMeUnknownUser(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	token := testutils.TokenFor(t, "user_ghost")

	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/users/me", nil, testutils.AuthHeaders(token))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUserSearch(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	aliToken := testutils.RegisterUser(t, testCtx, "user_ali", "Ali Raza", "ali@example.com")
	testutils.RegisterUser(t, testCtx, "user_sara", "Sara Khan", "sara@example.com")
	testutils.RegisterUser(t, testCtx, "user_bilal", "Bilal Ahmed", "bilal.khan@example.com")

	// Substring match over name OR email, case-insensitive
	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/users/search?q=KHAN", nil, testutils.AuthHeaders(aliToken))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.SearchUsersResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Users, 2)

	// Empty term yields an empty result, not match-all
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/users/search?q=", nil, testutils.AuthHeaders(aliToken))
	assert.Equal(t, http.StatusOK, w.Code)

	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Users)

	// Blocked users are suppressed from search results
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/blocks",
		models.BlockUserRequest{BlockedID: "user_sara"}, testutils.AuthHeaders(aliToken))
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/users/search?q=khan", nil, testutils.AuthHeaders(aliToken))
	assert.Equal(t, http.StatusOK, w.Code)

	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Users, 1)
	assert.Equal(t, "user_bilal", resp.Users[0].ExternalID)
}

func TestSearchRequiresAuth(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)

	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/users/search?q=ali", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
