package api_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ahkhan/chatpay-server/internal/api/testutils"
	"github.com/ahkhan/chatpay-server/internal/models"
)

func initializeRoles(t *testing.T, testCtx *testutils.TestContext, token, channelID string) models.RolesResponse {
	t.Helper()

	w := testutils.PerformRequest(testCtx.Router, http.MethodPost,
		fmt.Sprintf("/api/channels/%s/roles/initialize", channelID), nil, testutils.AuthHeaders(token))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.RolesResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	return resp
}

func myRole(t *testing.T, testCtx *testutils.TestContext, token, channelID string) models.MyRoleResponse {
	t.Helper()

	w := testutils.PerformRequest(testCtx.Router, http.MethodGet,
		fmt.Sprintf("/api/channels/%s/me", channelID), nil, testutils.AuthHeaders(token))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.MyRoleResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	return resp
}

func TestInitializeGroupRoles(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	aliToken := testutils.RegisterUser(t, testCtx, "u1", "Ali Raza", "ali@example.com")
	saraToken := testutils.RegisterUser(t, testCtx, "u2", "Sara Khan", "sara@example.com")

	resp := initializeRoles(t, testCtx, aliToken, "c1")
	assert.Len(t, resp.Roles, 2)

	// Creator holds CEO with every permission
	me := myRole(t, testCtx, aliToken, "c1")
	assert.Equal(t, models.RoleCEO, me.RoleName)
	assert.ElementsMatch(t, models.AllPermissions, me.Permissions)

	// A user with no assignment row falls back to Member
	other := myRole(t, testCtx, saraToken, "c1")
	assert.Equal(t, models.RoleMember, other.RoleName)
	assert.Contains(t, other.Permissions, models.PermSendMessages)
	assert.NotContains(t, other.Permissions, models.PermDeleteGroup)

	// Re-initializing is a guarded no-op: still exactly two roles
	again := initializeRoles(t, testCtx, aliToken, "c1")
	assert.Len(t, again.Roles, 2)
}

func TestUninitializedChannelFallback(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	aliToken := testutils.RegisterUser(t, testCtx, "u1", "Ali Raza", "ali@example.com")

	// No roles exist at all: role resolves to Member, permissions to none
	me := myRole(t, testCtx, aliToken, "c-empty")
	assert.Equal(t, models.RoleMember, me.RoleName)
	assert.Empty(t, me.Permissions)
}

func TestCreateRole(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	aliToken := testutils.RegisterUser(t, testCtx, "u1", "Ali Raza", "ali@example.com")
	saraToken := testutils.RegisterUser(t, testCtx, "u2", "Sara Khan", "sara@example.com")

	initializeRoles(t, testCtx, aliToken, "c1")

	createReq := models.CreateRoleRequest{
		RoleName:    "Moderator",
		Permissions: []string{models.PermSendMessages, models.PermViewMembers, models.PermKickMembers},
	}

	// A plain member lacks manage_roles
	w := testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/channels/c1/roles", createReq, testutils.AuthHeaders(saraToken))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The CEO can create it
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/channels/c1/roles", createReq, testutils.AuthHeaders(aliToken))
	assert.Equal(t, http.StatusCreated, w.Code)

	// Role names are unique per channel
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/channels/c1/roles", createReq, testutils.AuthHeaders(aliToken))
	assert.Equal(t, http.StatusConflict, w.Code)

	// Reserved names are no exception: "Member" already exists
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/channels/c1/roles",
		models.CreateRoleRequest{RoleName: models.RoleMember, Permissions: []string{models.PermSendMessages}},
		testutils.AuthHeaders(aliToken))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestDeleteRole(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	aliToken := testutils.RegisterUser(t, testCtx, "u1", "Ali Raza", "ali@example.com")
	testutils.RegisterUser(t, testCtx, "u2", "Sara Khan", "sara@example.com")

	initializeRoles(t, testCtx, aliToken, "c1")

	// The CEO role is structurally protected
	w := testutils.PerformRequest(testCtx.Router, http.MethodDelete, "/api/channels/c1/roles/CEO", nil, testutils.AuthHeaders(aliToken))
	assert.Equal(t, http.StatusConflict, w.Code)

	// Create a role, assign it, then try deleting while in use
	w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/channels/c1/roles",
		models.CreateRoleRequest{RoleName: "Moderator", Permissions: []string{models.PermKickMembers}},
		testutils.AuthHeaders(aliToken))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodPut, "/api/channels/c1/members/u2/role",
		models.AssignRoleRequest{RoleName: "Moderator"}, testutils.AuthHeaders(aliToken))
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodDelete, "/api/channels/c1/roles/Moderator", nil, testutils.AuthHeaders(aliToken))
	assert.Equal(t, http.StatusConflict, w.Code)

	// Reassign the member, then deletion succeeds
	w = testutils.PerformRequest(testCtx.Router, http.MethodPut, "/api/channels/c1/members/u2/role",
		models.AssignRoleRequest{RoleName: models.RoleMember}, testutils.AuthHeaders(aliToken))
	assert.Equal(t, http.StatusOK, w.Code)

	w = testutils.PerformRequest(testCtx.Router, http.MethodDelete, "/api/channels/c1/roles/Moderator", nil, testutils.AuthHeaders(aliToken))
	assert.Equal(t, http.StatusOK, w.Code)

	// Deleting a role that never existed reports not found
	w = testutils.PerformRequest(testCtx.Router, http.MethodDelete, "/api/channels/c1/roles/Ghost", nil, testutils.AuthHeaders(aliToken))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAssignRole(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	aliToken := testutils.RegisterUser(t, testCtx, "u1", "Ali Raza", "ali@example.com")
	saraToken := testutils.RegisterUser(t, testCtx, "u2", "Sara Khan", "sara@example.com")

	initializeRoles(t, testCtx, aliToken, "c1")

	// Assigning a nonexistent role is a precondition failure
	w := testutils.PerformRequest(testCtx.Router, http.MethodPut, "/api/channels/c1/members/u2/role",
		models.AssignRoleRequest{RoleName: "Ghost"}, testutils.AuthHeaders(aliToken))
	assert.Equal(t, http.StatusConflict, w.Code)

	// A member without assign_roles cannot assign
	w = testutils.PerformRequest(testCtx.Router, http.MethodPut, "/api/channels/c1/members/u2/role",
		models.AssignRoleRequest{RoleName: models.RoleMember}, testutils.AuthHeaders(saraToken))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Create two roles and assign them in sequence: the second overwrites
	for _, name := range []string{"Moderator", "Treasurer"} {
		w = testutils.PerformRequest(testCtx.Router, http.MethodPost, "/api/channels/c1/roles",
			models.CreateRoleRequest{RoleName: name, Permissions: []string{models.PermViewMembers}},
			testutils.AuthHeaders(aliToken))
		assert.Equal(t, http.StatusCreated, w.Code)
	}

	for _, name := range []string{"Moderator", "Treasurer"} {
		w = testutils.PerformRequest(testCtx.Router, http.MethodPut, "/api/channels/c1/members/u2/role",
			models.AssignRoleRequest{RoleName: name}, testutils.AuthHeaders(aliToken))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	me := myRole(t, testCtx, saraToken, "c1")
	assert.Equal(t, "Treasurer", me.RoleName)

	// Exactly one assignment row per member survives the overwrite
	w = testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/channels/c1/members", nil, testutils.AuthHeaders(aliToken))
	assert.Equal(t, http.StatusOK, w.Code)

	var members models.MembersResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &members))
	assert.Len(t, members.Members, 2) // creator + u2

	count := 0
	for _, m := range members.Members {
		if m.UserID == "u2" {
			count++
			assert.Equal(t, "Treasurer", m.RoleName)
			assert.Equal(t, "u1", m.AssignedBy)
			assert.NotNil(t, m.Profile)
			assert.Equal(t, "Sara Khan", m.Profile.Name)
		}
	}
	assert.Equal(t, 1, count)
}

func TestListRoles(t *testing.T) {
	testCtx := testutils.SetupTestContext(t)
	aliToken := testutils.RegisterUser(t, testCtx, "u1", "Ali Raza", "ali@example.com")

	initializeRoles(t, testCtx, aliToken, "c1")

	w := testutils.PerformRequest(testCtx.Router, http.MethodGet, "/api/channels/c1/roles", nil, testutils.AuthHeaders(aliToken))
	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.RolesResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Roles, 2)

	names := []string{resp.Roles[0].RoleName, resp.Roles[1].RoleName}
	assert.Contains(t, names, models.RoleCEO)
	assert.Contains(t, names, models.RoleMember)
}
