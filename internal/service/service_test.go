package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahkhan/chatpay-server/internal/models"
	"github.com/ahkhan/chatpay-server/internal/repository"
)

func newTestService(t *testing.T) (Service, *repository.MemoryRepository) {
	t.Helper()

	repo := repository.NewMemoryRepository()
	svc := NewDefaultService(repo)

	ctx := context.Background()
	for _, u := range []struct{ id, name, email string }{
		{"u1", "Ali Raza", "ali@example.com"},
		{"u2", "Sara Khan", "sara@example.com"},
		{"u3", "Bilal Ahmed", "bilal@example.com"},
	} {
		_, err := repo.UpsertUser(ctx, &models.User{ExternalID: u.id, Name: u.name, Email: u.email})
		require.NoError(t, err)
	}

	return svc, repo
}

func TestPaymentStateMonotonicity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	terminalActions := map[string]string{
		models.ActionConfirm:     models.PaymentCompleted,
		models.ActionCancel:      models.PaymentCancelled,
		models.ActionNotReceived: models.PaymentNotReceived,
	}

	for action, wantStatus := range terminalActions {
		resp, err := svc.CreatePayment(ctx, "u1", models.CreatePaymentRequest{
			ReceiverID: "u2",
			Amount:     500,
			Currency:   "PKR",
			MethodType: models.MethodEasypaisa,
		})
		require.NoError(t, err)

		resolved, err := svc.TransitionPayment(ctx, "u2", resp.Payment.ID, action)
		require.NoError(t, err)
		assert.Equal(t, wantStatus, resolved.Payment.Status)

		if action == models.ActionConfirm {
			assert.NotNil(t, resolved.Payment.CompletedAt)
		} else {
			assert.Nil(t, resolved.Payment.CompletedAt)
		}

		// No transition leaves a terminal state, for any actor or action
		for again := range terminalActions {
			_, err := svc.TransitionPayment(ctx, "u2", resp.Payment.ID, again)
			assert.ErrorIs(t, err, ErrPrecondition)
		}
	}
}

func TestTransitionActorChecks(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	resp, err := svc.CreatePayment(ctx, "u1", models.CreatePaymentRequest{
		ReceiverID: "u2",
		Amount:     100,
		Currency:   "PKR",
		MethodType: models.MethodJazzcash,
	})
	require.NoError(t, err)

	_, err = svc.TransitionPayment(ctx, "u1", resp.Payment.ID, models.ActionConfirm)
	assert.ErrorIs(t, err, ErrPermissionDenied, "sender must not resolve their own payment")

	_, err = svc.TransitionPayment(ctx, "u2", resp.Payment.ID, "refund")
	assert.ErrorIs(t, err, ErrValidation, "unknown actions are rejected")

	_, err = svc.TransitionPayment(ctx, "u2", "no-such-payment", models.ActionConfirm)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreatePaymentValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreatePayment(ctx, "u1", models.CreatePaymentRequest{
		ReceiverID: "u1", Amount: 100, Currency: "PKR", MethodType: models.MethodEasypaisa,
	})
	assert.ErrorIs(t, err, ErrValidation)

	for _, amount := range []float64{0, -1} {
		_, err := svc.CreatePayment(ctx, "u1", models.CreatePaymentRequest{
			ReceiverID: "u2", Amount: amount, Currency: "PKR", MethodType: models.MethodEasypaisa,
		})
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestAtMostOneDefaultAcrossSequences(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	countDefaults := func() int {
		methods, err := repo.GetPaymentMethods(ctx, "u1")
		require.NoError(t, err)
		n := 0
		for _, m := range methods {
			if m.IsDefault {
				n++
			}
		}
		return n
	}

	var ids []string
	for i := 0; i < 4; i++ {
		resp, err := svc.AddPaymentMethod(ctx, "u1", models.AddPaymentMethodRequest{
			MethodType:    models.MethodEasypaisa,
			DisplayName:   fmt.Sprintf("Wallet %d", i),
			AccountNumber: fmt.Sprintf("0300000000%d", i),
			IsDefault:     i%2 == 0,
		})
		require.NoError(t, err)
		ids = append(ids, resp.Method.ID)
		assert.LessOrEqual(t, countDefaults(), 1)
	}

	// Flip defaults around through updates; the invariant must hold at
	// every observation point
	for _, id := range ids {
		_, err := svc.UpdatePaymentMethod(ctx, "u1", id, models.UpdatePaymentMethodRequest{
			DisplayName:   "Updated",
			AccountNumber: "03009998877",
			IsDefault:     true,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, countDefaults())
	}
}

func TestBlockInvariants(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// Self-block is a no-op
	resp, err := svc.BlockUser(ctx, "u1", "u1")
	require.NoError(t, err)
	assert.False(t, resp.Blocked)

	first, err := svc.BlockUser(ctx, "u1", "u2")
	require.NoError(t, err)
	second, err := svc.BlockUser(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.Equal(t, first.BlockID, second.BlockID)

	// Directed: u1 blocking u2 says nothing about the reverse
	blocked, err := svc.IsBlocked(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.True(t, blocked)

	blocked, err = svc.IsBlocked(ctx, "u2", "u1")
	require.NoError(t, err)
	assert.False(t, blocked)

	unblock, err := svc.UnblockUser(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.True(t, unblock.Removed)

	unblock, err = svc.UnblockUser(ctx, "u1", "u2")
	require.NoError(t, err)
	assert.False(t, unblock.Removed)
}

func TestPermissionFallbackResolution(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.InitializeGroupRoles(ctx, "c1", "u1")
	require.NoError(t, err)

	// Creator resolved to CEO
	role, err := svc.GetUserRole(ctx, "c1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleCEO, role)

	ok, err := svc.HasPermission(ctx, "c1", "u1", models.PermDeleteGroup)
	require.NoError(t, err)
	assert.True(t, ok)

	// u2 has no assignment row: fallback grants Member permissions
	role, err = svc.GetUserRole(ctx, "c1", "u2")
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, role)

	ok, err = svc.HasPermission(ctx, "c1", "u2", models.PermSendMessages)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.HasPermission(ctx, "c1", "u2", models.PermKickMembers)
	require.NoError(t, err)
	assert.False(t, ok)

	// In a channel with no roles at all, the fallback role has no
	// record, which resolves to no-permission rather than an error
	ok, err = svc.HasPermission(ctx, "c-none", "u2", models.PermSendMessages)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRoleLossResolvesToNoPermission(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.InitializeGroupRoles(ctx, "c1", "u1")
	require.NoError(t, err)

	_, err = svc.CreateGroupRole(ctx, "u1", "c1", models.CreateRoleRequest{
		RoleName:    "Moderator",
		Permissions: []string{models.PermKickMembers},
	})
	require.NoError(t, err)

	_, err = svc.AssignGroupRole(ctx, "u1", "c1", "u2", "Moderator")
	require.NoError(t, err)

	ok, err := svc.HasPermission(ctx, "c1", "u2", models.PermKickMembers)
	require.NoError(t, err)
	assert.True(t, ok)

	// Force-delete the role underneath the assignment (the service
	// forbids this path; a stale assignment can still exist in data)
	_, err = repo.DeleteGroupRole(ctx, "c1", "Moderator")
	require.NoError(t, err)

	ok, err = svc.HasPermission(ctx, "c1", "u2", models.PermKickMembers)
	require.NoError(t, err)
	assert.False(t, ok, "dangling assignment resolves to no-permission, not an error")
}

func TestInitializeGuard(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.InitializeGroupRoles(ctx, "c1", "u1")
	require.NoError(t, err)

	_, err = svc.InitializeGroupRoles(ctx, "c1", "u2")
	require.NoError(t, err)

	roles, err := repo.GetGroupRoles(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, roles, 2, "second initialization must not duplicate roles")

	// And the original creator keeps CEO
	role, err := svc.GetUserRole(ctx, "c1", "u1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleCEO, role)

	role, err = svc.GetUserRole(ctx, "c1", "u2")
	require.NoError(t, err)
	assert.Equal(t, models.RoleMember, role)
}

func TestUpsertPreservesEmail(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	_, err := svc.SyncUser(ctx, "u1", models.SyncUserRequest{
		Name:      "Ali R.",
		Email:     "new-email@example.com",
		AvatarURL: "https://img.example.com/a.png",
	})
	require.NoError(t, err)

	user, err := repo.GetUserByExternalID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Ali R.", user.Name)
	assert.Equal(t, "ali@example.com", user.Email, "email is immutable once set")
	assert.Equal(t, "https://img.example.com/a.png", user.AvatarURL)
}

func TestSearchEmptyTerm(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, term := range []string{"", "   "} {
		resp, err := svc.SearchUsers(ctx, "u1", term)
		require.NoError(t, err)
		assert.Empty(t, resp.Users)
	}
}

func TestErrorKindsAreDistinguishable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreatePayment(ctx, "u1", models.CreatePaymentRequest{
		ReceiverID: "u1", Amount: 1, Currency: "PKR", MethodType: models.MethodEasypaisa,
	})
	assert.True(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrPrecondition))
}
