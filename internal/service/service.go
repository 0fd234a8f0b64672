package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ahkhan/chatpay-server/internal/models"
	"github.com/ahkhan/chatpay-server/internal/repository"
)

// SearchResultLimit caps user directory search results.
const SearchResultLimit = 20

// Service defines all the business logic operations. Every actor id is
// the external identity-provider id of an already-authenticated caller;
// the transport layer (middleware) is responsible for establishing it.
type Service interface {
	// User directory
	SyncUser(ctx context.Context, externalID string, req models.SyncUserRequest) (*models.SyncUserResponse, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
	SearchUsers(ctx context.Context, actorID, term string) (*models.SearchUsersResponse, error)

	// Block list
	BlockUser(ctx context.Context, actorID, blockedID string) (*models.BlockResponse, error)
	UnblockUser(ctx context.Context, actorID, blockedID string) (*models.UnblockResponse, error)
	IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error)
	ListBlockedUsers(ctx context.Context, actorID string) (*models.BlockedUsersResponse, error)
	ListBlockedIDs(ctx context.Context, actorID string) (*models.BlockedIDsResponse, error)

	// Payment method registry
	AddPaymentMethod(ctx context.Context, ownerID string, req models.AddPaymentMethodRequest) (*models.PaymentMethodResponse, error)
	UpdatePaymentMethod(ctx context.Context, actorID, methodID string, req models.UpdatePaymentMethodRequest) (*models.PaymentMethodResponse, error)
	DeletePaymentMethod(ctx context.Context, actorID, methodID string) error
	ListPaymentMethods(ctx context.Context, ownerID string) (*models.PaymentMethodsResponse, error)
	GetDefaultPaymentMethod(ctx context.Context, ownerID string) (*models.PaymentMethodResponse, error)
	GetPublicPaymentDetails(ctx context.Context, ownerExternalID string) (*models.PublicPaymentDetailsResponse, error)

	// Payment ledger
	CreatePayment(ctx context.Context, senderID string, req models.CreatePaymentRequest) (*models.PaymentResponse, error)
	TransitionPayment(ctx context.Context, actorID, paymentID, action string) (*models.PaymentResponse, error)
	PaymentHistory(ctx context.Context, userID string) (*models.PaymentHistoryResponse, error)
	PendingPayments(ctx context.Context, receiverID string) (*models.PaymentHistoryResponse, error)

	// Group roles and permissions
	InitializeGroupRoles(ctx context.Context, channelID, createdBy string) (*models.RolesResponse, error)
	CreateGroupRole(ctx context.Context, actorID, channelID string, req models.CreateRoleRequest) (*models.RoleResponse, error)
	DeleteGroupRole(ctx context.Context, actorID, channelID, roleName string) error
	AssignGroupRole(ctx context.Context, actorID, channelID, userID, roleName string) (*models.StatusResponse, error)
	GetGroupRoles(ctx context.Context, channelID string) (*models.RolesResponse, error)
	GetUserRole(ctx context.Context, channelID, userID string) (string, error)
	HasPermission(ctx context.Context, channelID, userID, token string) (bool, error)
	MyChannelRole(ctx context.Context, channelID, userID string) (*models.MyRoleResponse, error)
	ListGroupMembers(ctx context.Context, channelID string) (*models.MembersResponse, error)
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo repository.Repository
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository) Service {
	return &DefaultService{
		repo: repo,
	}
}

// User directory methods

// SyncUser upserts the profile the identity provider reports for the
// authenticated caller. Name and avatar are patched on re-sync; email
// is immutable once stored.
func (s *DefaultService) SyncUser(ctx context.Context, externalID string, req models.SyncUserRequest) (*models.SyncUserResponse, error) {
	if externalID == "" {
		return nil, fmt.Errorf("%w: missing external user id", ErrValidation)
	}

	user := &models.User{
		ExternalID: externalID,
		Name:       req.Name,
		Email:      req.Email,
		AvatarURL:  req.AvatarURL,
	}

	id, err := s.repo.UpsertUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error upserting user: %w", err)
	}

	return &models.SyncUserResponse{
		Status: "success",
		UserID: id,
	}, nil
}

func (s *DefaultService) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	user, err := s.repo.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("error getting user: %w", err)
	}

	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, externalID)
	}

	return user, nil
}

// SearchUsers performs a case-insensitive substring match over name or
// email. An empty term yields an empty result, not "match all". Users
// the actor has blocked are suppressed from the results.
func (s *DefaultService) SearchUsers(ctx context.Context, actorID, term string) (*models.SearchUsersResponse, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return &models.SearchUsersResponse{Status: "success", Users: []models.User{}}, nil
	}

	users, err := s.repo.SearchUsers(ctx, term, SearchResultLimit)
	if err != nil {
		return nil, fmt.Errorf("error searching users: %w", err)
	}

	blockedIDs, err := s.repo.GetBlockedIDs(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("error getting blocked ids: %w", err)
	}

	blocked := make(map[string]bool, len(blockedIDs))
	for _, id := range blockedIDs {
		blocked[id] = true
	}

	visible := make([]models.User, 0, len(users))
	for _, user := range users {
		if !blocked[user.ExternalID] {
			visible = append(visible, user)
		}
	}

	return &models.SearchUsersResponse{Status: "success", Users: visible}, nil
}

// Block list methods

// BlockUser records the directed edge. Blocking yourself is a no-op,
// and re-blocking an already blocked user returns the existing edge.
func (s *DefaultService) BlockUser(ctx context.Context, actorID, blockedID string) (*models.BlockResponse, error) {
	if actorID == blockedID {
		return &models.BlockResponse{Status: "success", Blocked: false}, nil
	}

	id, err := s.repo.CreateBlock(ctx, &models.Block{
		BlockerID: actorID,
		BlockedID: blockedID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("error creating block: %w", err)
	}

	return &models.BlockResponse{Status: "success", BlockID: id, Blocked: true}, nil
}

func (s *DefaultService) UnblockUser(ctx context.Context, actorID, blockedID string) (*models.UnblockResponse, error) {
	removed, err := s.repo.DeleteBlock(ctx, actorID, blockedID)
	if err != nil {
		return nil, fmt.Errorf("error deleting block: %w", err)
	}

	return &models.UnblockResponse{Status: "success", Removed: removed}, nil
}

func (s *DefaultService) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	exists, err := s.repo.BlockExists(ctx, blockerID, blockedID)
	if err != nil {
		return false, fmt.Errorf("error checking block: %w", err)
	}

	return exists, nil
}

func (s *DefaultService) ListBlockedUsers(ctx context.Context, actorID string) (*models.BlockedUsersResponse, error) {
	ids, err := s.repo.GetBlockedIDs(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("error getting blocked ids: %w", err)
	}

	users, err := s.repo.GetUsersByExternalIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("error getting blocked users: %w", err)
	}

	if users == nil {
		users = []models.User{}
	}

	return &models.BlockedUsersResponse{Status: "success", Users: users}, nil
}

func (s *DefaultService) ListBlockedIDs(ctx context.Context, actorID string) (*models.BlockedIDsResponse, error) {
	ids, err := s.repo.GetBlockedIDs(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("error getting blocked ids: %w", err)
	}

	if ids == nil {
		ids = []string{}
	}

	return &models.BlockedIDsResponse{Status: "success", IDs: ids}, nil
}

// Payment method registry methods

// AddPaymentMethod stores a payout destination. Account number formats
// are the calling boundary's concern; this layer only guarantees the
// at-most-one-default invariant.
func (s *DefaultService) AddPaymentMethod(ctx context.Context, ownerID string, req models.AddPaymentMethodRequest) (*models.PaymentMethodResponse, error) {
	method := &models.PaymentMethod{
		OwnerID:       ownerID,
		MethodType:    req.MethodType,
		DisplayName:   req.DisplayName,
		AccountNumber: req.AccountNumber,
		IBAN:          req.IBAN,
		BankName:      req.BankName,
		IsDefault:     req.IsDefault,
		CreatedAt:     time.Now().UTC(),
	}

	if err := s.repo.CreatePaymentMethod(ctx, method); err != nil {
		return nil, fmt.Errorf("error creating payment method: %w", err)
	}

	return &models.PaymentMethodResponse{Status: "success", Method: method}, nil
}

func (s *DefaultService) UpdatePaymentMethod(ctx context.Context, actorID, methodID string, req models.UpdatePaymentMethodRequest) (*models.PaymentMethodResponse, error) {
	existing, err := s.repo.GetPaymentMethod(ctx, methodID)
	if err != nil {
		return nil, fmt.Errorf("error getting payment method: %w", err)
	}

	if existing == nil {
		return nil, fmt.Errorf("%w: payment method %s", ErrNotFound, methodID)
	}

	// Only the owner may mutate a payout destination.
	if existing.OwnerID != actorID {
		return nil, fmt.Errorf("%w: payment method belongs to another user", ErrPermissionDenied)
	}

	existing.DisplayName = req.DisplayName
	existing.AccountNumber = req.AccountNumber
	existing.IBAN = req.IBAN
	existing.BankName = req.BankName
	existing.IsDefault = req.IsDefault

	if err := s.repo.UpdatePaymentMethod(ctx, existing); err != nil {
		// A concurrent delete can remove the row between the read and the
		// update.
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: payment method %s", ErrNotFound, methodID)
		}
		return nil, fmt.Errorf("error updating payment method: %w", err)
	}

	return &models.PaymentMethodResponse{Status: "success", Method: existing}, nil
}

func (s *DefaultService) DeletePaymentMethod(ctx context.Context, actorID, methodID string) error {
	existing, err := s.repo.GetPaymentMethod(ctx, methodID)
	if err != nil {
		return fmt.Errorf("error getting payment method: %w", err)
	}

	if existing == nil {
		return fmt.Errorf("%w: payment method %s", ErrNotFound, methodID)
	}

	if existing.OwnerID != actorID {
		return fmt.Errorf("%w: payment method belongs to another user", ErrPermissionDenied)
	}

	// No referential check against payments: a payment keeps only the
	// method-type string, so history survives deletion.
	if _, err := s.repo.DeletePaymentMethod(ctx, methodID); err != nil {
		return fmt.Errorf("error deleting payment method: %w", err)
	}

	return nil
}

func (s *DefaultService) ListPaymentMethods(ctx context.Context, ownerID string) (*models.PaymentMethodsResponse, error) {
	methods, err := s.repo.GetPaymentMethods(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("error listing payment methods: %w", err)
	}

	if methods == nil {
		methods = []models.PaymentMethod{}
	}

	return &models.PaymentMethodsResponse{Status: "success", Methods: methods}, nil
}

// GetDefaultPaymentMethod returns the owner's default method, or a nil
// method if none is flagged. New users have no default.
func (s *DefaultService) GetDefaultPaymentMethod(ctx context.Context, ownerID string) (*models.PaymentMethodResponse, error) {
	method, err := s.repo.GetDefaultPaymentMethod(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("error getting default payment method: %w", err)
	}

	return &models.PaymentMethodResponse{Status: "success", Method: method}, nil
}

// GetPublicPaymentDetails exposes the owner's full payout routing
// details to any authenticated caller. The payer needs the account
// number to perform the off-platform transfer, so disclosure here is
// the product's documented trust boundary rather than a leak.
func (s *DefaultService) GetPublicPaymentDetails(ctx context.Context, ownerExternalID string) (*models.PublicPaymentDetailsResponse, error) {
	methods, err := s.repo.GetPaymentMethods(ctx, ownerExternalID)
	if err != nil {
		return nil, fmt.Errorf("error getting payment methods: %w", err)
	}

	details := make([]models.PublicPaymentDetails, 0, len(methods))
	for _, method := range methods {
		details = append(details, models.PublicPaymentDetails{
			MethodType:    method.MethodType,
			DisplayName:   method.DisplayName,
			AccountNumber: method.AccountNumber,
			IBAN:          method.IBAN,
			BankName:      method.BankName,
			IsDefault:     method.IsDefault,
		})
	}

	return &models.PublicPaymentDetailsResponse{
		Status:  "success",
		OwnerID: ownerExternalID,
		Methods: details,
	}, nil
}

// Payment ledger methods

// CreatePayment records a transfer intent in the pending state. No
// funds move here: the sender declares "I transferred via rail X" and
// the record waits for the receiver's attestation. Chat-transport side
// effects (sending the payment message) happen around this call, never
// inside it.
func (s *DefaultService) CreatePayment(ctx context.Context, senderID string, req models.CreatePaymentRequest) (*models.PaymentResponse, error) {
	if senderID == req.ReceiverID {
		return nil, fmt.Errorf("%w: cannot send a payment to yourself", ErrValidation)
	}

	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}

	// A block in either direction suppresses payment creation, same as
	// it suppresses chat visibility.
	for _, pair := range [][2]string{{senderID, req.ReceiverID}, {req.ReceiverID, senderID}} {
		blocked, err := s.repo.BlockExists(ctx, pair[0], pair[1])
		if err != nil {
			return nil, fmt.Errorf("error checking block: %w", err)
		}
		if blocked {
			return nil, fmt.Errorf("%w: payments between these users are blocked", ErrPrecondition)
		}
	}

	payment := &models.Payment{
		SenderID:    senderID,
		ReceiverID:  req.ReceiverID,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Status:      models.PaymentPending,
		MethodType:  req.MethodType,
		Description: req.Description,
		ChannelID:   req.ChannelID,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		return nil, fmt.Errorf("error creating payment: %w", err)
	}

	return &models.PaymentResponse{Status: "success", Payment: payment}, nil
}

// TransitionPayment resolves a pending payment. Only the receiver may
// act, modeling real-world "I received it" acknowledgment, and settled
// payments are immutable regardless of actor.
func (s *DefaultService) TransitionPayment(ctx context.Context, actorID, paymentID, action string) (*models.PaymentResponse, error) {
	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("error getting payment: %w", err)
	}

	if payment == nil {
		return nil, fmt.Errorf("%w: payment %s", ErrNotFound, paymentID)
	}

	if payment.ReceiverID != actorID {
		return nil, fmt.Errorf("%w: only the receiver can resolve a payment", ErrPermissionDenied)
	}

	if payment.Status != models.PaymentPending {
		return nil, fmt.Errorf("%w: payment is already %s", ErrPrecondition, payment.Status)
	}

	var toStatus string
	var completedAt *time.Time
	switch action {
	case models.ActionConfirm:
		toStatus = models.PaymentCompleted
		now := time.Now().UTC()
		completedAt = &now
	case models.ActionCancel:
		toStatus = models.PaymentCancelled
	case models.ActionNotReceived:
		toStatus = models.PaymentNotReceived
	default:
		return nil, fmt.Errorf("%w: unknown action %q", ErrValidation, action)
	}

	transitioned, err := s.repo.TransitionPayment(ctx, paymentID, toStatus, completedAt)
	if err != nil {
		return nil, fmt.Errorf("error transitioning payment: %w", err)
	}

	// A racing transition may have settled the payment between the read
	// and the conditional update.
	if !transitioned {
		return nil, fmt.Errorf("%w: payment is no longer pending", ErrPrecondition)
	}

	payment.Status = toStatus
	payment.CompletedAt = completedAt

	return &models.PaymentResponse{Status: "success", Payment: payment}, nil
}

// PaymentHistory returns everything the user sent or received, newest
// first, each entry annotated with the counterparty's profile.
func (s *DefaultService) PaymentHistory(ctx context.Context, userID string) (*models.PaymentHistoryResponse, error) {
	payments, err := s.repo.GetPaymentsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error getting payments: %w", err)
	}

	annotated, err := s.annotatePayments(ctx, userID, payments)
	if err != nil {
		return nil, err
	}

	return &models.PaymentHistoryResponse{Status: "success", Payments: annotated}, nil
}

// PendingPayments is the receiver's action queue: every pending payment
// addressed to them, newest first, annotated with the sender's profile.
func (s *DefaultService) PendingPayments(ctx context.Context, receiverID string) (*models.PaymentHistoryResponse, error) {
	payments, err := s.repo.GetPendingPaymentsForReceiver(ctx, receiverID)
	if err != nil {
		return nil, fmt.Errorf("error getting pending payments: %w", err)
	}

	annotated, err := s.annotatePayments(ctx, receiverID, payments)
	if err != nil {
		return nil, err
	}

	return &models.PaymentHistoryResponse{Status: "success", Payments: annotated}, nil
}

func (s *DefaultService) annotatePayments(ctx context.Context, userID string, payments []models.Payment) ([]models.PaymentWithCounterparty, error) {
	counterpartyIDs := make([]string, 0, len(payments))
	seen := make(map[string]bool)
	for _, payment := range payments {
		other := payment.SenderID
		if payment.SenderID == userID {
			other = payment.ReceiverID
		}
		if !seen[other] {
			seen[other] = true
			counterpartyIDs = append(counterpartyIDs, other)
		}
	}

	users, err := s.repo.GetUsersByExternalIDs(ctx, counterpartyIDs)
	if err != nil {
		return nil, fmt.Errorf("error getting counterparty profiles: %w", err)
	}

	profiles := make(map[string]*models.User, len(users))
	for i := range users {
		profiles[users[i].ExternalID] = &users[i]
	}

	annotated := make([]models.PaymentWithCounterparty, 0, len(payments))
	for _, payment := range payments {
		direction := "received"
		other := payment.SenderID
		if payment.SenderID == userID {
			direction = "sent"
			other = payment.ReceiverID
		}
		annotated = append(annotated, models.PaymentWithCounterparty{
			Payment:      payment,
			Direction:    direction,
			Counterparty: profiles[other],
		})
	}

	return annotated, nil
}

// Group role methods

// InitializeGroupRoles seeds a channel with the CEO role (all
// permissions, assigned to the creator) and the Member role. The call
// is guarded: if any roles already exist for the channel it returns
// them untouched, so callers retrying after a partial chat-creation
// flow cannot duplicate role rows.
func (s *DefaultService) InitializeGroupRoles(ctx context.Context, channelID, createdBy string) (*models.RolesResponse, error) {
	existing, err := s.repo.GetGroupRoles(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("error getting group roles: %w", err)
	}

	if len(existing) > 0 {
		return &models.RolesResponse{Status: "success", Roles: existing}, nil
	}

	now := time.Now().UTC()
	ceo := &models.GroupRole{
		ChannelID:   channelID,
		RoleName:    models.RoleCEO,
		Permissions: append([]string(nil), models.AllPermissions...),
		CreatedBy:   createdBy,
		CreatedAt:   now,
	}
	member := &models.GroupRole{
		ChannelID:   channelID,
		RoleName:    models.RoleMember,
		Permissions: []string{models.PermSendMessages, models.PermViewMembers},
		CreatedBy:   createdBy,
		CreatedAt:   now,
	}
	creator := &models.GroupMember{
		ChannelID:  channelID,
		UserID:     createdBy,
		RoleName:   models.RoleCEO,
		AssignedBy: createdBy,
		AssignedAt: now,
	}

	if err := s.repo.InitializeChannelRoles(ctx, ceo, member, creator); err != nil {
		return nil, fmt.Errorf("error initializing group roles: %w", err)
	}

	return &models.RolesResponse{Status: "success", Roles: []models.GroupRole{*ceo, *member}}, nil
}

func (s *DefaultService) CreateGroupRole(ctx context.Context, actorID, channelID string, req models.CreateRoleRequest) (*models.RoleResponse, error) {
	allowed, err := s.HasPermission(ctx, channelID, actorID, models.PermManageRoles)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: manage_roles required", ErrPermissionDenied)
	}

	existing, err := s.repo.GetGroupRole(ctx, channelID, req.RoleName)
	if err != nil {
		return nil, fmt.Errorf("error getting group role: %w", err)
	}

	if existing != nil {
		return nil, fmt.Errorf("%w: role %q already exists in this group", ErrPrecondition, req.RoleName)
	}

	role := &models.GroupRole{
		ChannelID:   channelID,
		RoleName:    req.RoleName,
		Permissions: req.Permissions,
		CreatedBy:   actorID,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.repo.CreateGroupRole(ctx, role); err != nil {
		return nil, fmt.Errorf("error creating group role: %w", err)
	}

	return &models.RoleResponse{Status: "success", Role: role}, nil
}

// DeleteGroupRole removes a role. The CEO role is structurally
// protected, and a role still referenced by member assignments cannot
// be deleted; callers must reassign those members first.
func (s *DefaultService) DeleteGroupRole(ctx context.Context, actorID, channelID, roleName string) error {
	allowed, err := s.HasPermission(ctx, channelID, actorID, models.PermManageRoles)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%w: manage_roles required", ErrPermissionDenied)
	}

	if roleName == models.RoleCEO {
		return fmt.Errorf("%w: the CEO role cannot be deleted", ErrPrecondition)
	}

	role, err := s.repo.GetGroupRole(ctx, channelID, roleName)
	if err != nil {
		return fmt.Errorf("error getting group role: %w", err)
	}

	if role == nil {
		return fmt.Errorf("%w: role %q", ErrNotFound, roleName)
	}

	count, err := s.repo.CountAssignmentsForRole(ctx, channelID, roleName)
	if err != nil {
		return fmt.Errorf("error counting role assignments: %w", err)
	}

	if count > 0 {
		return fmt.Errorf("%w: role %q is still assigned to %d member(s)", ErrPrecondition, roleName, count)
	}

	if _, err := s.repo.DeleteGroupRole(ctx, channelID, roleName); err != nil {
		return fmt.Errorf("error deleting group role: %w", err)
	}

	return nil
}

// AssignGroupRole gives userID the named role in the channel, replacing
// any previous assignment.
func (s *DefaultService) AssignGroupRole(ctx context.Context, actorID, channelID, userID, roleName string) (*models.StatusResponse, error) {
	allowed, err := s.HasPermission(ctx, channelID, actorID, models.PermAssignRoles)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("%w: assign_roles required", ErrPermissionDenied)
	}

	role, err := s.repo.GetGroupRole(ctx, channelID, roleName)
	if err != nil {
		return nil, fmt.Errorf("error getting group role: %w", err)
	}

	if role == nil {
		return nil, fmt.Errorf("%w: role %q does not exist in this group", ErrPrecondition, roleName)
	}

	assignment := &models.GroupMember{
		ChannelID:  channelID,
		UserID:     userID,
		RoleName:   roleName,
		AssignedBy: actorID,
		AssignedAt: time.Now().UTC(),
	}

	if err := s.repo.AssignRole(ctx, assignment); err != nil {
		return nil, fmt.Errorf("error assigning role: %w", err)
	}

	return &models.StatusResponse{Status: "success", Message: "Role assigned"}, nil
}

func (s *DefaultService) GetGroupRoles(ctx context.Context, channelID string) (*models.RolesResponse, error) {
	roles, err := s.repo.GetGroupRoles(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("error getting group roles: %w", err)
	}

	if roles == nil {
		roles = []models.GroupRole{}
	}

	return &models.RolesResponse{Status: "success", Roles: roles}, nil
}

// GetUserRole resolves the member's role name, falling back to "Member"
// when no assignment row exists. The fallback is computed at read time
// and never materialized, so it stays consistent before any assignment
// and after a role deletion alike.
func (s *DefaultService) GetUserRole(ctx context.Context, channelID, userID string) (string, error) {
	assignment, err := s.repo.GetMemberAssignment(ctx, channelID, userID)
	if err != nil {
		return "", fmt.Errorf("error getting member assignment: %w", err)
	}

	if assignment == nil {
		return models.RoleMember, nil
	}

	return assignment.RoleName, nil
}

// HasPermission resolves the member's role with the Member fallback and
// checks the token against that role's permission set. A missing role
// record resolves to no-permission rather than an error.
func (s *DefaultService) HasPermission(ctx context.Context, channelID, userID, token string) (bool, error) {
	roleName, err := s.GetUserRole(ctx, channelID, userID)
	if err != nil {
		return false, err
	}

	role, err := s.repo.GetGroupRole(ctx, channelID, roleName)
	if err != nil {
		return false, fmt.Errorf("error getting group role: %w", err)
	}

	if role == nil {
		return false, nil
	}

	return role.HasPermission(token), nil
}

func (s *DefaultService) MyChannelRole(ctx context.Context, channelID, userID string) (*models.MyRoleResponse, error) {
	roleName, err := s.GetUserRole(ctx, channelID, userID)
	if err != nil {
		return nil, err
	}

	permissions := []string{}
	role, err := s.repo.GetGroupRole(ctx, channelID, roleName)
	if err != nil {
		return nil, fmt.Errorf("error getting group role: %w", err)
	}
	if role != nil {
		permissions = role.Permissions
	}

	return &models.MyRoleResponse{
		Status:      "success",
		ChannelID:   channelID,
		RoleName:    roleName,
		Permissions: permissions,
	}, nil
}

// ListGroupMembers joins role assignments with user profiles for
// display.
func (s *DefaultService) ListGroupMembers(ctx context.Context, channelID string) (*models.MembersResponse, error) {
	members, err := s.repo.GetChannelMembers(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("error getting channel members: %w", err)
	}

	ids := make([]string, 0, len(members))
	for _, member := range members {
		ids = append(ids, member.UserID)
	}

	users, err := s.repo.GetUsersByExternalIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("error getting member profiles: %w", err)
	}

	profiles := make(map[string]*models.User, len(users))
	for i := range users {
		profiles[users[i].ExternalID] = &users[i]
	}

	result := make([]models.MemberWithProfile, 0, len(members))
	for _, member := range members {
		result = append(result, models.MemberWithProfile{
			GroupMember: member,
			Profile:     profiles[member.UserID],
		})
	}

	return &models.MembersResponse{Status: "success", Members: result}, nil
}
