package repository

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ahkhan/chatpay-server/internal/models"
)

// MemoryRepository is an in-memory implementation of the Repository
// interface used for unit and handler testing without a running
// database. A single mutex guards every operation, which also gives
// each call the per-operation atomicity the Postgres implementation
// gets from transactions.
type MemoryRepository struct {
	mu          sync.Mutex
	users       map[string]*models.User // keyed by external id
	blocks      map[string]*models.Block
	methods     map[string]*models.PaymentMethod
	payments    map[string]*models.Payment
	roles       map[string]*models.GroupRole   // keyed by channel|role
	assignments map[string]*models.GroupMember // keyed by channel|user
}

// NewMemoryRepository instantiates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:       make(map[string]*models.User),
		blocks:      make(map[string]*models.Block),
		methods:     make(map[string]*models.PaymentMethod),
		payments:    make(map[string]*models.Payment),
		roles:       make(map[string]*models.GroupRole),
		assignments: make(map[string]*models.GroupMember),
	}
}

func pairKey(a, b string) string {
	return a + "|" + b
}

// User repository methods

func (m *MemoryRepository) UpsertUser(_ context.Context, user *models.User) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()

	if existing, ok := m.users[user.ExternalID]; ok {
		existing.Name = user.Name
		existing.AvatarURL = user.AvatarURL
		existing.UpdatedAt = now
		return existing.ID, nil
	}

	stored := *user
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.users[stored.ExternalID] = &stored

	return stored.ID, nil
}

func (m *MemoryRepository) GetUserByExternalID(_ context.Context, externalID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[externalID]
	if !ok {
		return nil, nil
	}

	copied := *user
	return &copied, nil
}

func (m *MemoryRepository) SearchUsers(_ context.Context, term string, limit int) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	needle := strings.ToLower(term)

	var matched []models.User
	for _, user := range m.users {
		if strings.Contains(strings.ToLower(user.Name), needle) ||
			strings.Contains(strings.ToLower(user.Email), needle) {
			matched = append(matched, *user)
		}
	}

	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	if len(matched) > limit {
		matched = matched[:limit]
	}

	return matched, nil
}

func (m *MemoryRepository) GetUsersByExternalIDs(_ context.Context, externalIDs []string) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var users []models.User
	for _, id := range externalIDs {
		if user, ok := m.users[id]; ok {
			users = append(users, *user)
		}
	}

	return users, nil
}

// Block repository methods

func (m *MemoryRepository) CreateBlock(_ context.Context, block *models.Block) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey(block.BlockerID, block.BlockedID)
	if existing, ok := m.blocks[key]; ok {
		return existing.ID, nil
	}

	stored := *block
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	m.blocks[key] = &stored

	return stored.ID, nil
}

func (m *MemoryRepository) DeleteBlock(_ context.Context, blockerID, blockedID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey(blockerID, blockedID)
	if _, ok := m.blocks[key]; !ok {
		return false, nil
	}

	delete(m.blocks, key)
	return true, nil
}

func (m *MemoryRepository) BlockExists(_ context.Context, blockerID, blockedID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.blocks[pairKey(blockerID, blockedID)]
	return ok, nil
}

func (m *MemoryRepository) GetBlockedIDs(_ context.Context, blockerID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var edges []*models.Block
	for _, block := range m.blocks {
		if block.BlockerID == blockerID {
			edges = append(edges, block)
		}
	}

	sort.Slice(edges, func(i, j int) bool { return edges[i].CreatedAt.Before(edges[j].CreatedAt) })

	var ids []string
	for _, edge := range edges {
		ids = append(ids, edge.BlockedID)
	}

	return ids, nil
}

// Payment method repository methods

func (m *MemoryRepository) CreatePaymentMethod(_ context.Context, method *models.PaymentMethod) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if method.IsDefault {
		m.clearDefaultsLocked(method.OwnerID, "")
	}

	stored := *method
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	m.methods[stored.ID] = &stored
	method.ID = stored.ID

	return nil
}

func (m *MemoryRepository) UpdatePaymentMethod(_ context.Context, method *models.PaymentMethod) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.methods[method.ID]
	if !ok {
		return sql.ErrNoRows
	}

	if method.IsDefault {
		m.clearDefaultsLocked(existing.OwnerID, method.ID)
	}

	existing.DisplayName = method.DisplayName
	existing.AccountNumber = method.AccountNumber
	existing.IBAN = method.IBAN
	existing.BankName = method.BankName
	existing.IsDefault = method.IsDefault

	return nil
}

func (m *MemoryRepository) clearDefaultsLocked(ownerID, excludeID string) {
	for _, method := range m.methods {
		if method.OwnerID == ownerID && method.ID != excludeID {
			method.IsDefault = false
		}
	}
}

func (m *MemoryRepository) DeletePaymentMethod(_ context.Context, methodID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.methods[methodID]; !ok {
		return false, nil
	}

	delete(m.methods, methodID)
	return true, nil
}

func (m *MemoryRepository) GetPaymentMethod(_ context.Context, methodID string) (*models.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	method, ok := m.methods[methodID]
	if !ok {
		return nil, nil
	}

	copied := *method
	return &copied, nil
}

func (m *MemoryRepository) GetPaymentMethods(_ context.Context, ownerID string) ([]models.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var methods []models.PaymentMethod
	for _, method := range m.methods {
		if method.OwnerID == ownerID {
			methods = append(methods, *method)
		}
	}

	sort.Slice(methods, func(i, j int) bool { return methods[i].CreatedAt.Before(methods[j].CreatedAt) })

	return methods, nil
}

func (m *MemoryRepository) GetDefaultPaymentMethod(_ context.Context, ownerID string) (*models.PaymentMethod, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, method := range m.methods {
		if method.OwnerID == ownerID && method.IsDefault {
			copied := *method
			return &copied, nil
		}
	}

	return nil, nil
}

// Payment repository methods

func (m *MemoryRepository) CreatePayment(_ context.Context, payment *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *payment
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	m.payments[stored.ID] = &stored
	payment.ID = stored.ID
	payment.CreatedAt = stored.CreatedAt

	return nil
}

func (m *MemoryRepository) GetPayment(_ context.Context, paymentID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	payment, ok := m.payments[paymentID]
	if !ok {
		return nil, nil
	}

	copied := *payment
	return &copied, nil
}

func (m *MemoryRepository) TransitionPayment(_ context.Context, paymentID, toStatus string, completedAt *time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	payment, ok := m.payments[paymentID]
	if !ok || payment.Status != models.PaymentPending {
		return false, nil
	}

	payment.Status = toStatus
	payment.CompletedAt = completedAt

	return true, nil
}

func (m *MemoryRepository) GetPaymentsForUser(_ context.Context, userID string) ([]models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var payments []models.Payment
	for _, payment := range m.payments {
		if payment.SenderID == userID || payment.ReceiverID == userID {
			payments = append(payments, *payment)
		}
	}

	sort.Slice(payments, func(i, j int) bool { return payments[i].CreatedAt.After(payments[j].CreatedAt) })

	return payments, nil
}

func (m *MemoryRepository) GetPendingPaymentsForReceiver(_ context.Context, receiverID string) ([]models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var payments []models.Payment
	for _, payment := range m.payments {
		if payment.ReceiverID == receiverID && payment.Status == models.PaymentPending {
			payments = append(payments, *payment)
		}
	}

	sort.Slice(payments, func(i, j int) bool { return payments[i].CreatedAt.After(payments[j].CreatedAt) })

	return payments, nil
}

// Group role repository methods

func (m *MemoryRepository) CreateGroupRole(_ context.Context, role *models.GroupRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.createRoleLocked(role)
}

func (m *MemoryRepository) createRoleLocked(role *models.GroupRole) error {
	stored := *role
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	stored.Permissions = append([]string(nil), role.Permissions...)
	m.roles[pairKey(role.ChannelID, role.RoleName)] = &stored

	return nil
}

func (m *MemoryRepository) GetGroupRole(_ context.Context, channelID, roleName string) (*models.GroupRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	role, ok := m.roles[pairKey(channelID, roleName)]
	if !ok {
		return nil, nil
	}

	copied := *role
	copied.Permissions = append([]string(nil), role.Permissions...)
	return &copied, nil
}

func (m *MemoryRepository) GetGroupRoles(_ context.Context, channelID string) ([]models.GroupRole, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var roles []models.GroupRole
	for _, role := range m.roles {
		if role.ChannelID == channelID {
			copied := *role
			copied.Permissions = append([]string(nil), role.Permissions...)
			roles = append(roles, copied)
		}
	}

	sort.Slice(roles, func(i, j int) bool { return roles[i].CreatedAt.Before(roles[j].CreatedAt) })

	return roles, nil
}

func (m *MemoryRepository) DeleteGroupRole(_ context.Context, channelID, roleName string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := pairKey(channelID, roleName)
	if _, ok := m.roles[key]; !ok {
		return false, nil
	}

	delete(m.roles, key)
	return true, nil
}

func (m *MemoryRepository) InitializeChannelRoles(_ context.Context, ceo, member *models.GroupRole, creator *models.GroupMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.createRoleLocked(ceo); err != nil {
		return err
	}
	if err := m.createRoleLocked(member); err != nil {
		return err
	}

	stored := *creator
	if stored.AssignedAt.IsZero() {
		stored.AssignedAt = time.Now().UTC()
	}
	m.assignments[pairKey(creator.ChannelID, creator.UserID)] = &stored

	return nil
}

// Role assignment repository methods

func (m *MemoryRepository) AssignRole(_ context.Context, assignment *models.GroupMember) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *assignment
	if stored.AssignedAt.IsZero() {
		stored.AssignedAt = time.Now().UTC()
	}
	m.assignments[pairKey(assignment.ChannelID, assignment.UserID)] = &stored

	return nil
}

func (m *MemoryRepository) GetMemberAssignment(_ context.Context, channelID, userID string) (*models.GroupMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	assignment, ok := m.assignments[pairKey(channelID, userID)]
	if !ok {
		return nil, nil
	}

	copied := *assignment
	return &copied, nil
}

func (m *MemoryRepository) GetChannelMembers(_ context.Context, channelID string) ([]models.GroupMember, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var members []models.GroupMember
	for _, assignment := range m.assignments {
		if assignment.ChannelID == channelID {
			members = append(members, *assignment)
		}
	}

	sort.Slice(members, func(i, j int) bool { return members[i].AssignedAt.Before(members[j].AssignedAt) })

	return members, nil
}

func (m *MemoryRepository) CountAssignmentsForRole(_ context.Context, channelID, roleName string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, assignment := range m.assignments {
		if assignment.ChannelID == channelID && assignment.RoleName == roleName {
			count++
		}
	}

	return count, nil
}
