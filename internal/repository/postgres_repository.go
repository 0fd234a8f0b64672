package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ahkhan/chatpay-server/internal/models"
)

// Repository interface defines the methods that any repository implementation must satisfy
type Repository interface {
	// User operations
	UpsertUser(ctx context.Context, user *models.User) (string, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error)
	SearchUsers(ctx context.Context, term string, limit int) ([]models.User, error)
	GetUsersByExternalIDs(ctx context.Context, externalIDs []string) ([]models.User, error)

	// Block operations
	CreateBlock(ctx context.Context, block *models.Block) (string, error)
	DeleteBlock(ctx context.Context, blockerID, blockedID string) (bool, error)
	BlockExists(ctx context.Context, blockerID, blockedID string) (bool, error)
	GetBlockedIDs(ctx context.Context, blockerID string) ([]string, error)

	// Payment method operations
	CreatePaymentMethod(ctx context.Context, method *models.PaymentMethod) error
	UpdatePaymentMethod(ctx context.Context, method *models.PaymentMethod) error
	DeletePaymentMethod(ctx context.Context, methodID string) (bool, error)
	GetPaymentMethod(ctx context.Context, methodID string) (*models.PaymentMethod, error)
	GetPaymentMethods(ctx context.Context, ownerID string) ([]models.PaymentMethod, error)
	GetDefaultPaymentMethod(ctx context.Context, ownerID string) (*models.PaymentMethod, error)

	// Payment operations
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPayment(ctx context.Context, paymentID string) (*models.Payment, error)
	TransitionPayment(ctx context.Context, paymentID, toStatus string, completedAt *time.Time) (bool, error)
	GetPaymentsForUser(ctx context.Context, userID string) ([]models.Payment, error)
	GetPendingPaymentsForReceiver(ctx context.Context, receiverID string) ([]models.Payment, error)

	// Group role operations
	CreateGroupRole(ctx context.Context, role *models.GroupRole) error
	GetGroupRole(ctx context.Context, channelID, roleName string) (*models.GroupRole, error)
	GetGroupRoles(ctx context.Context, channelID string) ([]models.GroupRole, error)
	DeleteGroupRole(ctx context.Context, channelID, roleName string) (bool, error)
	InitializeChannelRoles(ctx context.Context, ceo, member *models.GroupRole, creator *models.GroupMember) error

	// Role assignment operations
	AssignRole(ctx context.Context, assignment *models.GroupMember) error
	GetMemberAssignment(ctx context.Context, channelID, userID string) (*models.GroupMember, error)
	GetChannelMembers(ctx context.Context, channelID string) ([]models.GroupMember, error)
	CountAssignmentsForRole(ctx context.Context, channelID, roleName string) (int, error)
}

// PostgresRepository implements the Repository interface using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// GetDB returns the underlying database connection
func (r *PostgresRepository) GetDB() *sqlx.DB {
	return r.db
}

// User repository methods

// UpsertUser inserts the user keyed by external id, or patches name and
// avatar on the existing row. Email is immutable once set.
func (r *PostgresRepository) UpsertUser(ctx context.Context, user *models.User) (string, error) {
	existing, err := r.GetUserByExternalID(ctx, user.ExternalID)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()

	if existing != nil {
		query := `UPDATE users SET name = $1, avatar_url = $2, updated_at = $3 WHERE external_id = $4`
		_, err = r.db.ExecContext(ctx, query, user.Name, user.AvatarURL, now, user.ExternalID)
		if err != nil {
			return "", err
		}
		return existing.ID, nil
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	user.CreatedAt = now
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, external_id, name, email, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.ExecContext(ctx, query,
		user.ID, user.ExternalID, user.Name, user.Email, user.AvatarURL, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return "", err
	}

	return user.ID, nil
}

func (r *PostgresRepository) GetUserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	query := `SELECT * FROM users WHERE external_id = $1`

	var user models.User
	err := r.db.GetContext(ctx, &user, query, externalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *PostgresRepository) SearchUsers(ctx context.Context, term string, limit int) ([]models.User, error) {
	query := `
		SELECT * FROM users
		WHERE name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%'
		ORDER BY name ASC
		LIMIT $2
	`

	var users []models.User
	err := r.db.SelectContext(ctx, &users, query, term, limit)
	if err != nil {
		return nil, err
	}

	return users, nil
}

func (r *PostgresRepository) GetUsersByExternalIDs(ctx context.Context, externalIDs []string) ([]models.User, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}

	query := `SELECT * FROM users WHERE external_id = ANY($1)`

	var users []models.User
	err := r.db.SelectContext(ctx, &users, query, pq.Array(externalIDs))
	if err != nil {
		return nil, err
	}

	return users, nil
}

// Block repository methods

// CreateBlock inserts the directed edge, returning the existing edge id
// if the pair is already blocked.
func (r *PostgresRepository) CreateBlock(ctx context.Context, block *models.Block) (string, error) {
	existing, err := r.getBlock(ctx, block.BlockerID, block.BlockedID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ID, nil
	}

	if block.ID == "" {
		block.ID = uuid.New().String()
	}
	if block.CreatedAt.IsZero() {
		block.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO blocks (id, blocker_id, blocked_id, created_at) VALUES ($1, $2, $3, $4)`
	_, err = r.db.ExecContext(ctx, query, block.ID, block.BlockerID, block.BlockedID, block.CreatedAt)
	if err != nil {
		return "", err
	}

	return block.ID, nil
}

func (r *PostgresRepository) getBlock(ctx context.Context, blockerID, blockedID string) (*models.Block, error) {
	query := `SELECT * FROM blocks WHERE blocker_id = $1 AND blocked_id = $2`

	var block models.Block
	err := r.db.GetContext(ctx, &block, query, blockerID, blockedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &block, nil
}

func (r *PostgresRepository) DeleteBlock(ctx context.Context, blockerID, blockedID string) (bool, error) {
	query := `DELETE FROM blocks WHERE blocker_id = $1 AND blocked_id = $2`

	result, err := r.db.ExecContext(ctx, query, blockerID, blockedID)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

func (r *PostgresRepository) BlockExists(ctx context.Context, blockerID, blockedID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM blocks WHERE blocker_id = $1 AND blocked_id = $2)`,
		blockerID, blockedID).Scan(&exists)
	if err != nil {
		return false, err
	}

	return exists, nil
}

func (r *PostgresRepository) GetBlockedIDs(ctx context.Context, blockerID string) ([]string, error) {
	query := `SELECT blocked_id FROM blocks WHERE blocker_id = $1 ORDER BY created_at ASC`

	var ids []string
	err := r.db.SelectContext(ctx, &ids, query, blockerID)
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// Payment method repository methods

// CreatePaymentMethod inserts the method. When the new method is marked
// default, the default flag on every sibling is cleared in the same
// transaction so no window with two defaults can be observed.
func (r *PostgresRepository) CreatePaymentMethod(ctx context.Context, method *models.PaymentMethod) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	if method.IsDefault {
		_, err = tx.ExecContext(ctx,
			`UPDATE payment_methods SET is_default = FALSE WHERE owner_id = $1`,
			method.OwnerID)
		if err != nil {
			return err
		}
	}

	if method.ID == "" {
		method.ID = uuid.New().String()
	}
	if method.CreatedAt.IsZero() {
		method.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO payment_methods (id, owner_id, method_type, display_name, account_number, iban, bank_name, is_default, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = tx.ExecContext(ctx, query,
		method.ID, method.OwnerID, method.MethodType, method.DisplayName,
		method.AccountNumber, method.IBAN, method.BankName, method.IsDefault, method.CreatedAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// UpdatePaymentMethod patches the mutable fields. The sibling default
// clearing excludes the method being updated.
func (r *PostgresRepository) UpdatePaymentMethod(ctx context.Context, method *models.PaymentMethod) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	if method.IsDefault {
		_, err = tx.ExecContext(ctx,
			`UPDATE payment_methods SET is_default = FALSE WHERE owner_id = $1 AND id != $2`,
			method.OwnerID, method.ID)
		if err != nil {
			return err
		}
	}

	query := `
		UPDATE payment_methods
		SET display_name = $1, account_number = $2, iban = $3, bank_name = $4, is_default = $5
		WHERE id = $6
	`
	var result sql.Result
	result, err = tx.ExecContext(ctx, query,
		method.DisplayName, method.AccountNumber, method.IBAN, method.BankName,
		method.IsDefault, method.ID)
	if err != nil {
		return err
	}

	var rows int64
	rows, err = result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		err = sql.ErrNoRows
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepository) DeletePaymentMethod(ctx context.Context, methodID string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM payment_methods WHERE id = $1`, methodID)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

func (r *PostgresRepository) GetPaymentMethod(ctx context.Context, methodID string) (*models.PaymentMethod, error) {
	query := `SELECT * FROM payment_methods WHERE id = $1`

	var method models.PaymentMethod
	err := r.db.GetContext(ctx, &method, query, methodID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &method, nil
}

func (r *PostgresRepository) GetPaymentMethods(ctx context.Context, ownerID string) ([]models.PaymentMethod, error) {
	query := `SELECT * FROM payment_methods WHERE owner_id = $1 ORDER BY created_at ASC`

	var methods []models.PaymentMethod
	err := r.db.SelectContext(ctx, &methods, query, ownerID)
	if err != nil {
		return nil, err
	}

	return methods, nil
}

func (r *PostgresRepository) GetDefaultPaymentMethod(ctx context.Context, ownerID string) (*models.PaymentMethod, error) {
	query := `SELECT * FROM payment_methods WHERE owner_id = $1 AND is_default = TRUE LIMIT 1`

	var method models.PaymentMethod
	err := r.db.GetContext(ctx, &method, query, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // No default configured
		}
		return nil, err
	}

	return &method, nil
}

// Payment repository methods

func (r *PostgresRepository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO payments (id, sender_id, receiver_id, amount, currency, status, method_type, description, channel_id, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		payment.ID, payment.SenderID, payment.ReceiverID, payment.Amount, payment.Currency,
		payment.Status, payment.MethodType, payment.Description, payment.ChannelID,
		payment.CreatedAt, payment.CompletedAt)

	return err
}

func (r *PostgresRepository) GetPayment(ctx context.Context, paymentID string) (*models.Payment, error) {
	query := `SELECT * FROM payments WHERE id = $1`

	var payment models.Payment
	err := r.db.GetContext(ctx, &payment, query, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &payment, nil
}

// TransitionPayment moves a pending payment to a terminal status. The
// update is conditional on the current status still being pending, so a
// racing transition loses cleanly and reports false.
func (r *PostgresRepository) TransitionPayment(ctx context.Context, paymentID, toStatus string, completedAt *time.Time) (bool, error) {
	query := `UPDATE payments SET status = $1, completed_at = $2 WHERE id = $3 AND status = $4`

	result, err := r.db.ExecContext(ctx, query, toStatus, completedAt, paymentID, models.PaymentPending)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

func (r *PostgresRepository) GetPaymentsForUser(ctx context.Context, userID string) ([]models.Payment, error) {
	query := `
		SELECT * FROM payments
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC
	`

	var payments []models.Payment
	err := r.db.SelectContext(ctx, &payments, query, userID)
	if err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *PostgresRepository) GetPendingPaymentsForReceiver(ctx context.Context, receiverID string) ([]models.Payment, error) {
	query := `
		SELECT * FROM payments
		WHERE receiver_id = $1 AND status = $2
		ORDER BY created_at DESC
	`

	var payments []models.Payment
	err := r.db.SelectContext(ctx, &payments, query, receiverID, models.PaymentPending)
	if err != nil {
		return nil, err
	}

	return payments, nil
}

// Group role repository methods

func (r *PostgresRepository) CreateGroupRole(ctx context.Context, role *models.GroupRole) error {
	if role.ID == "" {
		role.ID = uuid.New().String()
	}
	if role.CreatedAt.IsZero() {
		role.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO group_roles (id, channel_id, role_name, permissions, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		role.ID, role.ChannelID, role.RoleName, pq.Array(role.Permissions),
		role.CreatedBy, role.CreatedAt)

	return err
}

func (r *PostgresRepository) GetGroupRole(ctx context.Context, channelID, roleName string) (*models.GroupRole, error) {
	query := `
		SELECT id, channel_id, role_name, permissions, created_by, created_at
		FROM group_roles WHERE channel_id = $1 AND role_name = $2
	`

	var role models.GroupRole
	err := r.db.QueryRowContext(ctx, query, channelID, roleName).Scan(
		&role.ID, &role.ChannelID, &role.RoleName, pq.Array(&role.Permissions),
		&role.CreatedBy, &role.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &role, nil
}

func (r *PostgresRepository) GetGroupRoles(ctx context.Context, channelID string) ([]models.GroupRole, error) {
	query := `
		SELECT id, channel_id, role_name, permissions, created_by, created_at
		FROM group_roles WHERE channel_id = $1 ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []models.GroupRole
	for rows.Next() {
		var role models.GroupRole
		if err := rows.Scan(
			&role.ID, &role.ChannelID, &role.RoleName, pq.Array(&role.Permissions),
			&role.CreatedBy, &role.CreatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}

	return roles, rows.Err()
}

func (r *PostgresRepository) DeleteGroupRole(ctx context.Context, channelID, roleName string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM group_roles WHERE channel_id = $1 AND role_name = $2`,
		channelID, roleName)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return rows > 0, nil
}

// InitializeChannelRoles creates the two default roles and the creator's
// CEO assignment as a single transaction.
func (r *PostgresRepository) InitializeChannelRoles(ctx context.Context, ceo, member *models.GroupRole, creator *models.GroupMember) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	roleQuery := `
		INSERT INTO group_roles (id, channel_id, role_name, permissions, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, role := range []*models.GroupRole{ceo, member} {
		if role.ID == "" {
			role.ID = uuid.New().String()
		}
		if role.CreatedAt.IsZero() {
			role.CreatedAt = time.Now().UTC()
		}
		_, err = tx.ExecContext(ctx, roleQuery,
			role.ID, role.ChannelID, role.RoleName, pq.Array(role.Permissions),
			role.CreatedBy, role.CreatedAt)
		if err != nil {
			return err
		}
	}

	if creator.AssignedAt.IsZero() {
		creator.AssignedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO group_members (channel_id, user_id, role_name, assigned_by, assigned_at) VALUES ($1, $2, $3, $4, $5)`,
		creator.ChannelID, creator.UserID, creator.RoleName, creator.AssignedBy, creator.AssignedAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Role assignment repository methods

// AssignRole replaces any prior assignment for (channel, user). The
// delete and insert run in one transaction so a member never holds zero
// or two roles across the swap.
func (r *PostgresRepository) AssignRole(ctx context.Context, assignment *models.GroupMember) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
	}()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM group_members WHERE channel_id = $1 AND user_id = $2`,
		assignment.ChannelID, assignment.UserID)
	if err != nil {
		return err
	}

	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO group_members (channel_id, user_id, role_name, assigned_by, assigned_at) VALUES ($1, $2, $3, $4, $5)`,
		assignment.ChannelID, assignment.UserID, assignment.RoleName,
		assignment.AssignedBy, assignment.AssignedAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepository) GetMemberAssignment(ctx context.Context, channelID, userID string) (*models.GroupMember, error) {
	query := `SELECT * FROM group_members WHERE channel_id = $1 AND user_id = $2`

	var member models.GroupMember
	err := r.db.GetContext(ctx, &member, query, channelID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &member, nil
}

func (r *PostgresRepository) GetChannelMembers(ctx context.Context, channelID string) ([]models.GroupMember, error) {
	query := `SELECT * FROM group_members WHERE channel_id = $1 ORDER BY assigned_at ASC`

	var members []models.GroupMember
	err := r.db.SelectContext(ctx, &members, query, channelID)
	if err != nil {
		return nil, err
	}

	return members, nil
}

func (r *PostgresRepository) CountAssignmentsForRole(ctx context.Context, channelID, roleName string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM group_members WHERE channel_id = $1 AND role_name = $2`,
		channelID, roleName)
	if err != nil {
		return 0, err
	}

	return count, nil
}
