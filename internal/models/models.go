package models

import (
	"time"
)

// User mirrors a profile reported by the external identity provider.
// ExternalID is the provider's user id; records are upserted on every
// profile sync and never deleted by this service.
type User struct {
	ID         string    `db:"id" json:"id"`
	ExternalID string    `db:"external_id" json:"externalId"`
	Name       string    `db:"name" json:"name"`
	Email      string    `db:"email" json:"email"`
	AvatarURL  string    `db:"avatar_url" json:"avatarUrl"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `db:"updated_at" json:"updatedAt"`
}

// Block is a directed edge: blocker has blocked blocked. Unique per
// ordered pair.
type Block struct {
	ID        string    `db:"id" json:"id"`
	BlockerID string    `db:"blocker_id" json:"blockerId"`
	BlockedID string    `db:"blocked_id" json:"blockedId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Payment method types. "bank" additionally carries IBAN and bank name;
// the rest are mobile wallet handles.
const (
	MethodEasypaisa = "easypaisa"
	MethodJazzcash  = "jazzcash"
	MethodNayapay   = "nayapay"
	MethodSadapay   = "sadapay"
	MethodBank      = "bank"
)

// PaymentMethod is a payout destination owned by a user. At most one
// method per owner carries IsDefault = true.
type PaymentMethod struct {
	ID            string    `db:"id" json:"id"`
	OwnerID       string    `db:"owner_id" json:"ownerId"`
	MethodType    string    `db:"method_type" json:"methodType"`
	DisplayName   string    `db:"display_name" json:"displayName"`
	AccountNumber string    `db:"account_number" json:"accountNumber"`
	IBAN          string    `db:"iban" json:"iban,omitempty"`
	BankName      string    `db:"bank_name" json:"bankName,omitempty"`
	IsDefault     bool      `db:"is_default" json:"isDefault"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// Payment statuses. Pending is the sole initial state; the other three
// are terminal.
const (
	PaymentPending     = "pending"
	PaymentCompleted   = "completed"
	PaymentCancelled   = "cancelled"
	PaymentNotReceived = "not_received"
)

// Payment transition actions, receiver-only.
const (
	ActionConfirm     = "confirm"
	ActionCancel      = "cancel"
	ActionNotReceived = "not_received"
)

// Payment records a self-declared transfer intent from sender to
// receiver. The platform never custodies funds: the sender declares the
// off-platform transfer and the receiver attests to the outcome.
type Payment struct {
	ID          string     `db:"id" json:"id"`
	SenderID    string     `db:"sender_id" json:"senderId"`
	ReceiverID  string     `db:"receiver_id" json:"receiverId"`
	Amount      float64    `db:"amount" json:"amount"`
	Currency    string     `db:"currency" json:"currency"`
	Status      string     `db:"status" json:"status"`
	MethodType  string     `db:"method_type" json:"methodType"`
	Description string     `db:"description" json:"description,omitempty"`
	ChannelID   string     `db:"channel_id" json:"channelId,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	CompletedAt *time.Time `db:"completed_at" json:"completedAt,omitempty"`
}

// Permission tokens understood by the role engine.
const (
	PermSendMessages      = "send_messages"
	PermViewMembers       = "view_members"
	PermInviteMembers     = "invite_members"
	PermKickMembers       = "kick_members"
	PermEditGroupSettings = "edit_group_settings"
	PermManageRoles       = "manage_roles"
	PermAssignRoles       = "assign_roles"
	PermDeleteGroup       = "delete_group"
)

// AllPermissions lists every known permission token. The CEO role is
// created with this full set.
var AllPermissions = []string{
	PermSendMessages,
	PermViewMembers,
	PermInviteMembers,
	PermKickMembers,
	PermEditGroupSettings,
	PermManageRoles,
	PermAssignRoles,
	PermDeleteGroup,
}

// Reserved role names. RoleCEO cannot be deleted; RoleMember is also the
// read-time fallback for members with no assignment row.
const (
	RoleCEO    = "CEO"
	RoleMember = "Member"
)

// GroupRole is a named set of permission tokens scoped to a chat
// channel. The channel itself is owned by the external chat transport;
// only its opaque id is stored here.
type GroupRole struct {
	ID          string    `db:"id" json:"id"`
	ChannelID   string    `db:"channel_id" json:"channelId"`
	RoleName    string    `db:"role_name" json:"roleName"`
	Permissions []string  `db:"-" json:"permissions"`
	CreatedBy   string    `db:"created_by" json:"createdBy"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// HasPermission reports whether the role grants the given token.
func (r *GroupRole) HasPermission(token string) bool {
	for _, p := range r.Permissions {
		if p == token {
			return true
		}
	}
	return false
}

// GroupMember assigns a role to a user within a channel, unique per
// (channel, user). Reassignment replaces the row, so AssignedBy and
// AssignedAt always describe the latest assignment only.
type GroupMember struct {
	ChannelID  string    `db:"channel_id" json:"channelId"`
	UserID     string    `db:"user_id" json:"userId"`
	RoleName   string    `db:"role_name" json:"roleName"`
	AssignedBy string    `db:"assigned_by" json:"assignedBy"`
	AssignedAt time.Time `db:"assigned_at" json:"assignedAt"`
}
