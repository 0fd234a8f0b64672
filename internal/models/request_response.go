package models

// Request models
type SyncUserRequest struct {
	Name      string `json:"name" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	AvatarURL string `json:"avatarUrl"`
}

type BlockUserRequest struct {
	BlockedID string `json:"blockedId" binding:"required"`
}

type AddPaymentMethodRequest struct {
	MethodType    string `json:"methodType" binding:"required,oneof=easypaisa jazzcash nayapay sadapay bank"`
	DisplayName   string `json:"displayName" binding:"required"`
	AccountNumber string `json:"accountNumber" binding:"required"`
	IBAN          string `json:"iban"`
	BankName      string `json:"bankName"`
	IsDefault     bool   `json:"isDefault"`
}

type UpdatePaymentMethodRequest struct {
	DisplayName   string `json:"displayName" binding:"required"`
	AccountNumber string `json:"accountNumber" binding:"required"`
	IBAN          string `json:"iban"`
	BankName      string `json:"bankName"`
	IsDefault     bool   `json:"isDefault"`
}

type CreatePaymentRequest struct {
	ReceiverID  string  `json:"receiverId" binding:"required"`
	Amount      float64 `json:"amount" binding:"required"`
	Currency    string  `json:"currency" binding:"required"`
	MethodType  string  `json:"methodType" binding:"required"`
	Description string  `json:"description"`
	ChannelID   string  `json:"channelId"`
}

type TransitionPaymentRequest struct {
	Action string `json:"action" binding:"required,oneof=confirm cancel not_received"`
}

type CreateRoleRequest struct {
	RoleName    string   `json:"roleName" binding:"required"`
	Permissions []string `json:"permissions" binding:"required"`
}

type AssignRoleRequest struct {
	RoleName string `json:"roleName" binding:"required"`
}

// Response models
type SyncUserResponse struct {
	Status string `json:"status"`
	UserID string `json:"userId"`
}

type SearchUsersResponse struct {
	Status string `json:"status"`
	Users  []User `json:"users"`
}

type BlockResponse struct {
	Status  string `json:"status"`
	BlockID string `json:"blockId,omitempty"`
	Blocked bool   `json:"blocked"`
}

type UnblockResponse struct {
	Status  string `json:"status"`
	Removed bool   `json:"removed"`
}

type BlockedUsersResponse struct {
	Status string `json:"status"`
	Users  []User `json:"users"`
}

type BlockedIDsResponse struct {
	Status string   `json:"status"`
	IDs    []string `json:"ids"`
}

type PaymentMethodResponse struct {
	Status string         `json:"status"`
	Method *PaymentMethod `json:"method,omitempty"`
}

type PaymentMethodsResponse struct {
	Status  string          `json:"status"`
	Methods []PaymentMethod `json:"methods"`
}

// PublicPaymentDetails exposes full payout routing fields for a user so
// a payer can perform the off-platform transfer. Disclosure is the
// point: any authenticated caller holding the owner's id may fetch it.
type PublicPaymentDetails struct {
	MethodType    string `json:"methodType"`
	DisplayName   string `json:"displayName"`
	AccountNumber string `json:"accountNumber"`
	IBAN          string `json:"iban,omitempty"`
	BankName      string `json:"bankName,omitempty"`
	IsDefault     bool   `json:"isDefault"`
}

type PublicPaymentDetailsResponse struct {
	Status  string                 `json:"status"`
	OwnerID string                 `json:"ownerId"`
	Methods []PublicPaymentDetails `json:"methods"`
}

type PaymentResponse struct {
	Status  string   `json:"status"`
	Payment *Payment `json:"payment,omitempty"`
}

// PaymentWithCounterparty annotates a payment with the other party's
// profile and the direction relative to the querying user.
type PaymentWithCounterparty struct {
	Payment
	Direction    string `json:"direction"` // "sent" or "received"
	Counterparty *User  `json:"counterparty,omitempty"`
}

type PaymentHistoryResponse struct {
	Status   string                    `json:"status"`
	Payments []PaymentWithCounterparty `json:"payments"`
}

type RoleResponse struct {
	Status string     `json:"status"`
	Role   *GroupRole `json:"role,omitempty"`
}

type RolesResponse struct {
	Status string      `json:"status"`
	Roles  []GroupRole `json:"roles"`
}

// MemberWithProfile joins a role assignment with the member's profile
// for display.
type MemberWithProfile struct {
	GroupMember
	Profile *User `json:"profile,omitempty"`
}

type MembersResponse struct {
	Status  string              `json:"status"`
	Members []MemberWithProfile `json:"members"`
}

type MyRoleResponse struct {
	Status      string   `json:"status"`
	ChannelID   string   `json:"channelId"`
	RoleName    string   `json:"roleName"`
	Permissions []string `json:"permissions"`
}

type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
