package model

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

type AccountStatus string

const (
	AccountPending  AccountStatus = "pending"
	AccountApproved AccountStatus = "approved"
	AccountRejected AccountStatus = "rejected"
)

// IsTerminal reports whether the account has left the pending state.
func (s AccountStatus) IsTerminal() bool {
	return s == AccountApproved || s == AccountRejected
}

// User represents an application account as stored in the `users`
// table.  Only approved accounts may obtain tokens; the password hash
// is never serialized.
//
// Fields:
//  ID            – primary key identifier of the user.
//  Email         – unique, lower-cased email address.
//  PasswordHash  – bcrypt hashed password.
//  Role          – student or admin.
//  Status        – pending, approved or rejected.
//  CreatedAt     – signup timestamp.
//  ApprovedAt    – when an admin approved the account.
//  RejectedAt    – when the account was rejected.
//  AutoCancelled – true when the rejection came from the sweep.
type User struct {
	ID            uint64        `json:"id"`
	Email         string        `json:"email"`
	PasswordHash  string        `json:"-"`
	Role          Role          `json:"role"`
	Status        AccountStatus `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
	ApprovedAt    *time.Time    `json:"approvedAt"`
	RejectedAt    *time.Time    `json:"rejectedAt"`
	AutoCancelled bool          `json:"autoCancelled"`
}

// UserFilter selects accounts; zero values do not constrain.
type UserFilter struct {
	Role   Role
	Status AccountStatus
}

// UserPatch is a partial update of one account.
type UserPatch struct {
	ID            uint64
	Status        *AccountStatus
	ApprovedAt    *time.Time
	RejectedAt    *time.Time
	AutoCancelled *bool
}

// Empty reports whether the patch writes nothing.
func (p UserPatch) Empty() bool {
	return p.Status == nil && p.ApprovedAt == nil && p.RejectedAt == nil && p.AutoCancelled == nil
}

// Apply returns a copy of u with the patch fields written over it.
func (p UserPatch) Apply(u User) User {
	if p.Status != nil {
		u.Status = *p.Status
	}
	if p.ApprovedAt != nil {
		u.ApprovedAt = p.ApprovedAt
	}
	if p.RejectedAt != nil {
		u.RejectedAt = p.RejectedAt
	}
	if p.AutoCancelled != nil {
		u.AutoCancelled = *p.AutoCancelled
	}
	return u
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the raw token is stored.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
