package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Identity is the bun model for the identities table
type Identity struct {
	bun.BaseModel `bun:"table:identities,alias:i"`

	ID             uuid.UUID `bun:"id,pk,type:uuid"`
	Name           string    `bun:"name,notnull"`
	Email          string    `bun:"email,notnull,unique"`
	PasswordHash   string    `bun:"password_hash,nullzero"`
	Phone          string    `bun:"phone,nullzero"`
	IsSeller       bool      `bun:"is_seller,notnull,default:false"`
	CompanyName    string    `bun:"company_name,nullzero"`
	RegistrationID string    `bun:"registration_id,nullzero"`
	Avatar         string    `bun:"avatar,nullzero"`

	EmailVerified bool `bun:"email_verified,notnull,default:false"`
	PhoneVerified bool `bun:"phone_verified,notnull,default:false"`

	EmailVerificationToken  string     `bun:"email_verification_token,nullzero"`
	EmailVerificationSentAt *time.Time `bun:"email_verification_sent_at"`
	PhoneOTP                string     `bun:"phone_otp,nullzero"`
	PhoneOTPSentAt          *time.Time `bun:"phone_otp_sent_at"`
	ResetTokenHash          string     `bun:"reset_token_hash,nullzero"`
	ResetTokenExpiry        *time.Time `bun:"reset_token_expiry"`

	FederatedID string     `bun:"federated_id,nullzero,unique"`
	LastLogin   *time.Time `bun:"last_login"`
	CreatedAt   time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}
