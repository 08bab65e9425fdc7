package identity

import (
	"time"

	"github.com/google/uuid"
)

// Identity is one user account with its credentials and verification state.
// Empty strings mean "absent" for the optional string fields.
type Identity struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"` // Never expose password hash in JSON
	Phone          string    `json:"phone,omitempty"`
	IsSeller       bool      `json:"isSeller"`
	CompanyName    string    `json:"companyName,omitempty"`
	RegistrationID string    `json:"registrationId,omitempty"`
	Avatar         string    `json:"avatar,omitempty"`

	EmailVerified bool `json:"emailVerified"`
	PhoneVerified bool `json:"phoneVerified"`

	EmailVerificationToken  string     `json:"-"`
	EmailVerificationSentAt *time.Time `json:"-"`
	PhoneOTP                string     `json:"-"`
	PhoneOTPSentAt          *time.Time `json:"-"`

	// ResetTokenHash is the SHA-256 hex digest of the emailed reset token
	ResetTokenHash   string     `json:"-"`
	ResetTokenExpiry *time.Time `json:"-"`

	FederatedID string     `json:"-"`
	LastLogin   *time.Time `json:"lastLogin,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// HasPassword reports whether the identity can authenticate with a password
func (i *Identity) HasPassword() bool {
	return i.PasswordHash != ""
}

// Profile is the public view of an Identity
type Profile struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone,omitempty"`
	IsSeller       bool      `json:"isSeller"`
	CompanyName    string    `json:"companyName,omitempty"`
	RegistrationID string    `json:"registrationId,omitempty"`
	Avatar         string    `json:"avatar,omitempty"`
	EmailVerified  bool      `json:"emailVerified"`
	PhoneVerified  bool      `json:"phoneVerified"`
}

// Profile returns the public view of the identity
func (i *Identity) Profile() Profile {
	return Profile{
		ID:             i.ID,
		Name:           i.Name,
		Email:          i.Email,
		Phone:          i.Phone,
		IsSeller:       i.IsSeller,
		CompanyName:    i.CompanyName,
		RegistrationID: i.RegistrationID,
		Avatar:         i.Avatar,
		EmailVerified:  i.EmailVerified,
		PhoneVerified:  i.PhoneVerified,
	}
}

func (i *Identity) clone() *Identity {
	c := *i
	c.EmailVerificationSentAt = cloneTime(i.EmailVerificationSentAt)
	c.PhoneOTPSentAt = cloneTime(i.PhoneOTPSentAt)
	c.ResetTokenExpiry = cloneTime(i.ResetTokenExpiry)
	c.LastLogin = cloneTime(i.LastLogin)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
