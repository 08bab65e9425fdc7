package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"

	"github.com/redmonkez12/propertyhub-identity/internal/database"
)

// PostgresStore persists identities in Postgres through bun
type PostgresStore struct {
	db *bun.DB
}

func NewPostgresStore(db *bun.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create inserts a new identity into the database
func (r *PostgresStore) Create(ctx context.Context, i *Identity) (*Identity, error) {
	dbIdentity := mapModelToDB(prepareNew(i, time.Now().UTC()))

	_, err := r.db.NewInsert().
		Model(dbIdentity).
		Returning("*").
		Exec(ctx)

	if err != nil {
		return nil, classifyInsertError(err)
	}

	return mapDBToModel(dbIdentity), nil
}

// GetByEmail retrieves an identity by email
func (r *PostgresStore) GetByEmail(ctx context.Context, email string) (*Identity, error) {
	return r.getWhere(ctx, "email = ?", email)
}

// GetByID retrieves an identity by ID
func (r *PostgresStore) GetByID(ctx context.Context, id uuid.UUID) (*Identity, error) {
	return r.getWhere(ctx, "id = ?", id)
}

func (r *PostgresStore) getWhere(ctx context.Context, query string, arg any) (*Identity, error) {
	dbIdentity := new(database.Identity)
	err := r.db.NewSelect().
		Model(dbIdentity).
		Where(query, arg).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}

	return mapDBToModel(dbIdentity), nil
}

// SetEmailVerificationToken regenerates the verification token for resend
func (r *PostgresStore) SetEmailVerificationToken(ctx context.Context, id uuid.UUID, token string, sentAt time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.Identity)(nil)).
		Set("email_verification_token = ?", token).
		Set("email_verification_sent_at = ?", sentAt).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)

	return checkAffected(result, err, "failed to update verification token")
}

// ConsumeEmailVerificationToken marks the email as verified and clears the token in one statement
func (r *PostgresStore) ConsumeEmailVerificationToken(ctx context.Context, token string, issuedAfter time.Time) (*Identity, error) {
	return r.consume(ctx, r.consumeEmailTokenQuery(token, issuedAfter), "failed to consume verification token")
}

func (r *PostgresStore) consumeEmailTokenQuery(token string, issuedAfter time.Time) *bun.UpdateQuery {
	q := r.db.NewUpdate().
		Model((*database.Identity)(nil)).
		Set("email_verified = ?", true).
		Set("email_verification_token = NULL").
		Set("email_verification_sent_at = NULL").
		Set("updated_at = NOW()").
		Where("email_verification_token = ?", token)
	if !issuedAfter.IsZero() {
		q = q.Where("email_verification_sent_at > ?", issuedAfter)
	}
	return q.Returning("*")
}

// SetPhoneOTP stores a new one-time code for the identity
func (r *PostgresStore) SetPhoneOTP(ctx context.Context, id uuid.UUID, otp string, sentAt time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.Identity)(nil)).
		Set("phone_otp = ?", otp).
		Set("phone_otp_sent_at = ?", sentAt).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)

	return checkAffected(result, err, "failed to update phone otp")
}

// ConsumePhoneOTP marks the phone as verified when the code matches
func (r *PostgresStore) ConsumePhoneOTP(ctx context.Context, email, otp string, issuedAfter time.Time) (*Identity, error) {
	consumed, err := r.consume(ctx, r.consumePhoneOTPQuery(email, otp, issuedAfter), "failed to consume phone otp")
	if errors.Is(err, ErrNoMatch) {
		// Distinguish an unknown email from a wrong code
		if _, getErr := r.GetByEmail(ctx, email); getErr != nil {
			return nil, getErr
		}
	}
	return consumed, err
}

func (r *PostgresStore) consumePhoneOTPQuery(email, otp string, issuedAfter time.Time) *bun.UpdateQuery {
	q := r.db.NewUpdate().
		Model((*database.Identity)(nil)).
		Set("phone_verified = ?", true).
		Set("phone_otp = NULL").
		Set("phone_otp_sent_at = NULL").
		Set("updated_at = NOW()").
		Where("email = ?", email).
		Where("phone_otp = ?", otp)
	if !issuedAfter.IsZero() {
		q = q.Where("phone_otp_sent_at > ?", issuedAfter)
	}
	return q.Returning("*")
}

// SetResetToken stores the hashed reset token with its expiry
func (r *PostgresStore) SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.Identity)(nil)).
		Set("reset_token_hash = ?", tokenHash).
		Set("reset_token_expiry = ?", expiresAt).
		Set("updated_at = NOW()").
		Where("id = ?", id).
		Exec(ctx)

	return checkAffected(result, err, "failed to store reset token")
}

// ConsumeResetToken replaces the password and clears both reset fields in one statement
func (r *PostgresStore) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (*Identity, error) {
	return r.consume(ctx, r.consumeResetTokenQuery(tokenHash, now, passwordHash), "failed to consume reset token")
}

func (r *PostgresStore) consumeResetTokenQuery(tokenHash string, now time.Time, passwordHash string) *bun.UpdateQuery {
	return r.db.NewUpdate().
		Model((*database.Identity)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("reset_token_hash = NULL").
		Set("reset_token_expiry = NULL").
		Set("updated_at = NOW()").
		Where("reset_token_hash = ?", tokenHash).
		Where("reset_token_expiry > ?", now).
		Returning("*")
}

// LinkFederatedID attaches a provider subject unless a different one is already present
func (r *PostgresStore) LinkFederatedID(ctx context.Context, id uuid.UUID, federatedID, avatar string) (*Identity, error) {
	linked, err := r.consume(ctx, r.linkFederatedQuery(id, federatedID, avatar), "failed to link federated id")
	if err != nil {
		if errors.Is(err, ErrNoMatch) {
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, ErrFederatedConflict
		}
		if isUniqueViolation(err) {
			return nil, ErrFederatedConflict
		}
		return nil, err
	}
	return linked, nil
}

func (r *PostgresStore) linkFederatedQuery(id uuid.UUID, federatedID, avatar string) *bun.UpdateQuery {
	q := r.db.NewUpdate().
		Model((*database.Identity)(nil)).
		Set("federated_id = ?", federatedID).
		Set("email_verified = ?", true).
		Set("updated_at = NOW()")
	if avatar != "" {
		q = q.Set("avatar = COALESCE(NULLIF(avatar, ''), ?)", avatar)
	}
	return q.
		Where("id = ?", id).
		WhereGroup(" AND ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.Where("federated_id IS NULL").WhereOr("federated_id = ?", federatedID)
		}).
		Returning("*")
}

// TouchLastLogin records a successful authentication
func (r *PostgresStore) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	result, err := r.db.NewUpdate().
		Model((*database.Identity)(nil)).
		Set("last_login = ?", at).
		Where("id = ?", id).
		Exec(ctx)

	return checkAffected(result, err, "failed to update last login")
}

// consume runs a conditional UPDATE ... RETURNING and maps "no row" to ErrNoMatch
func (r *PostgresStore) consume(ctx context.Context, q *bun.UpdateQuery, msg string) (*Identity, error) {
	dbIdentity := new(database.Identity)
	err := q.Scan(ctx, dbIdentity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoMatch
		}
		return nil, fmt.Errorf("%s: %w", msg, err)
	}

	return mapDBToModel(dbIdentity), nil
}

func checkAffected(result sql.Result, err error, msg string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", msg, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func classifyInsertError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		if strings.Contains(pqErr.Constraint, "federated") {
			return ErrFederatedConflict
		}
		return ErrDuplicateEmail
	}
	return fmt.Errorf("failed to create identity: %w", err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// mapDBToModel converts database model to domain model
func mapDBToModel(d *database.Identity) *Identity {
	return &Identity{
		ID:                      d.ID,
		Name:                    d.Name,
		Email:                   d.Email,
		PasswordHash:            d.PasswordHash,
		Phone:                   d.Phone,
		IsSeller:                d.IsSeller,
		CompanyName:             d.CompanyName,
		RegistrationID:          d.RegistrationID,
		Avatar:                  d.Avatar,
		EmailVerified:           d.EmailVerified,
		PhoneVerified:           d.PhoneVerified,
		EmailVerificationToken:  d.EmailVerificationToken,
		EmailVerificationSentAt: d.EmailVerificationSentAt,
		PhoneOTP:                d.PhoneOTP,
		PhoneOTPSentAt:          d.PhoneOTPSentAt,
		ResetTokenHash:          d.ResetTokenHash,
		ResetTokenExpiry:        d.ResetTokenExpiry,
		FederatedID:             d.FederatedID,
		LastLogin:               d.LastLogin,
		CreatedAt:               d.CreatedAt,
		UpdatedAt:               d.UpdatedAt,
	}
}

func mapModelToDB(i *Identity) *database.Identity {
	return &database.Identity{
		ID:                      i.ID,
		Name:                    i.Name,
		Email:                   i.Email,
		PasswordHash:            i.PasswordHash,
		Phone:                   i.Phone,
		IsSeller:                i.IsSeller,
		CompanyName:             i.CompanyName,
		RegistrationID:          i.RegistrationID,
		Avatar:                  i.Avatar,
		EmailVerified:           i.EmailVerified,
		PhoneVerified:           i.PhoneVerified,
		EmailVerificationToken:  i.EmailVerificationToken,
		EmailVerificationSentAt: i.EmailVerificationSentAt,
		PhoneOTP:                i.PhoneOTP,
		PhoneOTPSentAt:          i.PhoneOTPSentAt,
		ResetTokenHash:          i.ResetTokenHash,
		ResetTokenExpiry:        i.ResetTokenExpiry,
		FederatedID:             i.FederatedID,
		LastLogin:               i.LastLogin,
		CreatedAt:               i.CreatedAt,
		UpdatedAt:               i.UpdatedAt,
	}
}
