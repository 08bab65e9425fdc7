package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/redmonkez12/propertyhub-identity/internal/database"
)

// mongoIdentity is the document shape. Optional fields are omitted when
// empty so that sparse indexes and $unset behave as "absent".
type mongoIdentity struct {
	ID             string `bson:"_id"`
	Name           string `bson:"name"`
	Email          string `bson:"email"`
	PasswordHash   string `bson:"password_hash,omitempty"`
	Phone          string `bson:"phone,omitempty"`
	IsSeller       bool   `bson:"is_seller"`
	CompanyName    string `bson:"company_name,omitempty"`
	RegistrationID string `bson:"registration_id,omitempty"`
	Avatar         string `bson:"avatar,omitempty"`

	EmailVerified bool `bson:"email_verified"`
	PhoneVerified bool `bson:"phone_verified"`

	EmailVerificationToken  string     `bson:"email_verification_token,omitempty"`
	EmailVerificationSentAt *time.Time `bson:"email_verification_sent_at,omitempty"`
	PhoneOTP                string     `bson:"phone_otp,omitempty"`
	PhoneOTPSentAt          *time.Time `bson:"phone_otp_sent_at,omitempty"`
	ResetTokenHash          string     `bson:"reset_token_hash,omitempty"`
	ResetTokenExpiry        *time.Time `bson:"reset_token_expiry,omitempty"`

	FederatedID string     `bson:"federated_id,omitempty"`
	LastLogin   *time.Time `bson:"last_login,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

// MongoStore persists identities as documents in MongoDB
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(database.IdentitiesCollection)}
}

func (s *MongoStore) Create(ctx context.Context, i *Identity) (*Identity, error) {
	doc := toMongo(prepareNew(i, time.Now().UTC()))

	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return nil, classifyMongoInsertError(err)
	}

	return fromMongo(doc), nil
}

// classifyMongoInsertError tells the two unique indexes apart by name
func classifyMongoInsertError(err error) error {
	if !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("failed to create identity: %w", err)
	}
	if strings.Contains(err.Error(), database.MongoFederatedIDIndex) {
		return ErrFederatedConflict
	}
	return ErrDuplicateEmail
}

func (s *MongoStore) GetByID(ctx context.Context, id uuid.UUID) (*Identity, error) {
	return s.findOne(ctx, bson.M{"_id": id.String()})
}

func (s *MongoStore) GetByEmail(ctx context.Context, email string) (*Identity, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.M) (*Identity, error) {
	var doc mongoIdentity
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}
	return fromMongo(&doc), nil
}

func (s *MongoStore) SetEmailVerificationToken(ctx context.Context, id uuid.UUID, token string, sentAt time.Time) error {
	return s.updateByID(ctx, id, bson.M{
		"email_verification_token":   token,
		"email_verification_sent_at": sentAt,
	})
}

func (s *MongoStore) ConsumeEmailVerificationToken(ctx context.Context, token string, issuedAfter time.Time) (*Identity, error) {
	filter, update := consumeEmailTokenUpdate(token, issuedAfter, time.Now().UTC())
	return s.consume(ctx, filter, update)
}

func consumeEmailTokenUpdate(token string, issuedAfter, now time.Time) (bson.M, bson.M) {
	filter := bson.M{"email_verification_token": token}
	if !issuedAfter.IsZero() {
		filter["email_verification_sent_at"] = bson.M{"$gt": issuedAfter}
	}
	return filter, bson.M{
		"$set":   bson.M{"email_verified": true, "updated_at": now},
		"$unset": bson.M{"email_verification_token": "", "email_verification_sent_at": ""},
	}
}

func (s *MongoStore) SetPhoneOTP(ctx context.Context, id uuid.UUID, otp string, sentAt time.Time) error {
	return s.updateByID(ctx, id, bson.M{
		"phone_otp":         otp,
		"phone_otp_sent_at": sentAt,
	})
}

func (s *MongoStore) ConsumePhoneOTP(ctx context.Context, email, otp string, issuedAfter time.Time) (*Identity, error) {
	filter, update := consumePhoneOTPUpdate(email, otp, issuedAfter, time.Now().UTC())
	consumed, err := s.consume(ctx, filter, update)
	if errors.Is(err, ErrNoMatch) {
		if _, getErr := s.GetByEmail(ctx, email); getErr != nil {
			return nil, getErr
		}
	}
	return consumed, err
}

func consumePhoneOTPUpdate(email, otp string, issuedAfter, now time.Time) (bson.M, bson.M) {
	filter := bson.M{"email": email, "phone_otp": otp}
	if !issuedAfter.IsZero() {
		filter["phone_otp_sent_at"] = bson.M{"$gt": issuedAfter}
	}
	return filter, bson.M{
		"$set":   bson.M{"phone_verified": true, "updated_at": now},
		"$unset": bson.M{"phone_otp": "", "phone_otp_sent_at": ""},
	}
}

func (s *MongoStore) SetResetToken(ctx context.Context, id uuid.UUID, tokenHash string, expiresAt time.Time) error {
	return s.updateByID(ctx, id, bson.M{
		"reset_token_hash":   tokenHash,
		"reset_token_expiry": expiresAt,
	})
}

func (s *MongoStore) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time, passwordHash string) (*Identity, error) {
	filter, update := consumeResetTokenUpdate(tokenHash, now, passwordHash)
	return s.consume(ctx, filter, update)
}

func consumeResetTokenUpdate(tokenHash string, now time.Time, passwordHash string) (bson.M, bson.M) {
	filter := bson.M{
		"reset_token_hash":   tokenHash,
		"reset_token_expiry": bson.M{"$gt": now},
	}
	return filter, bson.M{
		"$set":   bson.M{"password_hash": passwordHash, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"reset_token_hash": "", "reset_token_expiry": ""},
	}
}

func (s *MongoStore) LinkFederatedID(ctx context.Context, id uuid.UUID, federatedID, avatar string) (*Identity, error) {
	filter, update := linkFederatedUpdate(id, federatedID, avatar, time.Now().UTC())
	linked, err := s.consume(ctx, filter, update)
	if err != nil {
		if errors.Is(err, ErrNoMatch) {
			if _, getErr := s.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, ErrFederatedConflict
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrFederatedConflict
		}
		return nil, err
	}
	return linked, nil
}

// linkFederatedUpdate uses a pipeline update so the avatar is only filled
// when the document has none
func linkFederatedUpdate(id uuid.UUID, federatedID, avatar string, now time.Time) (bson.M, any) {
	filter := bson.M{
		"_id": id.String(),
		"$or": bson.A{
			bson.M{"federated_id": bson.M{"$exists": false}},
			bson.M{"federated_id": federatedID},
		},
	}

	set := bson.M{
		"federated_id":   bson.M{"$literal": federatedID},
		"email_verified": true,
		"updated_at":     now,
	}
	if avatar != "" {
		set["avatar"] = bson.M{"$ifNull": bson.A{"$avatar", bson.M{"$literal": avatar}}}
	}
	return filter, bson.A{bson.M{"$set": set}}
}

func (s *MongoStore) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return s.updateByID(ctx, id, bson.M{"last_login": at})
}

func (s *MongoStore) updateByID(ctx context.Context, id uuid.UUID, set bson.M) error {
	set["updated_at"] = time.Now().UTC()

	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id.String()}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update identity: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// consume applies update to the single document matching filter and returns it post-update
func (s *MongoStore) consume(ctx context.Context, filter bson.M, update any) (*Identity, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc mongoIdentity
	if err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoMatch
		}
		return nil, fmt.Errorf("failed to update identity: %w", err)
	}
	return fromMongo(&doc), nil
}

func toMongo(i *Identity) *mongoIdentity {
	return &mongoIdentity{
		ID:                      i.ID.String(),
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

func fromMongo(d *mongoIdentity) *Identity {
	// IDs are always written by toMongo, so a parse failure means foreign data
	id, _ := uuid.Parse(d.ID)
	return &Identity{
		ID:                      id,
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
