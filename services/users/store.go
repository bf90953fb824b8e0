// Package users stores accounts, checks passwords and tracks revoked tokens.
package users

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"courseportal/apperrors"
	"courseportal/models"
	"courseportal/utils"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Policy controls password hashing and login lockout.
type Policy struct {
	MaxFailedLogins int
	BlockDuration   time.Duration
	// FailureWindow forgets failed attempts older than this.
	FailureWindow time.Duration
	BcryptCost    int
}

var DefaultPolicy = Policy{
	MaxFailedLogins: 3,
	BlockDuration:   time.Minute,
	FailureWindow:   15 * time.Minute,
	BcryptCost:      bcrypt.DefaultCost,
}

// NewUser is the input of Create.
type NewUser struct {
	Email     string
	Password  string
	Role      string
	FirstName string
	LastName  string
}

// LoginMeta describes where a login came from.
type LoginMeta struct {
	IP     string
	Device string
}

type Store struct {
	db     *gorm.DB
	policy Policy
	now    func() time.Time
}

func NewStore(db *gorm.DB, policy Policy) *Store {
	if policy.MaxFailedLogins <= 0 {
		policy.MaxFailedLogins = DefaultPolicy.MaxFailedLogins
	}
	if policy.BlockDuration <= 0 {
		policy.BlockDuration = DefaultPolicy.BlockDuration
	}
	if policy.FailureWindow <= 0 {
		policy.FailureWindow = DefaultPolicy.FailureWindow
	}
	if policy.BcryptCost == 0 {
		policy.BcryptCost = DefaultPolicy.BcryptCost
	}
	return &Store{db: db, policy: policy, now: time.Now}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) Create(ctx context.Context, in NewUser) (*models.User, error) {
	if !models.ValidRole(in.Role) {
		return nil, apperrors.WithMetadata(apperrors.CodeInvalidArgument, "unknown role", map[string]string{"field": "role"})
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.policy.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{
		Email:     normalizeEmail(in.Email),
		Password:  string(hash),
		Role:      in.Role,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}
	if err := s.db.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.Wrap(apperrors.CodeConflict, "email already registered", err)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, "email = ?", normalizeEmail(email))
}

func (s *Store) FindByID(ctx context.Context, id string) (*models.User, error) {
	return s.findOne(ctx, "id = ?", id)
}

func (s *Store) findOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where(query, arg).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

// FindByIDs returns the users that exist among ids, keyed by id.
func (s *Store) FindByIDs(ctx context.Context, ids []string) (map[string]models.User, error) {
	out := make(map[string]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	for _, u := range rows {
		out[u.ID] = u
	}
	return out, nil
}

// Authenticate checks a password. After MaxFailedLogins consecutive
// failures the account is blocked for BlockDuration. A successful login
// resets the counter and is recorded in the login history.
func (s *Store) Authenticate(ctx context.Context, email, password string, meta LoginMeta) (*models.User, error) {
	u, err := s.FindByEmail(ctx, email)
	if apperrors.IsNotFound(err) {
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if u.BlockedUntil != nil && u.BlockedUntil.After(now) {
		return nil, apperrors.ErrAccountBlocked
	}
	if u.LastFailedLogin != nil && now.Sub(*u.LastFailedLogin) > s.policy.FailureWindow {
		u.FailedLoginAttempts = 0
	}

	db := s.db.WithContext(ctx)
	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		u.FailedLoginAttempts++
		u.LastFailedLogin = &now
		blocked := u.FailedLoginAttempts >= s.policy.MaxFailedLogins
		if blocked {
			until := now.Add(s.policy.BlockDuration)
			u.BlockedUntil = &until
			u.FailedLoginAttempts = 0
		}
		if err := db.Model(u).Select("failed_login_attempts", "last_failed_login", "blocked_until").Updates(u).Error; err != nil {
			log.Printf("Error saving failed login for %s: %v", u.ID, err)
		}
		if blocked {
			return nil, apperrors.ErrAccountBlocked
		}
		return nil, apperrors.ErrInvalidCredentials
	}

	u.FailedLoginAttempts = 0
	u.LastFailedLogin = nil
	u.BlockedUntil = nil
	u.LastLogin = &now
	if err := db.Model(u).Select("failed_login_attempts", "last_failed_login", "blocked_until", "last_login").Updates(u).Error; err != nil {
		log.Printf("Error saving last login time: %v", err)
	}

	tracking := models.LoginTracking{UserID: u.ID, IPAddress: meta.IP, Device: meta.Device, Timestamp: now}
	if err := db.Create(&tracking).Error; err != nil {
		log.Printf("Error saving login tracking details: %v", err)
	}
	return u, nil
}

// LoginHistory pages through a user's logins, newest first.
func (s *Store) LoginHistory(ctx context.Context, userID string, page utils.Page) (utils.PageResult[models.LoginTracking], error) {
	page = page.Normalize()
	q := s.db.WithContext(ctx).Model(&models.LoginTracking{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return utils.PageResult[models.LoginTracking]{}, fmt.Errorf("count logins: %w", err)
	}
	var rows []models.LoginTracking
	if err := q.Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}, Desc: true}).Order("id DESC").Offset(page.Offset()).Limit(page.Size).Find(&rows).Error; err != nil {
		return utils.PageResult[models.LoginTracking]{}, fmt.Errorf("list logins: %w", err)
	}
	return utils.NewPageResult(rows, total, page), nil
}

// HashToken is the form a token is stored in once revoked.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// RevokeToken blocks token until expiresAt. Revoking twice is a no-op.
func (s *Store) RevokeToken(ctx context.Context, token, userID string, expiresAt time.Time) error {
	row := models.RevokedToken{TokenHash: HashToken(token), UserID: userID, ExpiresAt: expiresAt}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token_hash"}}, DoNothing: true}).
		Create(&row).Error
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *Store) IsRevoked(ctx context.Context, token string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.RevokedToken{}).
		Where("token_hash = ? AND expires_at > ?", HashToken(token), s.now()).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

// PurgeRevoked deletes revocations that expired before the given time.
func (s *Store) PurgeRevoked(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", before).Delete(&models.RevokedToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge revoked tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}
