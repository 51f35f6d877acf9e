package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/shared/dbx"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

type Service struct {
	db        *gorm.DB
	jwtSecret []byte
	jwtTTL    time.Duration
}

func NewService(db *gorm.DB, jwtSecret string, jwtTTL time.Duration) *Service {
	return &Service{db: db, jwtSecret: []byte(jwtSecret), jwtTTL: jwtTTL}
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
	Role     string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}

	role := in.Role
	if role != RoleHost {
		role = RoleUser
	}

	now := time.Now()
	u := User{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: hash,
		Name:         in.Name,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if in.Phone != "" {
		p := in.Phone
		u.Phone = &p
	}
	code := referralCodeFor(u.ID)
	u.ReferralCode = &code

	if err := s.db.WithContext(ctx).Create(&u).Error; err != nil {
		if dbx.IsDuplicate(err) {
			return User{}, ErrEmailTaken
		}
		return User{}, err
	}
	return u, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (User, string, error) {
	var u User
	err := s.db.WithContext(ctx).
		First(&u, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return User{}, "", ErrInvalidCredentials
		}
		return User{}, "", err
	}

	if bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return User{}, "", ErrInvalidCredentials
	}

	token, err := s.issueToken(u)
	if err != nil {
		return User{}, "", err
	}
	return u, token, nil
}

func (s *Service) issueToken(u User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  u.ID,
		"role": u.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(s.jwtTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

// ParseToken validates a bearer token and returns (userID, role).
func (s *Service) ParseToken(token string) (string, string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return "", "", ErrInvalidCredentials
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", ErrInvalidCredentials
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if sub == "" {
		return "", "", ErrInvalidCredentials
	}
	return sub, role, nil
}

type BankDetailsInput struct {
	BankName      string
	AccountNumber string
	AccountName   string
}

// UpdateBankDetails stores payout destination details. Any change resets the
// verified flag; an admin re-verifies before payouts resume.
func (s *Service) UpdateBankDetails(ctx context.Context, userID string, in BankDetailsInput) error {
	return s.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"bank_name":      in.BankName,
			"account_number": in.AccountNumber,
			"account_name":   in.AccountName,
			"bank_verified":  false,
			"updated_at":     time.Now(),
		}).Error
}

// VerifyBankDetails flips the verified flag (admin action). The caller is
// expected to run the payout reconciliation afterwards so bookings settled
// while details were unverified get their Payout rows created.
func (s *Service) VerifyBankDetails(ctx context.Context, userID string) error {
	res := s.db.WithContext(ctx).Model(&User{}).
		Where("id = ? AND bank_name IS NOT NULL AND account_number IS NOT NULL", userID).
		Updates(map[string]any{"bank_verified": true, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (User, error) {
	var u User
	err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error
	return u, err
}

// referralCodeFor derives a short shareable code from the user id.
func referralCodeFor(userID string) string {
	clean := strings.ReplaceAll(userID, "-", "")
	if len(clean) > 10 {
		clean = clean[:10]
	}
	return "RT" + strings.ToUpper(clean)
}
