package auth

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"sapaboard/internal/domain"
	"sapaboard/internal/repo"
)

var (
	ErrMissingCredentials = errors.New("กรุณากรอกอีเมลและรหัสผ่าน")
	ErrInvalidEmail       = errors.New("รูปแบบอีเมลไม่ถูกต้อง")
	ErrInvalidCredentials = errors.New("อีเมลหรือรหัสผ่านไม่ถูกต้อง")
	ErrInvalidToken       = errors.New("invalid token")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Principal is the signed-in user an operation runs for.
type Principal struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

func (p Principal) IsZero() bool { return p.UserID == "" }

// HashPassword returns a bcrypt hash suitable for domain.User.PasswordHash.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password required")
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidateEmail applies the login form's email rule.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(strings.TrimSpace(email)) {
		return ErrInvalidEmail
	}
	return nil
}

type Users interface {
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
}

// Service checks email/password pairs against stored users.
type Service struct {
	Users Users
}

func (s Service) Login(ctx context.Context, email, password string) (Principal, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Principal{}, ErrMissingCredentials
	}
	if err := ValidateEmail(email); err != nil {
		return Principal{}, err
	}
	u, err := s.Users.GetUserByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return Principal{}, ErrInvalidCredentials
	}
	if err != nil {
		return Principal{}, err
	}
	if !CheckPassword(u.PasswordHash, password) {
		return Principal{}, ErrInvalidCredentials
	}
	return Principal{UserID: u.ID, Email: u.Email}, nil
}

// Tokens issues and verifies HS256 session tokens.
type Tokens struct {
	Secret string
	TTL    time.Duration
	Now    func() time.Time
}

type claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

func (t Tokens) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// Issue signs a token for p and returns it with its expiry.
func (t Tokens) Issue(p Principal) (string, time.Time, error) {
	if strings.TrimSpace(t.Secret) == "" {
		return "", time.Time{}, errors.New("jwt secret not configured")
	}
	if p.IsZero() {
		return "", time.Time{}, errors.New("principal required")
	}
	now := t.now().UTC()
	ttl := t.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	exp := now.Add(ttl)
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: p.Email,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(t.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse verifies token and returns its principal.
func (t Tokens) Parse(token string) (Principal, error) {
	if strings.TrimSpace(t.Secret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	)
	c := &claims{}
	parsed, err := parser.ParseWithClaims(token, c, func(*jwt.Token) (any, error) {
		return []byte(t.Secret), nil
	})
	if err != nil || !parsed.Valid {
		return Principal{}, ErrInvalidToken
	}
	if c.Subject == "" {
		return Principal{}, ErrInvalidToken
	}
	return Principal{UserID: c.Subject, Email: c.Email}, nil
}
