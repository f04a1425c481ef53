package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/arnavshah/pharmacal-api/pkg/config"
	"github.com/arnavshah/pharmacal-api/pkg/database"
)

var jwtAlgorithm = jwt.SigningMethodHS256

const bcryptCost = 12

// Claims represents the JWT claims
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AdminStore is the admin account storage the authenticator seeds and reads.
type AdminStore interface {
	FindAdmin(ctx context.Context, username string) (database.AdminUser, error)
	CountAdmins(ctx context.Context) (int64, error)
	CreateAdmin(ctx context.Context, username, passwordHash string) error
}

// Authenticator issues admin tokens and booking references.
type Authenticator struct {
	jwtSecret  []byte
	expiration time.Duration
	refSecret  []byte
	now        func() time.Time
}

func New(cfg *config.Config) *Authenticator {
	exp := cfg.JWT.Expiration
	if exp <= 0 {
		exp = 24 * time.Hour
	}
	return &Authenticator{
		jwtSecret:  []byte(cfg.JWT.Secret),
		expiration: exp,
		refSecret:  []byte(cfg.BookingRefSecret),
		now:        time.Now,
	}
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(bytes), err
}

// CheckPasswordHash compares a password with its hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// Login checks credentials and returns a signed token.
func (a *Authenticator) Login(ctx context.Context, store AdminStore, username, password string) (string, error) {
	user, err := store.FindAdmin(ctx, username)
	if err != nil {
		return "", errors.New("invalid credentials")
	}
	if !CheckPasswordHash(password, user.PasswordHash) {
		return "", errors.New("invalid credentials")
	}
	return a.CreateToken(user.Username)
}

// CreateToken creates a new JWT token for a user
func (a *Authenticator) CreateToken(username string) (string, error) {
	claims := &Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(a.now()),
			ExpiresAt: jwt.NewNumericDate(a.now().Add(a.expiration)),
		},
	}

	token := jwt.NewWithClaims(jwtAlgorithm, claims)
	return token.SignedString(a.jwtSecret)
}

// VerifyToken verifies a JWT token
func (a *Authenticator) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwtAlgorithm {
			return nil, errors.New("unexpected signing method")
		}
		return a.jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// EnsureAdminExists creates the configured admin when none exists yet.
// A pre-computed hash wins over a plain password.
func EnsureAdminExists(ctx context.Context, store AdminStore, cfg config.AdminConfig, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	count, err := store.CountAdmins(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	username := cfg.Username
	if username == "" {
		username = "admin"
	}

	hash := cfg.PasswordHash
	if hash == "" {
		password := cfg.Password
		if password == "" {
			password = "admin123"
			logger.Warn("ADMIN_PASSWORD not set, seeding admin with the development default")
		}
		hash, err = HashPassword(password)
		if err != nil {
			return err
		}
	}

	if err := store.CreateAdmin(ctx, username, hash); err != nil {
		return err
	}
	logger.Info("default admin user created", zap.String("username", username))
	return nil
}

// SignBookingRef returns a reference that lets a requester cancel their own
// booking. It binds the slot code to the nonce of that one booking, so it
// stops working once the slot is cancelled or booked again.
func (a *Authenticator) SignBookingRef(code, nonce string) string {
	return code + "." + a.signature(code, nonce)
}

// VerifyBookingRef validates a reference against the slot's current booking.
func (a *Authenticator) VerifyBookingRef(ref, code, nonce string) error {
	if nonce == "" {
		return errors.New("slot has no booking that a reference can cancel")
	}

	i := strings.LastIndex(ref, ".")
	if i <= 0 {
		return errors.New("invalid booking reference format")
	}

	refCode, providedSignature := ref[:i], ref[i+1:]
	if refCode != code {
		return errors.New("booking reference is for another slot")
	}

	expectedSignature := a.signature(code, nonce)

	// Use constant-time comparison to prevent timing attacks
	if !hmac.Equal([]byte(providedSignature), []byte(expectedSignature)) {
		return errors.New("invalid booking reference")
	}

	return nil
}

func (a *Authenticator) signature(code, nonce string) string {
	h := hmac.New(sha256.New, a.refSecret)
	h.Write([]byte(code))
	h.Write([]byte{0})
	h.Write([]byte(nonce))
	return hex.EncodeToString(h.Sum(nil))
}
