// internal/auth/auth.go
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/FairForge/metaapi/internal/acl"
)

var (
	ErrMissingToken       = errors.New("authentication required")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrCodeRequired       = errors.New("two factor code required")
)

// Claims are the JWT claims carried by API tokens. The subject is the
// actor UID.
type Claims struct {
	Username    string   `json:"username"`
	Authorities []string `json:"authorities,omitempty"`
	Groups      []string `json:"groups,omitempty"`
	Super       bool     `json:"super,omitempty"`
	jwt.RegisteredClaims
}

// Account is a configured login.
type Account struct {
	UID          string   `yaml:"uid"`
	Username     string   `yaml:"username"`
	PasswordHash string   `yaml:"password_hash"`
	Authorities  []string `yaml:"authorities"`
	Groups       []string `yaml:"groups"`
	Super        bool     `yaml:"super"`
	// TOTPSecret enables a second factor when set.
	TOTPSecret   string   `yaml:"totp_secret"`
}

// Config configures token signing.
type Config struct {
	Secret   string
	Issuer   string
	TTL      time.Duration
	Accounts []Account
	// AllowAnonymous lets requests without a token through as a guest
	// with no authorities.
	AllowAnonymous bool
}

// Service issues and validates API tokens.
type Service struct {
	secret    []byte
	issuer    string
	ttl       time.Duration
	anonymous bool
	accounts  map[string]Account
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a token service.
func NewService(cfg Config, logger *zap.Logger) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "metaapi"
	}
	accounts := make(map[string]Account, len(cfg.Accounts))
	for _, a := range cfg.Accounts {
		accounts[a.Username] = a
	}
	return &Service{
		secret:    []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		ttl:       cfg.TTL,
		anonymous: cfg.AllowAnonymous,
		accounts:  accounts,
		logger:    logger,
		now:       time.Now,
	}
}

// Issue signs a token for actor.
func (s *Service) Issue(actor *acl.Actor) (string, error) {
	now := s.now()
	claims := Claims{
		Username:    actor.Username,
		Authorities: actor.Authorities,
		Groups:      actor.Groups,
		Super:       actor.Super,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Parse validates a token and returns the actor it names.
func (s *Service) Parse(tokenString string) (*acl.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &acl.Actor{
		UID:         claims.Subject,
		Username:    claims.Username,
		Authorities: claims.Authorities,
		Groups:      claims.Groups,
		Super:       claims.Super,
	}, nil
}

// Login checks a configured account's password, and its one time code
// when the account has two factor enabled, then issues a token.
func (s *Service) Login(username, password, code string) (string, error) {
	account, ok := s.accounts[username]
	if !ok {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("login failed", zap.String("username", username))
		return "", ErrInvalidCredentials
	}
	if account.TOTPSecret != "" {
		if code == "" {
			return "", ErrCodeRequired
		}
		if !totp.Validate(code, account.TOTPSecret) {
			s.logger.Info("two factor code rejected", zap.String("username", username))
			return "", ErrInvalidCredentials
		}
	}
	return s.Issue(&acl.Actor{
		UID:         account.UID,
		Username:    account.Username,
		Authorities: account.Authorities,
		Groups:      account.Groups,
		Super:       account.Super,
	})
}

// HashPassword returns the bcrypt hash stored in account configuration.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// GenerateTOTP creates a two factor secret and its provisioning URL.
func GenerateTOTP(issuer, username string) (secret, url string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: username,
		Period:      30,
		SecretSize:  20,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", fmt.Errorf("generate totp key: %w", err)
	}
	return key.Secret(), key.URL(), nil
}

// Guest is the actor of anonymous requests.
func Guest() *acl.Actor {
	return &acl.Actor{Username: "anonymous"}
}
