package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tendant/payportal/pkg/domain"
)

const (
	// Default token lifetimes
	DefaultSessionTTL    = 24 * time.Hour
	DefaultPendingMFATTL = 10 * time.Minute

	tokenUseSession    = "session"
	tokenUseMFAPending = "mfa_pending"

	sessionAudience    = "payportal"
	pendingMFAAudience = "payportal:mfa"
)

// SessionConfig holds session configuration.
type SessionConfig struct {
	JWTSecret     []byte
	Issuer        string
	SessionTTL    time.Duration
	PendingMFATTL time.Duration
}

// SessionService mints and validates the two kinds of signed tokens: full
// sessions and pending-MFA tokens. Tokens are stateless; nothing is stored.
type SessionService struct {
	config SessionConfig
	now    func() time.Time
}

// NewSessionService creates a new session service.
func NewSessionService(config SessionConfig) *SessionService {
	if config.SessionTTL == 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	if config.PendingMFATTL == 0 {
		config.PendingMFATTL = DefaultPendingMFATTL
	}
	return &SessionService{config: config, now: time.Now}
}

// SessionTTL returns the session token TTL.
func (s *SessionService) SessionTTL() time.Duration {
	return s.config.SessionTTL
}

// SessionClaims represents the claims in a full session token.
type SessionClaims struct {
	jwt.RegisteredClaims
	Role          domain.Role `json:"role"`
	AccountNumber string      `json:"account_number"`
	TokenUse      string      `json:"token_use"`
}

// Principal converts the claims into the caller identity.
func (c *SessionClaims) Principal() (domain.Principal, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return domain.Principal{}, domain.ErrInvalidToken
	}
	if !c.Role.Valid() {
		return domain.Principal{}, domain.ErrInvalidToken
	}
	return domain.Principal{UserID: id, Role: c.Role, AccountNumber: c.AccountNumber}, nil
}

// PendingMFAClaims carries only the user identity; it grants nothing by itself.
type PendingMFAClaims struct {
	jwt.RegisteredClaims
	TokenUse string `json:"token_use"`
}

// IssueSession signs a full session token for user.
func (s *SessionService) IssueSession(user *domain.User) (*domain.SessionToken, error) {
	now := s.now()
	expiresAt := now.Add(s.config.SessionTTL)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			Audience:  jwt.ClaimStrings{sessionAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    s.config.Issuer,
			ID:        uuid.NewString(),
		},
		Role:          user.Role,
		AccountNumber: user.AccountNumber,
		TokenUse:      tokenUseSession,
	}

	signed, err := s.sign(claims)
	if err != nil {
		return nil, err
	}

	return &domain.SessionToken{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.config.SessionTTL.Seconds()),
		ExpiresAt:   expiresAt,
	}, nil
}

// IssuePendingMFA signs a short-lived token proving the password step passed.
func (s *SessionService) IssuePendingMFA(userID uuid.UUID) (*domain.PendingMFAToken, error) {
	now := s.now()
	expiresAt := now.Add(s.config.PendingMFATTL)
	claims := PendingMFAClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings{pendingMFAAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    s.config.Issuer,
			ID:        uuid.NewString(),
		},
		TokenUse: tokenUseMFAPending,
	}

	signed, err := s.sign(claims)
	if err != nil {
		return nil, err
	}

	return &domain.PendingMFAToken{
		Token:     signed,
		ExpiresIn: int(s.config.PendingMFATTL.Seconds()),
		ExpiresAt: expiresAt,
	}, nil
}

func (s *SessionService) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.config.JWTSecret)
}

func (s *SessionService) parse(tokenString string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.config.JWTSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid {
		return domain.ErrInvalidToken
	}
	return nil
}

// ValidateSessionToken validates a full session token. Pending-MFA tokens are rejected.
func (s *SessionService) ValidateSessionToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := s.parse(tokenString, claims, sessionAudience); err != nil {
		return nil, err
	}
	if claims.TokenUse != tokenUseSession {
		return nil, domain.ErrInvalidToken
	}
	return claims, nil
}

// ValidatePendingMFAToken validates a pending-MFA token and returns its user.
func (s *SessionService) ValidatePendingMFAToken(tokenString string) (uuid.UUID, error) {
	claims := &PendingMFAClaims{}
	if err := s.parse(tokenString, claims, pendingMFAAudience); err != nil {
		return uuid.Nil, err
	}
	if claims.TokenUse != tokenUseMFAPending {
		return uuid.Nil, domain.ErrInvalidToken
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, domain.ErrInvalidToken
	}
	return userID, nil
}

// PrincipalFromToken validates a session token and returns its caller identity.
func (s *SessionService) PrincipalFromToken(tokenString string) (domain.Principal, error) {
	claims, err := s.ValidateSessionToken(tokenString)
	if err != nil {
		return domain.Principal{}, err
	}
	return claims.Principal()
}
