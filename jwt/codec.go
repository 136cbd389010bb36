package jwt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes access from refresh tokens. It is carried in the
// "tt" claim and mirrored by the audience.
type TokenType string

const (
	// TypeAccess marks short-lived access tokens.
	TypeAccess TokenType = "access"
	// TypeRefresh marks long-lived refresh tokens.
	TypeRefresh TokenType = "refresh"
)

// KeySource supplies the signing secrets from one consistent snapshot.
type KeySource interface {
	SigningKeys() (current, previous []byte)
}

// RevocationChecker answers denylist lookups.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Config defines token lifetimes and the claims every token must carry.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Issuer          string
	AccessAudience  string
	RefreshAudience string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	Leeway          time.Duration
	MaxFutureIAT    time.Duration
	// FailOpenRevocation accepts tokens when the denylist is unreachable.
	FailOpenRevocation bool
}

// Subject is the identity embedded into issued tokens.
type Subject struct {
	ID          string
	Email       string
	Role        string
	Permissions []string
}

// Claims is the JWT payload of both token types.
type Claims struct {
	Email       string    `json:"email,omitempty"`
	Role        string    `json:"role,omitempty"`
	Permissions []string  `json:"perms,omitempty"`
	TokenType   TokenType `json:"tt"`
	jwt.RegisteredClaims
}

// Identity returns the subject carried by the claims.
func (c *Claims) Identity() Subject {
	return Subject{
		ID:          c.RegisteredClaims.Subject,
		Email:       c.Email,
		Role:        c.Role,
		Permissions: append([]string(nil), c.Permissions...),
	}
}

// Result describes a verified token.
//
// NeedsRefresh and RotationRequired are both set when the token verified only
// under the previous secret. Neither is a rejection.
type Result struct {
	Claims           *Claims
	Type             TokenType
	NeedsRefresh     bool
	RotationRequired bool
}

// Option configures a [Codec].
type Option func(*Codec)

// WithClock overrides the time source for issuance and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Codec) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithIncidentHook is called whenever the denylist lookup fails.
func WithIncidentHook(fn func(err error)) Option {
	return func(c *Codec) { c.incident = fn }
}

// Codec signs and verifies access and refresh tokens.
//
// Codec is safe for concurrent use. It holds no secret itself; every call
// reads the keys from its [KeySource].
type Codec struct {
	cfg      Config
	keys     KeySource
	revoked  RevocationChecker
	now      func() time.Time
	logger   *slog.Logger
	incident func(error)
}

// NewCodec describes the codec construction and its observable behavior.
//
// NewCodec returns an error when lifetimes are missing or the leeway is outside [0, 2m].
// revoked may be nil, which disables the denylist check.
func NewCodec(cfg Config, keys KeySource, revoked RevocationChecker, opts ...Option) (*Codec, error) {
	if keys == nil {
		return nil, errors.New("jwt: key source is nil")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("jwt: invalid TTL configuration")
	}
	if cfg.RefreshTTL < cfg.AccessTTL {
		return nil, errors.New("jwt: refresh TTL shorter than access TTL")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = 10 * time.Minute
	}
	if cfg.MaxFutureIAT < 0 {
		return nil, errors.New("jwt: invalid MaxFutureIAT configuration")
	}
	if cfg.AccessAudience != "" && cfg.AccessAudience == cfg.RefreshAudience {
		return nil, errors.New("jwt: access and refresh audiences must differ")
	}

	c := &Codec{
		cfg:     cfg,
		keys:    keys,
		revoked: revoked,
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SignAccess issues an access token for s signed with the current secret.
func (c *Codec) SignAccess(s Subject) (string, error) {
	return c.sign(s, TypeAccess)
}

// SignRefresh issues a refresh token for s signed with the current secret.
func (c *Codec) SignRefresh(s Subject) (string, error) {
	return c.sign(s, TypeRefresh)
}

func (c *Codec) sign(s Subject, tt TokenType) (string, error) {
	if strings.TrimSpace(s.ID) == "" {
		return "", errors.New("jwt: subject id is empty")
	}
	current, _ := c.keys.SigningKeys()
	if len(current) == 0 {
		return "", ErrNoSigningKey
	}

	now := c.now()
	claims := Claims{
		Email:       s.Email,
		Role:        s.Role,
		Permissions: s.Permissions,
		TokenType:   tt,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.ID,
			Issuer:    c.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl(tt))),
			ID:        uuid.NewString(),
		},
	}
	if aud := c.audience(tt); aud != "" {
		claims.Audience = jwt.ClaimStrings{aud}
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(current)
}

func (c *Codec) ttl(tt TokenType) time.Duration {
	if tt == TypeRefresh {
		return c.cfg.RefreshTTL
	}
	return c.cfg.AccessTTL
}

func (c *Codec) audience(tt TokenType) string {
	if tt == TypeRefresh {
		return c.cfg.RefreshAudience
	}
	return c.cfg.AccessAudience
}

// VerifyAccess is [Codec.Verify] restricted to access tokens.
func (c *Codec) VerifyAccess(ctx context.Context, token string) (*Result, error) {
	return c.verifyType(ctx, token, TypeAccess)
}

// VerifyRefresh is [Codec.Verify] restricted to refresh tokens.
func (c *Codec) VerifyRefresh(ctx context.Context, token string) (*Result, error) {
	return c.verifyType(ctx, token, TypeRefresh)
}

func (c *Codec) verifyType(ctx context.Context, token string, want TokenType) (*Result, error) {
	res, err := c.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	if res.Type != want {
		return nil, ErrWrongTokenType
	}
	return res, nil
}

// Verify checks token against the denylist, then the current secret, then
// the previous secret.
//
// Errors are one of ErrInvalidFormat, ErrInvalidSignature, ErrExpired,
// ErrRevoked, ErrStoreUnavailable or ErrNoSigningKey, possibly wrapped.
func (c *Codec) Verify(ctx context.Context, token string) (*Result, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidFormat
	}
	tt, err := peekType(token)
	if err != nil {
		return nil, err
	}

	if err := c.checkRevoked(ctx, token); err != nil {
		return nil, err
	}

	current, previous := c.keys.SigningKeys()
	if len(current) == 0 {
		return nil, ErrNoSigningKey
	}

	claims, rawErr := c.parse(token, tt, current)
	if rawErr == nil {
		return &Result{Claims: claims, Type: tt}, nil
	}
	if !errors.Is(rawErr, jwt.ErrTokenSignatureInvalid) || len(previous) == 0 {
		return nil, classify(rawErr)
	}

	claims, prevErr := c.parse(token, tt, previous)
	if prevErr != nil {
		if errors.Is(prevErr, jwt.ErrTokenSignatureInvalid) {
			return nil, classify(rawErr)
		}
		return nil, classify(prevErr)
	}
	return &Result{Claims: claims, Type: tt, NeedsRefresh: true, RotationRequired: true}, nil
}

func (c *Codec) checkRevoked(ctx context.Context, token string) error {
	if c.revoked == nil {
		return nil
	}
	revoked, err := c.revoked.IsRevoked(ctx, token)
	if err != nil {
		if c.incident != nil {
			c.incident(err)
		}
		if c.cfg.FailOpenRevocation {
			c.logger.Warn("revocation check skipped", "incident", "revocation_store_unavailable", "fail_open", true, "error", err)
			return nil
		}
		c.logger.Error("revocation check failed", "incident", "revocation_store_unavailable", "fail_open", false, "error", err)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if revoked {
		return ErrRevoked
	}
	return nil
}

func (c *Codec) parse(token string, tt TokenType, key []byte) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.cfg.Leeway))
	}
	if c.cfg.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.cfg.Issuer))
	}
	if aud := c.audience(tt); aud != "" {
		options = append(options, jwt.WithAudience(aud))
	}

	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return key, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.IssuedAt != nil && claims.IssuedAt.Time.After(c.now().Add(c.cfg.MaxFutureIAT)) {
		return nil, fmt.Errorf("%w: iat too far in the future", jwt.ErrTokenUsedBeforeIssued)
	}
	if claims.RegisteredClaims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", jwt.ErrTokenInvalidClaims)
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
}

func peekType(token string) (TokenType, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	switch claims.TokenType {
	case TypeAccess, TypeRefresh:
		return claims.TokenType, nil
	default:
		return "", fmt.Errorf("%w: unknown token type %q", ErrInvalidFormat, claims.TokenType)
	}
}

// ExpiresAt returns the unverified expiry of token. It is used to size
// denylist entries and must not be used for trust decisions.
func (c *Codec) ExpiresAt(token string) (time.Time, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), &claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("%w: missing exp", ErrInvalidFormat)
	}
	return claims.ExpiresAt.Time, nil
}

// Remaining returns how long token stays valid from now, clamped at zero.
func (c *Codec) Remaining(token string) (time.Duration, error) {
	exp, err := c.ExpiresAt(token)
	if err != nil {
		return 0, err
	}
	d := exp.Sub(c.now())
	if d < 0 {
		return 0, nil
	}
	return d, nil
}

// AccessTTL returns the configured access lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.cfg.AccessTTL }

// RefreshTTL returns the configured refresh lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.cfg.RefreshTTL }
