package utils

import (
	"errors"
	"fmt"
	"time"

	"vidshape/models"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

var (
	ErrInvalidToken     = errors.New("invalid token format")
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token not yet valid")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrInvalidIssuer    = errors.New("invalid issuer")
	ErrNoVerifyKey      = errors.New("no verification key provided")
)

// VerifyConfig selects the keys and claim checks used by VerifyVidshapeJWT.
// At least one of SecretKey (HS256) and PublicKey (RS256, *rsa.PublicKey) must be set.
type VerifyConfig struct {
	SecretKey      []byte
	PublicKey      any
	ExpectedIssuer string // empty skips the issuer check
	ClockSkew      time.Duration
}

func (c VerifyConfig) algorithms() []jose.SignatureAlgorithm {
	var algs []jose.SignatureAlgorithm
	if c.SecretKey != nil {
		algs = append(algs, jose.HS256)
	}
	if c.PublicKey != nil {
		algs = append(algs, jose.RS256)
	}
	return algs
}

func (c VerifyConfig) keyFor(alg string) (any, error) {
	switch jose.SignatureAlgorithm(alg) {
	case jose.HS256:
		return c.SecretKey, nil
	case jose.RS256:
		return c.PublicKey, nil
	}
	return nil, fmt.Errorf("%w: unexpected algorithm %s", ErrInvalidSignature, alg)
}

// VerifyVidshapeJWT verifies a job token and decodes its claims.
func VerifyVidshapeJWT(tokenString string, config VerifyConfig) (*models.VidshapeJWT, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}
	algs := config.algorithms()
	if len(algs) == 0 {
		return nil, ErrNoVerifyKey
	}

	tok, err := jwt.ParseSigned(tokenString, algs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if len(tok.Headers) == 0 {
		return nil, ErrInvalidToken
	}

	key, err := config.keyFor(tok.Headers[0].Algorithm)
	if err != nil {
		return nil, err
	}
	claims := &models.VidshapeJWT{}
	if err := tok.Claims(key, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	if err := checkClaims(claims, config, time.Now()); err != nil {
		return nil, err
	}
	return claims, nil
}

// checkClaims applies the time window and issuer rules. Zero exp and iat are not checked.
func checkClaims(claims *models.VidshapeJWT, config VerifyConfig, now time.Time) error {
	skew := config.ClockSkew
	if claims.ExpiresAt > 0 && now.Add(-skew).After(time.Unix(claims.ExpiresAt, 0)) {
		return ErrTokenExpired
	}
	if claims.IssuedAt > 0 && now.Add(skew).Before(time.Unix(claims.IssuedAt, 0)) {
		return ErrTokenNotYetValid
	}
	if config.ExpectedIssuer != "" && claims.Issuer != config.ExpectedIssuer {
		return fmt.Errorf("%w: expected %q, got %q", ErrInvalidIssuer, config.ExpectedIssuer, claims.Issuer)
	}
	return nil
}

// CreateVidshapeJWT signs claims with an HMAC secret (HS256).
func CreateVidshapeJWT(claims *models.VidshapeJWT, secret []byte) (string, error) {
	if claims == nil {
		return "", errors.New("claims cannot be nil")
	}
	if len(secret) == 0 {
		return "", ErrNoVerifyKey
	}

	opts := (&jose.SignerOptions{}).WithType("JWT")
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: secret}, opts)
	if err != nil {
		return "", fmt.Errorf("create signer: %w", err)
	}
	token, err := jwt.Signed(signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}
