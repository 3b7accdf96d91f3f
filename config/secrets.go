package config

import "os"

// GetJWTSecret returns the shared HMAC secret used to verify job tokens.
// Read from VIDSHAPE_JWT_SECRET; an empty value disables HMAC verification.
func GetJWTSecret() []byte {
	secret := os.Getenv("VIDSHAPE_JWT_SECRET")
	if secret == "" {
		return nil
	}
	return []byte(secret)
}

// GetJWTIssuer returns the expected token issuer (VIDSHAPE_JWT_ISSUER), or "" to skip the check.
func GetJWTIssuer() string {
	return os.Getenv("VIDSHAPE_JWT_ISSUER")
}
