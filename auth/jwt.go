package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"quiz-duel-server/config"
)

// Validator validates session tokens. Two modes:
//   - JWKS: when a JWKS URL is configured, tokens from the hosted identity
//     provider are validated against its published keys (EdDSA/RS256).
//   - HS256: otherwise tokens are validated against the shared secret; this is
//     also the signing mode for guest tokens the server issues itself.
type Validator struct {
	secret   []byte
	issuer   string
	guestTTL time.Duration
	jwks     keyfunc.Keyfunc
}

// NewValidator builds a Validator from config. When cfg.AuthJWKSURL is set the
// JWKS is fetched once and refreshed in the background by keyfunc.
func NewValidator(cfg *config.Config) (*Validator, error) {
	v := &Validator{
		secret:   []byte(cfg.JWTSecret),
		issuer:   cfg.AuthIssuer,
		guestTTL: time.Duration(cfg.GuestTokenTTLHours) * time.Hour,
	}
	if cfg.AuthJWKSURL != "" {
		jwks, err := keyfunc.NewDefault([]string{cfg.AuthJWKSURL})
		if err != nil {
			return nil, fmt.Errorf("loading JWKS: %w", err)
		}
		v.jwks = jwks
	}
	return v, nil
}

// Validate parses and verifies a token string and returns its claims.
func (v *Validator) Validate(tokenString string) (jwt.MapClaims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("empty token")
	}

	opts := []jwt.ParserOption{}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var token *jwt.Token
	var err error
	if v.jwks != nil {
		opts = append(opts, jwt.WithValidMethods([]string{"EdDSA", "RS256"}))
		token, err = jwt.Parse(tokenString, v.jwks.Keyfunc, opts...)
	} else {
		if len(v.secret) == 0 {
			return nil, fmt.Errorf("auth not configured")
		}
		opts = append(opts, jwt.WithValidMethods([]string{"HS256"}))
		token, err = jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			return v.secret, nil
		}, opts...)
	}
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// IssueGuestToken mints an HS256 token for a generated guest identity and
// returns (token, userID). Username is trimmed; a blank name gets a short
// generated one.
func (v *Validator) IssueGuestToken(username string) (string, string, error) {
	if len(v.secret) == 0 {
		return "", "", fmt.Errorf("guest auth not configured")
	}
	id := "guest-" + uuid.NewString()
	name := strings.TrimSpace(username)
	if name == "" {
		name = "Guest-" + id[len(id)-6:]
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   id,
		"name":  name,
		"guest": true,
		"iat":   now.Unix(),
		"exp":   now.Add(v.guestTTL).Unix(),
	}
	if v.issuer != "" {
		claims["iss"] = v.issuer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", "", err
	}
	return signed, id, nil
}

// UserIDFromClaims returns the user id from claims ("sub" or "id").
func UserIDFromClaims(claims jwt.MapClaims) string {
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub
	}
	if id, ok := claims["id"].(string); ok && id != "" {
		return id
	}
	return ""
}

// UsernameFromClaims returns the "name" claim, or a fallback display name.
func UsernameFromClaims(claims jwt.MapClaims) string {
	name, _ := claims["name"].(string)
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "Player"
	}
	return trimmed
}

// AvatarFromClaims returns the "avatar" or "picture" claim if present.
func AvatarFromClaims(claims jwt.MapClaims) string {
	if a, ok := claims["avatar"].(string); ok && a != "" {
		return a
	}
	if p, ok := claims["picture"].(string); ok && p != "" {
		return p
	}
	return ""
}
