package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	claimSubject = "sub"
	claimIssued  = "iat"
	claimExpires = "exp"

	// AdminSubject is the subject of operator tokens.
	AdminSubject = "admin"

	contextKeyToken = "user"
)

// JWTMiddleware returns a JWT auth middleware configured for HS256 tokens.
func JWTMiddleware(secret string, skipper middleware.Skipper) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey:    []byte(secret),
		SigningMethod: "HS256",
		TokenLookup:   "header:Authorization:Bearer ,query:token",
		ContextKey:    contextKeyToken,
		Skipper:       skipper,
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return jwt.MapClaims{}
		},
	})
}

// SubjectFromContext extracts the subject from JWT claims.
func SubjectFromContext(c echo.Context) (string, error) {
	claims, err := claimsFromContext(c)
	if err != nil {
		return "", err
	}
	if subject := claimString(claims, claimSubject); subject != "" {
		return subject, nil
	}
	return "", echo.NewHTTPError(http.StatusUnauthorized, "subject missing")
}

// GenerateToken creates a signed JWT for subject.
func GenerateToken(subject, secret string, expiresIn time.Duration) (string, time.Time, error) {
	if strings.TrimSpace(subject) == "" {
		return "", time.Time{}, fmt.Errorf("subject is required")
	}
	if strings.TrimSpace(secret) == "" {
		return "", time.Time{}, fmt.Errorf("jwt secret is required")
	}
	if expiresIn <= 0 {
		return "", time.Time{}, fmt.Errorf("jwt expires in must be positive")
	}

	now := time.Now().UTC()
	expiresAt := now.Add(expiresIn)
	claims := jwt.MapClaims{
		claimSubject: subject,
		claimIssued:  now.Unix(),
		claimExpires: expiresAt.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// RefreshTokenFromContext issues a new token for the authenticated subject.
// The new token keeps the lifetime of the presented one; fallback is used
// when that lifetime cannot be read.
func RefreshTokenFromContext(c echo.Context, secret string, fallback time.Duration) (string, time.Time, error) {
	claims, err := claimsFromContext(c)
	if err != nil {
		return "", time.Time{}, err
	}
	subject := claimString(claims, claimSubject)
	if subject == "" {
		return "", time.Time{}, echo.NewHTTPError(http.StatusUnauthorized, "subject missing")
	}
	lifetime := fallback
	iat, iatErr := claims.GetIssuedAt()
	exp, expErr := claims.GetExpirationTime()
	if iatErr == nil && expErr == nil && iat != nil && exp != nil {
		if d := exp.Sub(iat.Time); d > 0 {
			lifetime = d
		}
	}
	return GenerateToken(subject, secret, lifetime)
}

func claimsFromContext(c echo.Context) (jwt.MapClaims, error) {
	token, ok := c.Get(contextKeyToken).(*jwt.Token)
	if !ok || token == nil || !token.Valid {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid token claims")
	}
	return claims, nil
}

func claimString(claims jwt.MapClaims, key string) string {
	raw, ok := claims[key]
	if !ok || raw == nil {
		return ""
	}
	switch v := raw.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(raw)
	}
}
