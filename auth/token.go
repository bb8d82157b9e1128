package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// TokenPair is the access/refresh token pair owned by the TokenStore.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Empty reports whether the pair holds no tokens at all.
func (p TokenPair) Empty() bool {
	return p.AccessToken == "" && p.RefreshToken == ""
}

// OAuth2 converts the pair to an oauth2 token. Its expiry is taken from the
// access token's exp claim when the access token is a JWT.
func (p TokenPair) OAuth2() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  p.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: p.RefreshToken,
	}
	if exp, ok := AccessTokenExpiry(p.AccessToken); ok {
		tok.Expiry = exp
	}
	return tok
}

// AccessTokenExpiry reads the exp claim of a JWT access token without
// verifying its signature. The signature is the server's business.
func AccessTokenExpiry(accessToken string) (time.Time, bool) {
	if accessToken == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, &claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
