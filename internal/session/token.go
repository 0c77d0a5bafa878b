package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken marks an access token that cannot establish a session.
var ErrInvalidToken = errors.New("invalid token")

// DecodeError wraps the reason a token could not be decoded. It matches
// ErrInvalidToken with errors.Is.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode token: %s: %v", e.Reason, e.Err)
	}
	return "decode token: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func (e *DecodeError) Is(target error) bool {
	return target == ErrInvalidToken
}

// User is the identity carried by an access token.
type User struct {
	Subject   string
	Username  string
	Role      string
	ExpiresAt *time.Time
}

// DecodeToken reads the claims of an access token without verifying its
// signature; the server does that on every request. The subject claim is
// required and a past expiry makes the token invalid.
func DecodeToken(token string, now time.Time) (User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return User{}, &DecodeError{Reason: "empty token"}
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return User{}, &DecodeError{Reason: "malformed token", Err: err}
	}

	subject, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(subject) == "" {
		return User{}, &DecodeError{Reason: "missing subject"}
	}

	user := User{Subject: subject}
	user.Username, _ = claims["username"].(string)
	user.Role, _ = claims["role"].(string)

	expiry, err := claims.GetExpirationTime()
	if err != nil {
		return User{}, &DecodeError{Reason: "malformed expiry", Err: err}
	}
	if expiry != nil {
		expiresAt := expiry.Time
		if !now.Before(expiresAt) {
			return User{}, &DecodeError{Reason: "token expired"}
		}
		user.ExpiresAt = &expiresAt
	}

	return user, nil
}
