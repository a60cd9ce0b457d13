package server

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// errAuthFailed is returned for unknown users and wrong passwords alike.
var errAuthFailed = errors.New("password authentication failed")

// authRequired reports whether startup must be followed by a password exchange.
func (s *Server) authRequired() bool {
	return len(s.cfg.Users) > 0
}

// authenticate checks a cleartext password against the user's bcrypt hash.
func (s *Server) authenticate(user, password string) error {
	hash, ok := s.cfg.Users[user]
	if !ok {
		// compare anyway so unknown users cost the same as wrong passwords
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return errAuthFailed
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return errAuthFailed
	}
	return nil
}

// HashPassword returns a bcrypt hash suitable for Config.Users.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// dummyHash is a bcrypt hash of an unguessable value.
const dummyHash = "$2a$10$CwTycUXWue0Thq9StjUM0uJ8.7yYxH1lK3bL5n3pQhT7m1jv6u0a2"
