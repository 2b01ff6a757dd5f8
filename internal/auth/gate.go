package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTokenTTL is the signed-token lifetime when none is configured.
const DefaultTokenTTL = 168 * time.Hour

// Identity is the principal derived from a valid token. It is request- or
// connection-scoped and never persisted.
type Identity struct {
	Subject string
}

// Gate validates presented tokens and issues new ones on login.
type Gate interface {
	// Issue returns a token bound to username if the credentials match the
	// configured admin identity.
	Issue(username, password string) (string, bool)

	// Validate resolves a token to an Identity. Empty, malformed,
	// non-matching, and expired tokens are all invalid.
	Validate(token string) (Identity, bool)
}

// New builds a Gate for the given mode ("static", "signed", or "" which
// means static). secret must be non-empty; ttl applies to signed tokens
// only, defaulting to DefaultTokenTTL.
func New(mode, secret, adminUser, adminPass string, ttl time.Duration) (Gate, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth: secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	switch mode {
	case "static", "":
		return &staticGate{secret: secret, user: adminUser, pass: adminPass}, nil
	case "signed":
		return &signedGate{
			key:  []byte(secret),
			user: adminUser,
			pass: adminPass,
			ttl:  ttl,
			now:  time.Now,
		}, nil
	default:
		return nil, fmt.Errorf("auth: unknown mode %q: want static|signed", mode)
	}
}

// staticGate treats the shared secret itself as the access token.
type staticGate struct {
	secret string
	user   string
	pass   string
}

func (g *staticGate) Issue(username, password string) (string, bool) {
	if username != g.user || password != g.pass {
		return "", false
	}
	return g.secret, true
}

func (g *staticGate) Validate(token string) (Identity, bool) {
	if token == "" || token != g.secret {
		return Identity{}, false
	}
	return Identity{Subject: g.user}, true
}

// signedGate issues expiring HMAC-SHA256 tokens of the form
// base64url(subject.expiryUnix) "." base64url(mac).
type signedGate struct {
	key  []byte
	user string
	pass string
	ttl  time.Duration
	now  func() time.Time // injectable for deterministic tests
}

func (g *signedGate) Issue(username, password string) (string, bool) {
	if username != g.user || password != g.pass {
		return "", false
	}
	return g.mint(g.user, g.now().Add(g.ttl)), true
}

func (g *signedGate) Validate(token string) (Identity, bool) {
	i := strings.LastIndexByte(token, '.')
	if i <= 0 || i == len(token)-1 {
		return Identity{}, false
	}

	payload, err := base64.RawURLEncoding.DecodeString(token[:i])
	if err != nil {
		return Identity{}, false
	}
	sig, err := base64.RawURLEncoding.DecodeString(token[i+1:])
	if err != nil {
		return Identity{}, false
	}
	if !hmac.Equal(sig, g.sign(payload)) {
		return Identity{}, false
	}

	// payload is "subject.expiryUnix"; subjects may contain dots.
	j := strings.LastIndexByte(string(payload), '.')
	if j <= 0 {
		return Identity{}, false
	}
	exp, err := strconv.ParseInt(string(payload[j+1:]), 10, 64)
	if err != nil {
		return Identity{}, false
	}
	if g.now().After(time.Unix(exp, 0)) {
		return Identity{}, false
	}
	return Identity{Subject: string(payload[:j])}, true
}

func (g *signedGate) mint(subject string, expiry time.Time) string {
	payload := []byte(subject + "." + strconv.FormatInt(expiry.Unix(), 10))
	return base64.RawURLEncoding.EncodeToString(payload) +
		"." + base64.RawURLEncoding.EncodeToString(g.sign(payload))
}

func (g *signedGate) sign(payload []byte) []byte {
	mac := hmac.New(sha256.New, g.key)
	mac.Write(payload)
	return mac.Sum(nil)
}
