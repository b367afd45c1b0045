package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

var (
	ErrNonceInvalid  = errors.New("nonce invalid")
	ErrNonceReused   = errors.New("nonce already used")
	ErrNonceAction   = errors.New("nonce issued for another action")
	ErrSecretMissing = errors.New("nonce secret is empty")
	// ErrNonceCapacity is returned while the consumed-token cache is full of
	// tokens that have not expired yet.
	ErrNonceCapacity = errors.New("too many outstanding nonces")
)

// nonceClaims binds a one-time token to an action.
type nonceClaims struct {
	Action string `json:"act"`
	jwt.RegisteredClaims
}

// NonceIssuer signs one-time action tokens and remembers every consumed
// token id until the token expires.
type NonceIssuer struct {
	secretKey []byte
	ttl       time.Duration
	limit     int

	mu       sync.Mutex
	consumed *expirable.LRU[string, struct{}]
	now      func() time.Time
}

// NewNonceIssuer builds an issuer. limit caps how many consumed token ids
// may be remembered at once; once reached, Issue and Consume refuse until
// older ids expire. A limit of zero or less means no cap.
func NewNonceIssuer(secretKey string, ttl time.Duration, limit int) (*NonceIssuer, error) {
	if secretKey == "" {
		return nil, ErrSecretMissing
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &NonceIssuer{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		limit:     limit,
		// size 0 disables eviction; ids leave only when their ttl ends
		consumed: expirable.NewLRU[string, struct{}](0, nil, ttl),
		now:      time.Now,
	}, nil
}

// TTL reports how long issued tokens stay valid.
func (n *NonceIssuer) TTL() time.Duration {
	return n.ttl
}

// Issue returns a signed token for action.
func (n *NonceIssuer) Issue(action string) (string, time.Time, error) {
	if n.full() {
		return "", time.Time{}, ErrNonceCapacity
	}
	now := n.now()
	expires := now.Add(n.ttl)
	claims := nonceClaims{
		Action: action,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(n.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign nonce: %w", err)
	}
	return signed, expires, nil
}

// Consume verifies the token for action and marks it used. A token is
// accepted at most once.
func (n *NonceIssuer) Consume(tokenString, action string) error {
	claims := &nonceClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return n.secretKey, nil
	}, jwt.WithTimeFunc(n.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return fmt.Errorf("%w: %v", ErrNonceInvalid, err)
	}
	if claims.ID == "" {
		return fmt.Errorf("%w: missing jti", ErrNonceInvalid)
	}
	if claims.Action != action {
		return ErrNonceAction
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.consumed.Contains(claims.ID) {
		return ErrNonceReused
	}
	if n.limit > 0 && n.consumed.Len() >= n.limit {
		return ErrNonceCapacity
	}
	n.consumed.Add(claims.ID, struct{}{})
	return nil
}

func (n *NonceIssuer) full() bool {
	if n.limit <= 0 {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.consumed.Len() >= n.limit
}

// CheckBearer compares an Authorization header against the admin token in
// constant time. An empty admin token never matches.
func CheckBearer(header, adminToken string) bool {
	if adminToken == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	got := strings.TrimSpace(header[len(prefix):])
	return subtle.ConstantTimeCompare([]byte(got), []byte(adminToken)) == 1
}
