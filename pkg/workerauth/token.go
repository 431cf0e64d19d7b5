// Package workerauth verifies signed worker tokens presented at create_run,
// so a run can only be opened on behalf of a worker identity the runtime
// trusts.
package workerauth

import (
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "openagents.runtime/workerauth"

// WorkerClaims is the JWT payload carried by a worker token.
type WorkerClaims struct {
	jwt.RegisteredClaims
	WorkerID string `json:"worker_id"`
}

// KeySet resolves a key ID to the public key that should verify a token's
// signature, and signs new tokens under its current key.
type KeySet interface {
	KeyFunc(token *jwt.Token) (interface{}, error)
	Sign(claims WorkerClaims) (string, error)
}

// InMemoryKeySet is an Ed25519 KeySet with key rotation: verification
// tries every retained key by kid, signing always uses the current key.
type InMemoryKeySet struct {
	mu         sync.RWMutex
	currentKid string
	public     map[string]ed25519.PublicKey
	private    map[string]ed25519.PrivateKey
}

// NewInMemoryKeySet generates a fresh Ed25519 keypair under kid.
func NewInMemoryKeySet(kid string) (*InMemoryKeySet, error) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 keypair: %w", err)
	}
	return &InMemoryKeySet{
		currentKid: kid,
		public:     map[string]ed25519.PublicKey{kid: pub},
		private:    map[string]ed25519.PrivateKey{kid: priv},
	}, nil
}

// Rotate introduces a new current key under kid, retaining prior keys for
// verification of tokens already issued.
func (k *InMemoryKeySet) Rotate(kid string) error {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return fmt.Errorf("generate ed25519 keypair: %w", err)
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.currentKid = kid
	k.public[kid] = pub
	k.private[kid] = priv
	return nil
}

// KeyFunc implements KeySet.
func (k *InMemoryKeySet) KeyFunc(token *jwt.Token) (interface{}, error) {
	if token.Method.Alg() != "EdDSA" {
		return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
	}
	kid, ok := token.Header["kid"].(string)
	if !ok {
		return nil, fmt.Errorf("token missing kid header")
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	pub, ok := k.public[kid]
	if !ok {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return pub, nil
}

// Sign implements KeySet.
func (k *InMemoryKeySet) Sign(claims WorkerClaims) (string, error) {
	k.mu.RLock()
	kid := k.currentKid
	priv := k.private[kid]
	k.mu.RUnlock()

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = kid
	return token.SignedString(priv)
}

// Verifier checks worker tokens against a KeySet.
type Verifier struct {
	keys KeySet
}

// NewVerifier returns a Verifier backed by keys.
func NewVerifier(keys KeySet) *Verifier {
	return &Verifier{keys: keys}
}

// Verify parses tokenString and checks that its worker_id claim matches
// workerID and that the token is neither expired nor not-yet-valid.
func (v *Verifier) Verify(workerID, tokenString string) error {
	if tokenString == "" {
		return fmt.Errorf("no token presented")
	}
	claims := &WorkerClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keys.KeyFunc,
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithIssuer(issuer),
	)
	if err != nil {
		return fmt.Errorf("parse worker token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("worker token not valid")
	}
	if claims.WorkerID != workerID {
		return fmt.Errorf("token worker_id %q does not match requested worker_id %q", claims.WorkerID, workerID)
	}
	return nil
}

// Issue mints a worker token for workerID, valid for ttl.
func Issue(keys KeySet, workerID string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	return keys.Sign(WorkerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   workerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		WorkerID: workerID,
	})
}
