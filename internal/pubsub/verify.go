package pubsub

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	googleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
	googleIssuer  = "https://accounts.google.com"
)

// Verifier authenticates Pub/Sub push requests: Google signs each push
// with an OIDC token whose audience is the configured push endpoint.
type Verifier struct {
	audience string
	http     *http.Client

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	refreshed time.Time
}

func NewVerifier(audience string) *Verifier {
	return &Verifier{
		audience: audience,
		http:     &http.Client{Timeout: 10 * time.Second},
		keys:     map[string]*rsa.PublicKey{},
	}
}

// Verify checks the bearer token from a push request. Returns an error
// for any token not signed by Google for our audience.
func (v *Verifier) Verify(ctx context.Context, tokenStr string) error {
	if tokenStr == "" {
		return fmt.Errorf("pubsub: missing push token")
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("pubsub: token has no kid")
		}
		return v.key(ctx, kid)
	},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.audience),
		jwt.WithIssuer(googleIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("pubsub: invalid push token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("pubsub: push token rejected")
	}
	return nil
}

// key returns the RSA key for kid, refreshing the JWKS cache on miss.
// Google rotates keys, so a miss forces at most one refetch per minute.
func (v *Verifier) key(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if key, ok := v.keys[kid]; ok {
		return key, nil
	}
	if time.Since(v.refreshed) < time.Minute {
		return nil, fmt.Errorf("pubsub: unknown signing key %q", kid)
	}

	if err := v.refreshLocked(ctx); err != nil {
		return nil, err
	}
	key, ok := v.keys[kid]
	if !ok {
		return nil, fmt.Errorf("pubsub: unknown signing key %q", kid)
	}
	return key, nil
}

type jwks struct {
	Keys []struct {
		Kid string `json:"kid"`
		Kty string `json:"kty"`
		N   string `json:"n"`
		E   string `json:"e"`
	} `json:"keys"`
}

func (v *Verifier) refreshLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, googleJWKSURL, nil)
	if err != nil {
		return err
	}
	res, err := v.http.Do(req)
	if err != nil {
		return fmt.Errorf("pubsub: fetch JWKS: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("pubsub: JWKS fetch returned status %d", res.StatusCode)
	}

	var set jwks
	if err := json.NewDecoder(res.Body).Decode(&set); err != nil {
		return fmt.Errorf("pubsub: decode JWKS: %w", err)
	}

	keys := map[string]*rsa.PublicKey{}
	for _, k := range set.Keys {
		if k.Kty != "RSA" {
			continue
		}
		n, err := base64.RawURLEncoding.DecodeString(k.N)
		if err != nil {
			continue
		}
		e, err := base64.RawURLEncoding.DecodeString(k.E)
		if err != nil {
			continue
		}
		keys[k.Kid] = &rsa.PublicKey{
			N: new(big.Int).SetBytes(n),
			E: int(new(big.Int).SetBytes(e).Int64()),
		}
	}
	if len(keys) == 0 {
		return fmt.Errorf("pubsub: JWKS contained no usable keys")
	}

	v.keys = keys
	v.refreshed = time.Now()
	return nil
}
