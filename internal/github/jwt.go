package github

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"strconv"
	"time"
)

// appSigner produces short-lived RS256 JWTs for GitHub App
// authentication. Stdlib crypto covers this constrained use; no JWT
// library needed.
type appSigner struct {
	appID      int64
	privateKey *rsa.PrivateKey
	now        func() time.Time
}

func newAppSigner(appID int64, privateKeyPEM []byte) (*appSigner, error) {
	block, _ := pem.Decode(privateKeyPEM)
	if block == nil {
		return nil, fmt.Errorf("github: no PEM block in private key")
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		// GitHub documents PKCS1, but some key tooling emits PKCS8.
		keyAny, pkcs8Err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if pkcs8Err != nil {
			return nil, fmt.Errorf("github: parsing private key: %w (also tried PKCS8: %v)", err, pkcs8Err)
		}
		var ok bool
		privateKey, ok = keyAny.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("github: private key is not RSA")
		}
	}

	return &appSigner{appID: appID, privateKey: privateKey, now: time.Now}, nil
}

// JWT returns a signed App JWT with a 10-minute expiry. The issued-at is
// backdated 60 seconds to tolerate clock skew against GitHub.
func (s *appSigner) JWT() (string, error) {
	now := s.now()

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))

	claims, err := json.Marshal(struct {
		IssuedAt  int64  `json:"iat"`
		ExpiresAt int64  `json:"exp"`
		Issuer    string `json:"iss"`
	}{
		IssuedAt:  now.Add(-60 * time.Second).Unix(),
		ExpiresAt: now.Add(10 * time.Minute).Unix(),
		Issuer:    strconv.FormatInt(s.appID, 10),
	})
	if err != nil {
		return "", err
	}

	signingInput := header + "." + base64.RawURLEncoding.EncodeToString(claims)
	digest := sha256.Sum256([]byte(signingInput))
	signature, err := rsa.SignPKCS1v15(rand.Reader, s.privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", err
	}

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(signature), nil
}
