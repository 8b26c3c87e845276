package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

var ErrNoKeys = errors.New("no RSA key pair configured")

// KeySource holds a PEM either inline or as a file path. Inline wins.
type KeySource struct {
	Value string
	Path  string
}

func (s KeySource) read() ([]byte, error) {
	if s.Value != "" {
		return []byte(s.Value), nil
	}
	if s.Path == "" {
		return nil, ErrNoKeys
	}

	return os.ReadFile(s.Path)
}

// LoadKeyPair parses the RSA private and public keys used to sign sessions.
func LoadKeyPair(private, public KeySource) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	privPEM, err := private.read()
	if err != nil {
		return nil, nil, fmt.Errorf("read private key: %w", err)
	}

	pubPEM, err := public.read()
	if err != nil {
		return nil, nil, fmt.Errorf("read public key: %w", err)
	}

	priv, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parse private key: %w", err)
	}

	pub, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parse public key: %w", err)
	}

	return priv, pub, nil
}

// GenerateKeyPair creates an ephemeral pair. Sessions signed with it do not
// survive a restart, so it is only used in development.
func GenerateKeyPair() (*rsa.PrivateKey, *rsa.PublicKey, error) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, err
	}

	return priv, &priv.PublicKey, nil
}

// EncodePublicKeyPEM is used by tests and tooling that need the PEM form.
func EncodePublicKeyPEM(pub *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}

	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), nil
}

func EncodePrivateKeyPEM(priv *rsa.PrivateKey) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})
}
