package auth_test

import (
	"crypto/rsa"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/geocoder89/inventoryhub/internal/auth"
	"github.com/golang-jwt/jwt/v5"
)

var (
	keysOnce sync.Once
	keyA     *rsa.PrivateKey
	keyB     *rsa.PrivateKey
)

func testKeys(t *testing.T) (*rsa.PrivateKey, *rsa.PrivateKey) {
	t.Helper()
	keysOnce.Do(func() {
		var err error
		keyA, _, err = auth.GenerateKeyPair()
		if err != nil {
			panic(err)
		}
		keyB, _, err = auth.GenerateKeyPair()
		if err != nil {
			panic(err)
		}
	})
	return keyA, keyB
}

func TestIssueAndVerify_SubjectRoundTrip(t *testing.T) {
	priv, _ := testKeys(t)
	m := auth.NewManager(priv, &priv.PublicKey, 10*time.Hour)

	token, exp, err := m.Issue(42)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if d := time.Until(exp); d < 9*time.Hour || d > 10*time.Hour+time.Minute {
		t.Fatalf("unexpected expiry window %v", d)
	}

	id, err := m.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id != 42 {
		t.Fatalf("got subject %d, want 42", id)
	}
}

func TestVerify_ForeignKeyRejected(t *testing.T) {
	privA, privB := testKeys(t)

	issuer := auth.NewManager(privB, &privB.PublicKey, time.Hour)
	verifier := auth.NewManager(privA, &privA.PublicKey, time.Hour)

	token, _, err := issuer.Issue(7)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := verifier.Verify(token); !errors.Is(err, auth.ErrTokenInvalid) {
		t.Fatalf("got %v, want ErrTokenInvalid", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	priv, _ := testKeys(t)
	m := auth.NewManager(priv, &priv.PublicKey, 10*time.Hour)

	past := m.WithClock(func() time.Time { return time.Now().Add(-11 * time.Hour) })
	token, _, err := past.Issue(7)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := m.Verify(token); !errors.Is(err, auth.ErrTokenExpired) {
		t.Fatalf("got %v, want ErrTokenExpired", err)
	}
}

func TestVerify_RejectsOtherAlgorithms(t *testing.T) {
	priv, _ := testKeys(t)
	m := auth.NewManager(priv, &priv.PublicKey, time.Hour)

	hs := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	raw, err := hs.SignedString([]byte("shared-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := m.Verify(raw); !errors.Is(err, auth.ErrTokenInvalid) {
		t.Fatalf("got %v, want ErrTokenInvalid", err)
	}
}

func TestVerify_Missing(t *testing.T) {
	priv, _ := testKeys(t)
	m := auth.NewManager(priv, &priv.PublicKey, time.Hour)

	if _, err := m.Verify(""); !errors.Is(err, auth.ErrTokenMissing) {
		t.Fatalf("got %v, want ErrTokenMissing", err)
	}
}

func TestLoadKeyPair_FromPEM(t *testing.T) {
	priv, _ := testKeys(t)

	pubPEM, err := auth.EncodePublicKeyPEM(&priv.PublicKey)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	gotPriv, gotPub, err := auth.LoadKeyPair(
		auth.KeySource{Value: string(auth.EncodePrivateKeyPEM(priv))},
		auth.KeySource{Value: string(pubPEM)},
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !gotPriv.Equal(priv) || !gotPub.Equal(&priv.PublicKey) {
		t.Fatalf("loaded keys differ from the originals")
	}

	if _, _, err := auth.LoadKeyPair(auth.KeySource{}, auth.KeySource{}); !errors.Is(err, auth.ErrNoKeys) {
		t.Fatalf("got %v, want ErrNoKeys", err)
	}
}
