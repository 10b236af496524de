package jwtx

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newRSAPEM(t *testing.T) []byte {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	return pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})
}

func TestRS256RoundTrip(t *testing.T) {
	t.Parallel()

	signer, err := NewSignerRS256("rsa-1", newRSAPEM(t))
	require.NoError(t, err)
	require.NoError(t, signer.Validate())

	keys := NewKeySet()
	keys.Add(signer.KID(), signer.(*RS256Signer).PublicKey())

	claims := NewAccessClaims("user-2", "sess-2", []string{"admin"}, time.Minute, "gatehouse", []string{"api"}, time.Now().UTC())
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	got, err := NewVerifierRS256(keys, "gatehouse", []string{"api"}).Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-2", got.Subject)
	require.Equal(t, []string{"admin"}, got.Scopes)
}

func TestRS256RejectsGarbagePEM(t *testing.T) {
	t.Parallel()

	_, err := NewSignerRS256("rsa-1", []byte("not pem at all"))
	require.Error(t, err)
}
