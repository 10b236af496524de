package jwtx

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHS256RoundTrip(t *testing.T) {
	t.Parallel()

	secret := bytes.Repeat([]byte{0xA5}, 32)
	signer, err := NewSignerHS256("k1", secret)
	require.NoError(t, err)
	require.NoError(t, signer.Validate())

	claims := NewAccessClaims("user-1", "sess-1", []string{"profile:read"}, time.Minute, "gatehouse", []string{"api"}, time.Now().UTC())
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	verifier := NewVerifierHS256(secret, "gatehouse", []string{"api"})
	got, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "user-1", got.Subject)
	require.Equal(t, "sess-1", got.SID)
	require.Equal(t, claims.ID, got.ID)
}

func TestHS256RejectsWrongSecret(t *testing.T) {
	t.Parallel()

	signer, err := NewSignerHS256("k1", bytes.Repeat([]byte{0x01}, 32))
	require.NoError(t, err)

	token, err := signer.Sign(NewAccessClaims("u", "s", nil, time.Minute, "gatehouse", nil, time.Now().UTC()))
	require.NoError(t, err)

	verifier := NewVerifierHS256(bytes.Repeat([]byte{0x02}, 32), "gatehouse", nil)
	_, err = verifier.Verify(token)
	require.ErrorIs(t, err, ErrInvalidSig)
}

func TestHS256RejectsExpired(t *testing.T) {
	t.Parallel()

	secret := bytes.Repeat([]byte{0x03}, 32)
	signer, err := NewSignerHS256("k1", secret)
	require.NoError(t, err)

	past := time.Now().UTC().Add(-time.Hour)
	token, err := signer.Sign(NewAccessClaims("u", "s", nil, time.Minute, "gatehouse", nil, past))
	require.NoError(t, err)

	_, err = NewVerifierHS256(secret, "gatehouse", nil).Verify(token)
	require.ErrorIs(t, err, ErrExpired)
}

func TestHS256RejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := NewSignerHS256("k1", []byte("too-short"))
	require.Error(t, err)
}

func TestHS256RejectsIssuerAndAudienceMismatch(t *testing.T) {
	t.Parallel()

	secret := bytes.Repeat([]byte{0x04}, 32)
	signer, err := NewSignerHS256("k1", secret)
	require.NoError(t, err)

	token, err := signer.Sign(NewAccessClaims("u", "s", nil, time.Minute, "gatehouse", []string{"api"}, time.Now().UTC()))
	require.NoError(t, err)

	_, err = NewVerifierHS256(secret, "other-issuer", nil).Verify(token)
	require.ErrorIs(t, err, ErrIssuer)

	_, err = NewVerifierHS256(secret, "gatehouse", []string{"elsewhere"}).Verify(token)
	require.ErrorIs(t, err, ErrAudience)
}

func TestHS256RejectsMalformed(t *testing.T) {
	t.Parallel()

	verifier := NewVerifierHS256(bytes.Repeat([]byte{0x05}, 32), "", nil)
	_, err := verifier.Verify("definitely.not.a-jwt")
	require.ErrorIs(t, err, ErrMalformed)
}
