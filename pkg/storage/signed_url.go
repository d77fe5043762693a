package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrTokenInvalid covers malformed or tampered download tokens.
	ErrTokenInvalid = errors.New("invalid download token")
	// ErrTokenExpired is returned once the token TTL has elapsed.
	ErrTokenExpired = errors.New("download token expired")
)

// DownloadGrant is the verified content of a download token.
type DownloadGrant struct {
	DocumentID string
	Key        string
	ExpiresAt  time.Time
}

// SignedURLSigner creates and validates short-lived document download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a token binding the document id to its blob key.
func (s *SignedURLSigner) Generate(documentID, key string) (string, time.Time, error) {
	if documentID == "" || key == "" {
		return "", time.Time{}, fmt.Errorf("documentID and key required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).UTC()
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedKey := base64.RawURLEncoding.EncodeToString([]byte(key))
	signature := s.sign(documentID, exp, encodedKey)
	return strings.Join([]string{documentID, exp, encodedKey, signature}, "."), expiresAt, nil
}

// Parse validates the signature and expiry of a token.
func (s *SignedURLSigner) Parse(token string) (DownloadGrant, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return DownloadGrant{}, ErrTokenInvalid
	}
	documentID, exp, encodedKey, signature := parts[0], parts[1], parts[2], parts[3]

	expected := s.sign(documentID, exp, encodedKey)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return DownloadGrant{}, ErrTokenInvalid
	}
	rawKey, err := base64.RawURLEncoding.DecodeString(encodedKey)
	if err != nil {
		return DownloadGrant{}, ErrTokenInvalid
	}
	expUnix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return DownloadGrant{}, ErrTokenInvalid
	}
	expiresAt := time.Unix(expUnix, 0).UTC()
	if s.now().After(expiresAt) {
		return DownloadGrant{}, ErrTokenExpired
	}
	return DownloadGrant{DocumentID: documentID, Key: string(rawKey), ExpiresAt: expiresAt}, nil
}

func (s *SignedURLSigner) sign(documentID, exp, encodedKey string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(documentID + "|" + exp + "|" + encodedKey))
	return hex.EncodeToString(mac.Sum(nil))
}
