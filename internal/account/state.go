package account

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// StateSigner produces and verifies the HMAC-signed state parameter carried
// through the OAuth redirect, binding a callback to the provider it was
// issued for.
type StateSigner struct {
	hmacKey []byte
	maxAge  time.Duration
	now     func() time.Time
}

func NewStateSigner(hmacKey []byte) *StateSigner {
	return &StateSigner{
		hmacKey: hmacKey,
		maxAge:  10 * time.Minute,
		now:     time.Now,
	}
}

func (s *StateSigner) Generate(providerName string) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}

	nonce := base64.URLEncoding.EncodeToString(b)
	issued := s.now().UTC().Format(time.RFC3339)
	return s.sign(providerName + "|" + nonce + "|" + issued)
}

// Verify checks the signature and that the state was issued for the given
// provider recently enough.
func (s *StateSigner) Verify(state, providerName string) error {
	payload, err := s.verify(state)
	if err != nil {
		return err
	}

	parts := strings.SplitN(payload, "|", 3)
	if len(parts) != 3 {
		return errors.New("malformed state")
	}
	if parts[0] != providerName {
		return errors.New("state issued for a different provider")
	}

	issued, err := time.Parse(time.RFC3339, parts[2])
	if err != nil {
		return errors.New("malformed state timestamp")
	}
	if s.now().Sub(issued) > s.maxAge {
		return errors.New("state expired")
	}
	return nil
}

func (s *StateSigner) sign(value string) string {
	mac := hmac.New(sha256.New, s.hmacKey)
	mac.Write([]byte(value))
	sig := base64.URLEncoding.EncodeToString(mac.Sum(nil))
	return base64.URLEncoding.EncodeToString([]byte(value)) + "." + sig
}

func (s *StateSigner) verify(signed string) (string, error) {
	parts := strings.SplitN(signed, ".", 2)
	if len(parts) != 2 {
		return "", errors.New("invalid state format")
	}

	payload, err := base64.URLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, s.hmacKey)
	mac.Write(payload)
	expected := base64.URLEncoding.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(parts[1]), []byte(expected)) {
		return "", errors.New("invalid state signature")
	}

	return string(payload), nil
}
