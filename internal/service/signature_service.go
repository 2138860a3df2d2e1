package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"hash"
)

// HMACSignatureService verifies provider webhook signatures. Providers
// sign the raw request body with a shared secret; algorithms differ per
// provider so both SHA-256 and SHA-512 variants are exposed.
type HMACSignatureService struct{}

// NewHMACSignatureService creates a new HMAC signature service.
func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

func sign(h func() hash.Hash, secretKey string, payload []byte) string {
	mac := hmac.New(h, []byte(secretKey))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignSHA256 computes lowercase hex HMAC-SHA256 of payload.
func (s *HMACSignatureService) SignSHA256(secretKey string, payload []byte) string {
	return sign(sha256.New, secretKey, payload)
}

// SignSHA512 computes lowercase hex HMAC-SHA512 of payload.
func (s *HMACSignatureService) SignSHA512(secretKey string, payload []byte) string {
	return sign(sha512.New, secretKey, payload)
}

// VerifySHA256 checks signature against HMAC-SHA256(secretKey, payload)
// in constant time.
func (s *HMACSignatureService) VerifySHA256(secretKey string, payload []byte, signature string) bool {
	expected := s.SignSHA256(secretKey, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifySHA512 checks signature against HMAC-SHA512(secretKey, payload)
// in constant time.
func (s *HMACSignatureService) VerifySHA512(secretKey string, payload []byte, signature string) bool {
	expected := s.SignSHA512(secretKey, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
