package auth

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

// OTPTTL is how long a verification code stays valid
const OTPTTL = 10 * time.Minute

// ErrInvalidOTP is returned when a code is wrong, expired, or unknown
var ErrInvalidOTP = errors.New("invalid verification code")

// PendingSignup holds a registration awaiting email verification. The
// password is already hashed before it enters the store.
type PendingSignup struct {
	Name         string
	Email        string
	PasswordHash string
	Code         string
	Expires      time.Time
}

// OTPStore keeps pending signups in memory with a fixed TTL. Verification
// codes are short-lived, so losing them on restart is acceptable.
type OTPStore struct {
	mu      sync.Mutex
	pending map[string]PendingSignup
}

// NewOTPStore creates an empty OTP store
func NewOTPStore() *OTPStore {
	return &OTPStore{pending: make(map[string]PendingSignup)}
}

// Begin stashes a pending signup and returns the generated 6-digit code
func (s *OTPStore) Begin(name, email, passwordHash string) (string, error) {
	code, err := generateCode()
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}

	s.mu.Lock()
	s.pending[email] = PendingSignup{
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		Code:         code,
		Expires:      time.Now().Add(OTPTTL),
	}
	s.mu.Unlock()

	return code, nil
}

// Consume validates a code and removes the pending signup on success
func (s *OTPStore) Consume(email, code string) (*PendingSignup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.pending[email]
	if !ok || record.Code != code {
		return nil, ErrInvalidOTP
	}
	if time.Now().After(record.Expires) {
		delete(s.pending, email)
		return nil, ErrInvalidOTP
	}

	delete(s.pending, email)
	return &record, nil
}

// Sweep drops expired entries. Called opportunistically from Begin callers;
// the map stays small either way.
func (s *OTPStore) Sweep() {
	now := time.Now()
	s.mu.Lock()
	for email, record := range s.pending {
		if now.After(record.Expires) {
			delete(s.pending, email)
		}
	}
	s.mu.Unlock()
}

// generateCode produces a 6-digit numeric code
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
