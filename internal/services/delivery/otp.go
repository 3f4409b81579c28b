package delivery

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

var otpSpan = big.NewInt(9000)

// generateOtp returns a 4-digit code in [1000, 9999] and its bcrypt hash.
func generateOtp(cost int) (string, string, error) {
	n, err := rand.Int(rand.Reader, otpSpan)
	if err != nil {
		return "", "", fmt.Errorf("generate otp: %w", err)
	}
	otp := fmt.Sprintf("%04d", n.Int64()+1000)

	hash, err := bcrypt.GenerateFromPassword([]byte(otp), cost)
	if err != nil {
		return "", "", fmt.Errorf("hash otp: %w", err)
	}
	return otp, string(hash), nil
}

// otpMatches reports whether otp is the code behind hash.
func otpMatches(hash, otp string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(otp))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}
