package utils

import "golang.org/x/crypto/bcrypt"

// HashPassword derives the bcrypt digest stored on the user record.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// ComparePassword checks a login attempt against the stored digest. A
// mismatch surfaces as bcrypt.ErrMismatchedHashAndPassword.
func ComparePassword(hashed string, candidate string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(candidate))
}
