package utils

import "golang.org/x/crypto/bcrypt"

// HashKey hashes a shared proctor key for storage in configuration.
func HashKey(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckKey verifies a presented key against its configured hash.
func CheckKey(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
