// Package auth holds the credential store and the access token service.
package auth

import "golang.org/x/crypto/bcrypt"

// PasswordCost is the bcrypt work factor for every stored password.
const PasswordCost = 12

// HashPassword returns a salted bcrypt hash of plain.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether plain matches hash. A malformed hash is a mismatch.
func CheckPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
