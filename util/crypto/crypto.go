// Package crypto provides password hashing and key derivation helpers.
package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/hkdf"
)

// HashPasswordAsBcrypt generates a bcrypt hash of the given password.
func HashPasswordAsBcrypt(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// CheckPasswordHash verifies if the given password matches the bcrypt hash.
func CheckPasswordHash(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// DeriveKey expands secret into a key of the given size bound to purpose.
// Different purposes yield independent keys from the same secret.
func DeriveKey(secret []byte, purpose string, size int) ([]byte, error) {
	key := make([]byte, size)
	r := hkdf.New(sha256.New, secret, nil, []byte(purpose))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// CookieKeys returns the authentication and encryption key pair used for the
// session cookie. The encryption key is 32 bytes, selecting AES-256.
func CookieKeys(secret string) (hashKey, blockKey []byte, err error) {
	hashKey, err = DeriveKey([]byte(secret), "session-cookie-auth", 64)
	if err != nil {
		return nil, nil, err
	}
	blockKey, err = DeriveKey([]byte(secret), "session-cookie-enc", 32)
	if err != nil {
		return nil, nil, err
	}
	return hashKey, blockKey, nil
}
