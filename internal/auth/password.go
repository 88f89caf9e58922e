package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword bcrypt-hashes pw at the default cost for storage on the
// user row.
func HashPassword(pw string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(hashed), err
}

// CheckPassword returns nil when pw matches the stored bcrypt hash.
func CheckPassword(hashed, pw string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(pw))
}
