package utils

import "golang.org/x/crypto/bcrypt"

// BcryptCost is the work factor for new hashes. Tests lower it.
var BcryptCost = 14

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hashedPassword string) bool {
	// 鹽值在 hashedPassword 裡，每個密碼各自一份
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}
