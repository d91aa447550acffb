package service

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"golang.org/x/crypto/bcrypt"
)

const (
	generatedPasswordLength = 8
	passwordAlphabet        = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"
)

var passwordHashCost = bcrypt.DefaultCost

// GeneratePassword 8 位随机字母数字密码（只在创建时返回一次）
func GeneratePassword() (string, error) {
	buf := make([]byte, generatedPasswordLength)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate password: %w", err)
		}
		buf[i] = passwordAlphabet[n.Int64()]
	}
	return string(buf), nil
}

func hashPassword(plain string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), passwordHashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return hash, nil
}

func checkPassword(hash []byte, plain string) bool {
	return bcrypt.CompareHashAndPassword(hash, []byte(plain)) == nil
}

// generateCredential 生成密码并返回 (明文, 哈希)
func generateCredential() (string, []byte, error) {
	plain, err := GeneratePassword()
	if err != nil {
		return "", nil, err
	}
	hash, err := hashPassword(plain)
	if err != nil {
		return "", nil, err
	}
	return plain, hash, nil
}
