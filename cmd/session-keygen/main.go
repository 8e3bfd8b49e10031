package main

import (
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log"

	"agrimarket.walletd/pkg/crypto"
)

const keyBytes = 32

func main() {
	envLine := flag.Bool("env", true, "print as a SESSION_ENCRYPTION_KEY= line")
	flag.Parse()

	key, err := generateSessionKey()
	if err != nil {
		log.Fatalf("failed to generate session key: %v", err)
	}

	if *envLine {
		fmt.Printf("SESSION_ENCRYPTION_KEY=%s\n", key)
		return
	}
	fmt.Println(key)
}

// generateSessionKey returns a random AES-256 key in the hex form the session store expects
func generateSessionKey() (string, error) {
	key, err := generateRandomHex(keyBytes * 2)
	if err != nil {
		return "", err
	}
	if _, err := crypto.NewCipher(key); err != nil {
		return "", err
	}
	return key, nil
}

func generateRandomHex(n int) (string, error) {
	b := make([]byte, n/2)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
