package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Iterations = 100000
	keySize          = 32
	saltSize         = 16
	nonceSize        = 24
)

type localFile struct {
	Salt  []byte `json:"salt"`
	Nonce []byte `json:"nonce"`
	Box   []byte `json:"box"`
}

// SaveLocal encrypts creds with passphrase and writes them to path,
// for the Vault-disabled deployment path.
func SaveLocal(path string, creds Credentials, passphrase string) error {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("secrets: generate salt: %w", err)
	}
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return fmt.Errorf("secrets: generate nonce: %w", err)
	}

	key := deriveKey(passphrase, salt)
	plaintext, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("secrets: marshal credentials: %w", err)
	}

	box := secretbox.Seal(nil, plaintext, &nonce, &key)
	encoded, err := json.Marshal(localFile{Salt: salt, Nonce: nonce[:], Box: box})
	if err != nil {
		return fmt.Errorf("secrets: marshal local file: %w", err)
	}

	if err := os.WriteFile(path, encoded, 0600); err != nil {
		return fmt.Errorf("secrets: write local credentials: %w", err)
	}
	return nil
}

// LoadLocal decrypts credentials previously written by SaveLocal.
func LoadLocal(path string, passphrase string) (Credentials, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("secrets: read local credentials: %w", err)
	}

	var lf localFile
	if err := json.Unmarshal(raw, &lf); err != nil {
		return Credentials{}, fmt.Errorf("secrets: parse local credentials: %w", err)
	}
	if len(lf.Nonce) != nonceSize {
		return Credentials{}, fmt.Errorf("secrets: malformed nonce in local credentials")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], lf.Nonce)
	key := deriveKey(passphrase, lf.Salt)

	plaintext, ok := secretbox.Open(nil, lf.Box, &nonce, &key)
	if !ok {
		return Credentials{}, fmt.Errorf("secrets: decrypt local credentials: wrong passphrase or corrupt file")
	}

	var creds Credentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return Credentials{}, fmt.Errorf("secrets: parse decrypted credentials: %w", err)
	}
	return creds, nil
}

func deriveKey(passphrase string, salt []byte) [keySize]byte {
	derived := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keySize, sha256.New)
	var key [keySize]byte
	copy(key[:], derived)
	return key
}
