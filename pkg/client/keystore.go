// Package client implements the prover side of the protocol: key management
// and the HTTP flows for registration and login.
package client

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/sauerbraten/jsonfile"
	"golang.org/x/crypto/pbkdf2"
)

// Keystore persists the private scalar between sessions. The scalar never
// leaves the client; implementations must store it encrypted at rest.
type Keystore interface {
	// Store saves the hex-encoded private scalar.
	Store(scalarHex string) error

	// Retrieve loads the hex-encoded private scalar.
	Retrieve() (string, error)

	// Clear removes the stored scalar.
	Clear() error
}

var (
	// ErrNoStoredKey indicates the keystore holds no scalar.
	ErrNoStoredKey = errors.New("no stored key")

	// ErrKeystoreCorrupt indicates the stored record failed to decrypt,
	// usually a wrong passphrase or a tampered file.
	ErrKeystoreCorrupt = errors.New("keystore corrupt or wrong passphrase")
)

const pbkdf2Iterations = 100000

// keyRecord is the on-disk format of an encrypted scalar.
type keyRecord struct {
	KDF        string `json:"kdf"`
	Iterations int    `json:"iterations"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// FileKeystore stores the scalar in a JSON file, encrypted with a key
// derived from a passphrase via PBKDF2 and sealed with AES-256-GCM.
type FileKeystore struct {
	path       string
	passphrase string
}

// NewFileKeystore creates a keystore backed by the file at path.
func NewFileKeystore(path, passphrase string) *FileKeystore {
	return &FileKeystore{path: path, passphrase: passphrase}
}

// Store encrypts and writes the scalar, replacing any previous record.
func (k *FileKeystore) Store(scalarHex string) error {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := k.sealer(salt)
	if err != nil {
		return err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, []byte(scalarHex), nil)

	record := keyRecord{
		KDF:        "pbkdf2-sha256",
		Iterations: pbkdf2Iterations,
		Salt:       hex.EncodeToString(salt),
		Nonce:      hex.EncodeToString(nonce),
		Ciphertext: hex.EncodeToString(ciphertext),
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(k.path, data, 0600)
}

// Retrieve reads and decrypts the stored scalar.
func (k *FileKeystore) Retrieve() (string, error) {
	var record keyRecord
	if err := jsonfile.ParseFile(k.path, &record); err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoStoredKey
		}
		return "", fmt.Errorf("failed to read keystore: %w", err)
	}

	salt, err := hex.DecodeString(record.Salt)
	if err != nil {
		return "", ErrKeystoreCorrupt
	}
	nonce, err := hex.DecodeString(record.Nonce)
	if err != nil {
		return "", ErrKeystoreCorrupt
	}
	ciphertext, err := hex.DecodeString(record.Ciphertext)
	if err != nil {
		return "", ErrKeystoreCorrupt
	}

	iterations := record.Iterations
	if iterations <= 0 {
		iterations = pbkdf2Iterations
	}

	key := pbkdf2.Key([]byte(k.passphrase), salt, iterations, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", ErrKeystoreCorrupt
	}

	return string(plaintext), nil
}

// Clear removes the keystore file.
func (k *FileKeystore) Clear() error {
	err := os.Remove(k.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (k *FileKeystore) sealer(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(k.passphrase), salt, pbkdf2Iterations, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// MemoryKeystore holds the scalar in memory. Test and demo use only.
type MemoryKeystore struct {
	scalarHex string
}

// NewMemoryKeystore creates an empty in-memory keystore.
func NewMemoryKeystore() *MemoryKeystore {
	return &MemoryKeystore{}
}

// Store saves the scalar in memory.
func (k *MemoryKeystore) Store(scalarHex string) error {
	k.scalarHex = scalarHex
	return nil
}

// Retrieve returns the stored scalar.
func (k *MemoryKeystore) Retrieve() (string, error) {
	if k.scalarHex == "" {
		return "", ErrNoStoredKey
	}
	return k.scalarHex, nil
}

// Clear drops the stored scalar.
func (k *MemoryKeystore) Clear() error {
	k.scalarHex = ""
	return nil
}
