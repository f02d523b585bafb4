package solana

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/scrypt"
)

const (
	keystoreVersionSHA256 = 1
	keystoreVersionScrypt = 2

	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
	saltSize     = 16
)

var ErrAddressMismatch = errors.New("keystore: address mismatch")

// KeyStoreEntry is the JSON file stored per key
type KeyStoreEntry struct {
	Address      string `json:"address"`
	EncryptedKey string `json:"encrypted_key"`
	Salt         string `json:"salt,omitempty"`
	Version      int    `json:"version"`
}

// Keystore keeps password-encrypted signer keys in Dir, one
// <address>.json file per key.
type Keystore struct {
	Dir string
}

// NewKeystore defaults to configs/keystore.
func NewKeystore(dir string) *Keystore {
	if dir == "" {
		dir = "configs/keystore"
	}
	return &Keystore{Dir: dir}
}

// GenerateKeyPair generates a new Solana key pair
func (ks *Keystore) GenerateKeyPair() types.Account {
	return types.NewAccount()
}

// Save encrypts the account's private key with AES-256-GCM under an
// scrypt-derived key and writes the entry.
func (ks *Keystore) Save(account types.Account, password string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	key, err := scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("failed to derive key: %w", err)
	}
	encrypted, err := seal(key, account.PrivateKey)
	if err != nil {
		return "", err
	}

	address := account.PublicKey.ToBase58()
	entry := KeyStoreEntry{
		Address:      address,
		EncryptedKey: encrypted,
		Salt:         base64.StdEncoding.EncodeToString(salt),
		Version:      keystoreVersionScrypt,
	}
	jsonData, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal keystore entry: %w", err)
	}
	if err := os.MkdirAll(ks.Dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create keystore directory: %w", err)
	}
	filename := filepath.Join(ks.Dir, address+".json")
	if err := os.WriteFile(filename, jsonData, 0600); err != nil {
		return "", fmt.Errorf("failed to write keystore entry to file: %w", err)
	}
	return filename, nil
}

// Load reads and decrypts the entry for address. Version 1 entries use the
// legacy SHA-256 password key.
func (ks *Keystore) Load(address, password string) (types.Account, error) {
	data, err := os.ReadFile(filepath.Join(ks.Dir, address+".json"))
	if err != nil {
		return types.Account{}, fmt.Errorf("failed to read keystore entry: %w", err)
	}
	var entry KeyStoreEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return types.Account{}, fmt.Errorf("failed to unmarshal keystore entry: %w", err)
	}
	if entry.Address != address {
		return types.Account{}, fmt.Errorf("%w: expected %s, got %s", ErrAddressMismatch, address, entry.Address)
	}

	var key []byte
	switch entry.Version {
	case keystoreVersionSHA256:
		sum := sha256.Sum256([]byte(password))
		key = sum[:]
	case keystoreVersionScrypt:
		salt, err := base64.StdEncoding.DecodeString(entry.Salt)
		if err != nil {
			return types.Account{}, fmt.Errorf("failed to decode salt: %w", err)
		}
		key, err = scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, scryptKeyLen)
		if err != nil {
			return types.Account{}, fmt.Errorf("failed to derive key: %w", err)
		}
	default:
		return types.Account{}, fmt.Errorf("unsupported keystore version %d", entry.Version)
	}

	privateKey, err := open(key, entry.EncryptedKey)
	if err != nil {
		return types.Account{}, err
	}
	account, err := types.AccountFromBytes(privateKey)
	if err != nil {
		return types.Account{}, fmt.Errorf("failed to create account from private key: %w", err)
	}
	if account.PublicKey.ToBase58() != address {
		return types.Account{}, fmt.Errorf("%w: key decrypts to %s", ErrAddressMismatch, account.PublicKey.ToBase58())
	}
	return account, nil
}

// PublicKey loads the entry and returns its address as a solana-go key.
func (ks *Keystore) PublicKey(address, password string) (solana.PublicKey, error) {
	account, err := ks.Load(address, password)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(account.PublicKey.Bytes()), nil
}

func seal(key, plaintext []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	// nonce || ciphertext
	return base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, plaintext, nil)), nil
}

func open(key []byte, encoded string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
