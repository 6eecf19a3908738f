package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	nonceSizeGCM = 12  // 96 bits
	keyLength    = 32  // AES-256
	sep          = "|" // base64(nonce)|base64(ciphertext)
)

// ErrDecryption cubre blobs malformados y fallas de autenticación GCM.
// No se distingue entre ambos casos hacia afuera.
var ErrDecryption = errors.New("secretbox: decryption failed")

// KDFParams son los costos argon2id para derivar la clave del vault.
type KDFParams struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
}

var DefaultKDF = KDFParams{Memory: 64 * 1024, Time: 3, Parallelism: 2}

// Vault cifra credenciales de terceros (client id/secret OAuth) con AES-256-GCM.
// La clave se deriva una sola vez en NewVault y queda en memoria.
type Vault struct {
	aead cipher.AEAD
}

// NewVault deriva la clave con argon2id(master, salt).
func NewVault(master, salt string, p KDFParams) (*Vault, error) {
	if strings.TrimSpace(master) == "" {
		return nil, errors.New("secretbox: master secret vacío")
	}
	if salt == "" {
		return nil, errors.New("secretbox: salt vacío")
	}
	if p.Memory == 0 || p.Time == 0 || p.Parallelism == 0 {
		p = DefaultKDF
	}
	key := argon2.IDKey([]byte(master), []byte(salt), p.Time, p.Memory, p.Parallelism, keyLength)
	return newVaultFromKey(key)
}

func newVaultFromKey(key []byte) (*Vault, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// Encrypt devuelve base64(nonce)|base64(ciphertext) con nonce nuevo en cada llamada.
func (v *Vault) Encrypt(plain string) (string, error) {
	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}
	ct := v.aead.Seal(nil, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Decrypt invierte Encrypt. Cualquier problema con el blob es ErrDecryption.
func (v *Vault) Decrypt(blob string) (string, error) {
	nonceB64, ctB64, ok := strings.Cut(blob, sep)
	if !ok {
		return "", ErrDecryption
	}
	nonce, err := base64.StdEncoding.DecodeString(nonceB64)
	if err != nil || len(nonce) != nonceSizeGCM {
		return "", ErrDecryption
	}
	ct, err := base64.StdEncoding.DecodeString(ctB64)
	if err != nil || len(ct) < v.aead.Overhead() {
		return "", ErrDecryption
	}
	pt, err := v.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", ErrDecryption
	}
	return string(pt), nil
}
