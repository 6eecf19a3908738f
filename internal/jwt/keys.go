package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// KeySet es la única clave de firma del proceso. Se carga una vez al arrancar
// y después sólo se lee.
type KeySet struct {
	Priv ed25519.PrivateKey
	Pub  ed25519.PublicKey
	KID  string
}

// GenerateEd25519 crea una clave nueva en memoria (modo dev o `authd keys generate`).
func GenerateEd25519() (*KeySet, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return newKeySet(priv), nil
}

func newKeySet(priv ed25519.PrivateKey) *KeySet {
	pub := priv.Public().(ed25519.PublicKey)
	return &KeySet{Priv: priv, Pub: pub, KID: kidFor(pub)}
}

// kidFor es estable para una misma clave pública: reiniciar no cambia el kid.
func kidFor(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return base64.RawURLEncoding.EncodeToString(sum[:12])
}

// LoadPEM lee una clave privada PKCS#8 en PEM.
func LoadPEM(path string) (*KeySet, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "PRIVATE KEY" {
		return nil, errors.New("signing key: PEM inválido, se espera PRIVATE KEY")
	}
	k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse pkcs8: %w", err)
	}
	priv, ok := k.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("signing key: se espera Ed25519, obtuvo %T", k)
	}
	return newKeySet(priv), nil
}

// WritePEM persiste la clave privada. Escritura atómica: tmp + rename.
func (k *KeySet) WritePEM(path string) error {
	der, err := x509.MarshalPKCS8PrivateKey(k.Priv)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := pem.Encode(f, &pem.Block{Type: "PRIVATE KEY", Bytes: der}); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadOrGenerate carga path; si no existe y allowGenerate está activo, crea la clave.
func LoadOrGenerate(path string, allowGenerate bool) (*KeySet, error) {
	if path == "" {
		if !allowGenerate {
			return nil, errors.New("signing key: path vacío")
		}
		return GenerateEd25519()
	}
	ks, err := LoadPEM(path)
	if err == nil {
		return ks, nil
	}
	if !allowGenerate || !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	ks, err = GenerateEd25519()
	if err != nil {
		return nil, err
	}
	return ks, ks.WritePEM(path)
}

type jwk struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Use string `json:"use"`
	X   string `json:"x"`
}

// JWKSJSON devuelve sólo la parte pública, para /.well-known/jwks.json.
func (k *KeySet) JWKSJSON() []byte {
	b, _ := json.Marshal(struct {
		Keys []jwk `json:"keys"`
	}{Keys: []jwk{{
		Kty: "OKP",
		Crv: "Ed25519",
		Kid: k.KID,
		Alg: "EdDSA",
		Use: "sig",
		X:   base64.RawURLEncoding.EncodeToString(k.Pub),
	}}})
	return b
}
