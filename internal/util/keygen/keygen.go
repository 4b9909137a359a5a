package keygen

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// KeyPair holds a key pair in ready-to-use formats.
type KeyPair struct {
	// PrivateKey is the private key in PEM format.
	PrivateKey []byte
	// PublicKey is the public key in OpenSSH authorized_keys format.
	PublicKey []byte
}

// Signer parses the private key of kp.
func (kp *KeyPair) Signer() (ssh.Signer, error) {
	return ssh.ParsePrivateKey(kp.PrivateKey)
}

// GenerateEd25519KeyPair generates a new Ed25519 key pair. The private key
// is written in the OpenSSH private key format.
func GenerateEd25519KeyPair() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 private key: %w", err)
	}

	block, err := ssh.MarshalPrivateKey(priv, "")
	if err != nil {
		return nil, fmt.Errorf("failed to encode ed25519 private key: %w", err)
	}

	return newKeyPair(pem.EncodeToMemory(block), pub)
}

func newKeyPair(privateKeyPEM []byte, pub any) (*KeyPair, error) {
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSH public key: %w", err)
	}
	return &KeyPair{
		PrivateKey: privateKeyPEM,
		PublicKey:  ssh.MarshalAuthorizedKey(sshPub),
	}, nil
}
