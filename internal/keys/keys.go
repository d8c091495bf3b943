// Package keys generates and checks the age key pair used to encrypt
// offloaded manifests.
package keys

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"filippo.io/age"
	"github.com/cockroachdb/errors"

	"hlb/internal/crypto"
)

func Generate(w io.Writer) error {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return errors.Wrap(err, "failed to generate key pair")
	}

	fmt.Fprintln(w, "=== Age Key Pair Generated ===")
	fmt.Fprintf(w, "Public key:  %s\n", identity.Recipient().String())
	fmt.Fprintf(w, "Private key: %s\n", identity.String())
	fmt.Fprintln(w, "\nPut the public key in age_public_key. Keep the private key secure and off this machine's backups.")

	return nil
}

// Test checks that the private key in privateKeyPath decrypts data encrypted
// to publicKey.
func Test(w io.Writer, publicKey, privateKeyPath string) error {
	recipient, err := age.ParseX25519Recipient(publicKey)
	if err != nil {
		return errors.Wrap(err, "failed to parse public key from config")
	}

	privateKeyData, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return errors.Wrap(err, "failed to read private key")
	}

	identity, err := age.ParseX25519Identity(strings.TrimSpace(string(privateKeyData)))
	if err != nil {
		return errors.Wrap(err, "failed to parse private key")
	}

	testContent := "hlb key pair test " + time.Now().Format(time.RFC3339)

	var encrypted bytes.Buffer
	if err := crypto.Encrypt(&encrypted, strings.NewReader(testContent), recipient); err != nil {
		return err
	}

	var decrypted bytes.Buffer
	if err := crypto.Decrypt(&decrypted, &encrypted, identity); err != nil {
		return errors.WithHint(err, "the private key does not match age_public_key in the config")
	}

	if decrypted.String() != testContent {
		return errors.New("content mismatch: decrypted content does not match original")
	}

	fmt.Fprintln(w, "Key pair OK")
	return nil
}
