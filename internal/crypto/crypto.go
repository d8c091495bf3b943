package crypto

import (
	"bytes"
	"fmt"
	"io"

	"filippo.io/age"
	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"github.com/zeebo/blake3"
)

// Encrypt copies r into w, encrypted to recipient.
func Encrypt(w io.Writer, r io.Reader, recipient age.Recipient) error {
	ew, err := age.Encrypt(w, recipient)
	if err != nil {
		return errors.Wrap(err, "age encryption failed")
	}

	if _, err := io.Copy(ew, r); err != nil {
		return errors.Wrap(err, "age encryption failed")
	}

	return ew.Close()
}

func Decrypt(w io.Writer, r io.Reader, identity age.Identity) error {
	dr, err := age.Decrypt(r, identity)
	if err != nil {
		return errors.Wrap(err, "age decryption failed")
	}

	if _, err := io.Copy(w, dr); err != nil {
		return errors.Wrap(err, "age decryption failed")
	}

	return nil
}

// EncryptBytes encrypts data to a public key in its age1 string form.
func EncryptBytes(data []byte, publicKey string) ([]byte, error) {
	recipient, err := age.ParseX25519Recipient(publicKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse age public key")
	}

	var buf bytes.Buffer
	if err := Encrypt(&buf, bytes.NewReader(data), recipient); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BLAKE3 hashes everything read from r.
func BLAKE3(r io.Reader) (string, error) {
	hasher := blake3.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}

// BLAKE3File computes the BLAKE3 hash of a file
func BLAKE3File(fs afero.Fs, filename string) (string, error) {
	f, err := fs.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return BLAKE3(f)
}
