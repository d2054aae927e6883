package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"golang.org/x/crypto/argon2"

	"github.com/walguard/walguard/internal/common"
)

const (
	saltLen  = 16
	nonceLen = 12
	keyLen   = 32
)

var magicEncrypt = [4]byte{0x4d, 0x41, 0x47, 0x01}

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, keyLen)
}

// Encrypt encrypts data with AES-256-GCM using a key derived from passphrase
// via Argon2id. Output is MAGIC(4) || salt(16) || nonce(12) || ciphertext+tag,
// with a fresh salt and nonce on every call so repeated encryption of
// identical input never produces identical output.
func Encrypt(data []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, common.Wrap(common.ErrCodec, "generate salt", err)
	}
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, common.Wrap(common.ErrCodec, "generate nonce", err)
	}

	gcm, err := newGCM(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}

	ciphertext := gcm.Seal(nil, nonce, data, nil)

	out := make([]byte, 0, 4+saltLen+nonceLen+len(ciphertext))
	out = append(out, magicEncrypt[:]...)
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)
	return out, nil
}

// Decrypt reverses Encrypt. Input shorter than the header, or whose magic
// doesn't match, is returned unchanged (not encrypted). A magic match with a
// failed authentication tag is a hard error.
func Decrypt(data []byte, passphrase string) ([]byte, error) {
	headerLen := 4 + saltLen + nonceLen
	if len(data) < headerLen || [4]byte(data[:4]) != magicEncrypt {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}

	salt := data[4 : 4+saltLen]
	nonce := data[4+saltLen : headerLen]
	ciphertext := data[headerLen:]

	gcm, err := newGCM(deriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, common.Wrap(common.ErrCodec, "decrypt: authentication failed", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, common.Wrap(common.ErrCodec, "aes cipher init", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, common.Wrap(common.ErrCodec, "gcm init", err)
	}
	return gcm, nil
}
