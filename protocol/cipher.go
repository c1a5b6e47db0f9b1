package protocol

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"errors"
)

// Cipher is AES in CBC mode with an all-zero IV and PKCS#7 padding.
//
// The key is used as raw bytes: shorter keys are zero padded to the next AES
// key size (16, 24 or 32 bytes), longer keys are truncated to 32 bytes.
type Cipher struct {
	key []byte
}

var (
	errCiphertextSize = errors.New("ciphertext is not a multiple of the block size")
	errPadding        = errors.New("invalid padding")
)

// NewCipher derives a cipher from a shared secret.
func NewCipher(secret string) *Cipher {
	return &Cipher{key: normalizeKey([]byte(secret))}
}

func normalizeKey(k []byte) []byte {
	size := 32
	switch {
	case len(k) <= 16:
		size = 16
	case len(k) <= 24:
		size = 24
	}
	key := make([]byte, size)
	copy(key, k)
	return key
}

func (c *Cipher) Encrypt(plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	pad := aes.BlockSize - len(plain)%aes.BlockSize
	buf := make([]byte, len(plain), len(plain)+pad)
	copy(buf, plain)
	buf = append(buf, bytes.Repeat([]byte{byte(pad)}, pad)...)

	iv := make([]byte, aes.BlockSize)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(buf, buf)
	return buf, nil
}

func (c *Cipher) Decrypt(sealed []byte) ([]byte, error) {
	if len(sealed) == 0 || len(sealed)%aes.BlockSize != 0 {
		return nil, errCiphertextSize
	}
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, len(sealed))
	iv := make([]byte, aes.BlockSize)
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(buf, sealed)

	pad := int(buf[len(buf)-1])
	if pad == 0 || pad > aes.BlockSize {
		return nil, errPadding
	}
	for _, b := range buf[len(buf)-pad:] {
		if int(b) != pad {
			return nil, errPadding
		}
	}
	return buf[:len(buf)-pad], nil
}
