package tuxedo

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
)

const keySize = 32 // AES-256

// Cipher encrypts and decrypts request parameters with the panel's session
// key and IV. The IV is fixed for the lifetime of the key, so encryption is
// deterministic. That is a property of the panel's protocol and has to be
// preserved for wire compatibility.
type Cipher struct {
	key []byte
	iv  []byte
}

// NewCipher builds a Cipher from the hex-encoded key and IV obtained during
// provisioning. The key must decode to 32 bytes and the IV to the AES block
// size.
func NewCipher(keyHex, ivHex string) (*Cipher, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid key: %v", err)
	}
	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return nil, fmt.Errorf("invalid iv: %v", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", keySize, len(key))
	}
	if len(iv) != aes.BlockSize {
		return nil, fmt.Errorf("iv must be %d bytes, got %d", aes.BlockSize, len(iv))
	}
	return &Cipher{key: key, iv: iv}, nil
}

// EncryptParams URL-encodes params, pads, encrypts with AES-CBC and returns
// the ciphertext as base64 text. Output is byte-identical for identical
// input.
func (c *Cipher) EncryptParams(params url.Values) (string, error) {
	plaintext := pad([]byte(params.Encode()), aes.BlockSize)

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("failed to initialize cipher: %v", err)
	}

	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, c.iv).CryptBlocks(ciphertext, plaintext)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// DecryptParams reverses EncryptParams for a response payload: base64-decode,
// AES-CBC decrypt, strip padding and parse the JSON document inside. Every
// failure mode wraps ErrMalformedCiphertext.
func (c *Cipher) DecryptParams(encrypted string) (map[string]interface{}, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("%w: base64 decode: %v", ErrMalformedCiphertext, err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not block aligned", ErrMalformedCiphertext, len(ciphertext))
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %v", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, c.iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := unpad(plaintext, aes.BlockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(unpadded, &payload); err != nil {
		return nil, fmt.Errorf("%w: json parse: %v", ErrMalformedCiphertext, err)
	}
	return payload, nil
}

// pad applies PKCS7 padding. An already aligned input gets a full block of
// padding so unpad is unambiguous.
func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("padded data length %d is not block aligned", len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, fmt.Errorf("invalid padding byte %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}
