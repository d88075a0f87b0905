package cipher

import (
	"bytes"
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/md5"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Tokens use the OpenSSL "enc" passphrase layout that CryptoJS also emits:
// base64("Salted__" || salt[8] || AES-256-CBC(PKCS#7(plaintext))), with key and IV
// derived from the passphrase and salt by EVP_BytesToKey over MD5.
const (
	saltMagic = "Salted__"
	saltSize  = 8
	keySize   = 32
)

// SymmetricEncrypt encrypts the UTF-8 bytes of text under key and returns a
// self-describing token carrying the salt. The salt is read from saltSource.
func SymmetricEncrypt(text, key string, saltSource io.Reader) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(saltSource, salt); err != nil {
		return "", fmt.Errorf("cipher:symmetric - failed to read salt: %w", err)
	}

	derivedKey, iv := deriveKeyIV([]byte(key), salt)
	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return "", fmt.Errorf("cipher:symmetric - failed to create block cipher: %w", err)
	}

	plain := pkcs7Pad([]byte(text), aes.BlockSize)
	sealed := make([]byte, len(plain))
	gocipher.NewCBCEncrypter(block, iv).CryptBlocks(sealed, plain)

	token := make([]byte, 0, len(saltMagic)+saltSize+len(sealed))
	token = append(token, saltMagic...)
	token = append(token, salt...)
	token = append(token, sealed...)
	return base64.StdEncoding.EncodeToString(token), nil
}

// SymmetricDecrypt reverses SymmetricEncrypt. A malformed token, a wrong key
// detected by the padding check, or plaintext that is not UTF-8 all yield
// ErrDecryptionFailed.
func SymmetricDecrypt(token, key string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return "", fmt.Errorf("%w: token is not valid Base64", ErrDecryptionFailed)
	}
	header := len(saltMagic) + saltSize
	if len(raw) < header+aes.BlockSize || !bytes.HasPrefix(raw, []byte(saltMagic)) {
		return "", fmt.Errorf("%w: token is not a salted ciphertext", ErrDecryptionFailed)
	}
	sealed := raw[header:]
	if len(sealed)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext is not a whole number of blocks", ErrDecryptionFailed)
	}

	derivedKey, iv := deriveKeyIV([]byte(key), raw[len(saltMagic):header])
	block, err := aes.NewCipher(derivedKey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	plain := make([]byte, len(sealed))
	gocipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, sealed)

	plain, ok := pkcs7Unpad(plain, aes.BlockSize)
	if !ok {
		return "", fmt.Errorf("%w: check your key", ErrDecryptionFailed)
	}
	if !utf8.Valid(plain) {
		return "", fmt.Errorf("%w: plaintext is not valid UTF-8, check your key", ErrDecryptionFailed)
	}
	return string(plain), nil
}

// deriveKeyIV is OpenSSL's EVP_BytesToKey with MD5 and a single iteration.
func deriveKeyIV(passphrase, salt []byte) (key, iv []byte) {
	var (
		derived []byte
		prev    []byte
	)
	for len(derived) < keySize+aes.BlockSize {
		h := md5.New()
		h.Write(prev)
		h.Write(passphrase)
		h.Write(salt)
		prev = h.Sum(nil)
		derived = append(derived, prev...)
	}
	return derived[:keySize], derived[keySize : keySize+aes.BlockSize]
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append(make([]byte, 0, len(data)+n), data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, bool) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, false
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, false
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, false
		}
	}
	return data[:len(data)-n], true
}
