package security

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const (
	ModeECB = "ECB"
	ModeCBC = "CBC"
	ModeGCM = "GCM"

	cbcIVLength = aes.BlockSize
	gcmIVLength = 12
)

var (
	ErrInvalidKeyLength = errors.New("security: invalid key length")
	ErrInvalidIVLength  = errors.New("security: invalid iv length")
	ErrUnsupportedMode  = errors.New("security: unsupported mode")
	ErrInvalidPadding   = errors.New("security: invalid padding")
)

type KeyLengthError struct {
	Length int
}

func (e *KeyLengthError) Error() string {
	return fmt.Sprintf("security: key must be 16, 24 or 32 bytes, got %d", e.Length)
}

func (e *KeyLengthError) Is(target error) bool { return target == ErrInvalidKeyLength }

type IVLengthError struct {
	Mode     string
	Length   int
	Expected int
}

func (e *IVLengthError) Error() string {
	return fmt.Sprintf("security: %s iv must be %d bytes, got %d", e.Mode, e.Expected, e.Length)
}

func (e *IVLengthError) Is(target error) bool { return target == ErrInvalidIVLength }

type UnsupportedModeError struct {
	Mode string
}

func (e *UnsupportedModeError) Error() string {
	return fmt.Sprintf("security: unsupported mode %q", e.Mode)
}

func (e *UnsupportedModeError) Is(target error) bool { return target == ErrUnsupportedMode }

// PayloadCodec encrypts webhook payloads with AES. Key and IV are the UTF-8
// bytes of the configured strings; output is standard base64.
type PayloadCodec struct{}

func NewPayloadCodec() PayloadCodec {
	return PayloadCodec{}
}

func (PayloadCodec) EncryptPayload(plaintext string, mode string, key string, iv string) (string, error) {
	return EncryptPayload(plaintext, mode, key, iv)
}

func (PayloadCodec) DecryptPayload(ciphertext string, mode string, key string, iv string) (string, error) {
	return DecryptPayload(ciphertext, mode, key, iv)
}

func EncryptPayload(plaintext string, mode string, key string, iv string) (string, error) {
	normalized, block, err := prepare(mode, key, iv)
	if err != nil {
		return "", err
	}
	var out []byte
	switch normalized {
	case ModeECB:
		out = encryptECB(block, pkcs7Pad([]byte(plaintext), aes.BlockSize))
	case ModeCBC:
		padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
		out = make([]byte, len(padded))
		cipher.NewCBCEncrypter(block, []byte(iv)).CryptBlocks(out, padded)
	case ModeGCM:
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return "", fmt.Errorf("security: init gcm: %w", err)
		}
		out = aead.Seal(nil, []byte(iv), []byte(plaintext), nil)
	}
	return base64.StdEncoding.EncodeToString(out), nil
}

func DecryptPayload(ciphertext string, mode string, key string, iv string) (string, error) {
	normalized, block, err := prepare(mode, key, iv)
	if err != nil {
		return "", err
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return "", fmt.Errorf("security: decode ciphertext: %w", err)
	}
	switch normalized {
	case ModeECB, ModeCBC:
		if len(raw) == 0 || len(raw)%aes.BlockSize != 0 {
			return "", fmt.Errorf("security: ciphertext is not a multiple of the block size")
		}
		plain := make([]byte, len(raw))
		if normalized == ModeECB {
			decryptECB(block, plain, raw)
		} else {
			cipher.NewCBCDecrypter(block, []byte(iv)).CryptBlocks(plain, raw)
		}
		unpadded, err := pkcs7Unpad(plain, aes.BlockSize)
		if err != nil {
			return "", err
		}
		return string(unpadded), nil
	default:
		aead, err := cipher.NewGCM(block)
		if err != nil {
			return "", fmt.Errorf("security: init gcm: %w", err)
		}
		plain, err := aead.Open(nil, []byte(iv), raw, nil)
		if err != nil {
			return "", fmt.Errorf("security: open gcm payload: %w", err)
		}
		return string(plain), nil
	}
}

// prepare validates mode, key and IV before any cipher is touched.
func prepare(mode string, key string, iv string) (string, cipher.Block, error) {
	normalized := strings.ToUpper(strings.TrimSpace(mode))
	switch normalized {
	case ModeECB, ModeCBC, ModeGCM:
	default:
		return "", nil, &UnsupportedModeError{Mode: mode}
	}
	switch len(key) {
	case 16, 24, 32:
	default:
		return "", nil, &KeyLengthError{Length: len(key)}
	}
	switch normalized {
	case ModeCBC:
		if len(iv) != cbcIVLength {
			return "", nil, &IVLengthError{Mode: normalized, Length: len(iv), Expected: cbcIVLength}
		}
	case ModeGCM:
		if len(iv) != gcmIVLength {
			return "", nil, &IVLengthError{Mode: normalized, Length: len(iv), Expected: gcmIVLength}
		}
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return "", nil, fmt.Errorf("security: init aes: %w", err)
	}
	return normalized, block, nil
}

func encryptECB(block cipher.Block, src []byte) []byte {
	out := make([]byte, len(src))
	for offset := 0; offset < len(src); offset += aes.BlockSize {
		block.Encrypt(out[offset:offset+aes.BlockSize], src[offset:offset+aes.BlockSize])
	}
	return out
}

func decryptECB(block cipher.Block, dst []byte, src []byte) {
	for offset := 0; offset < len(src); offset += aes.BlockSize {
		block.Decrypt(dst[offset:offset+aes.BlockSize], src[offset:offset+aes.BlockSize])
	}
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrInvalidPadding
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize || padding > len(data) {
		return nil, ErrInvalidPadding
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, ErrInvalidPadding
		}
	}
	return data[:len(data)-padding], nil
}
