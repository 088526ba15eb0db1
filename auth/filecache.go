/*
 * Copyright 2022 RapidLoop, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package auth

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

// FileCache persists tokens to a single encrypted file on disk, so a
// short-lived process (a CLI invocation, a Lambda) doesn't re-authenticate
// on every run. There is no ecosystem crypto library in the example pack
// that does authenticated-encryption-of-a-small-blob out of the box, so
// this is one of the few places this driver reaches for the standard
// library directly: crypto/aes + crypto/cipher (CBC) + crypto/hmac
// (encrypt-then-MAC) driven off a key derived with
// golang.org/x/crypto/pbkdf2, the same construction Fernet uses.
type FileCache struct {
	path       string
	passphrase []byte

	mu      sync.Mutex
	entries map[string]Credential
	loaded  bool
}

const (
	pbkdf2Iterations = 100_000
	saltSize         = 16
	keyMaterialSize  = 32 // 16 bytes AES-128 key + 16 bytes HMAC key
	macSize          = sha256.Size
)

// NewFileCache returns a Cache backed by an encrypted file at path; the
// file can only be read back with the passphrase it was written with.
// Connect never builds a FileCache itself: a caller supplies one through
// ConnectionConfig.Cache, together with its passphrase.
func NewFileCache(path string, passphrase []byte) *FileCache {
	return &FileCache{path: path, passphrase: passphrase}
}

func (c *FileCache) Get(_ context.Context, key string) (Credential, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ensureLoaded(); err != nil {
		return Credential{}, false
	}
	cred, ok := c.entries[key]
	if !ok {
		return Credential{}, false
	}
	return cred, true
}

func (c *FileCache) Set(_ context.Context, key string, cred Credential) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ensureLoaded()
	if c.entries == nil {
		c.entries = make(map[string]Credential)
	}
	c.entries[key] = cred
	_ = c.save()
}

func (c *FileCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ensureLoaded()
	delete(c.entries, key)
	_ = c.save()
}

func (c *FileCache) ensureLoaded() error {
	if c.loaded {
		return nil
	}
	c.entries = make(map[string]Credential)
	c.loaded = true

	raw, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	plaintext, err := decrypt(raw, c.passphrase)
	if err != nil {
		// A cache file we can't decrypt (wrong passphrase, corrupted,
		// foreign format) is treated as empty rather than fatal.
		return nil
	}
	var m map[string]Credential
	if err := json.Unmarshal(plaintext, &m); err != nil {
		return nil
	}
	c.entries = m
	return nil
}

func (c *FileCache) save() error {
	plaintext, err := json.Marshal(c.entries)
	if err != nil {
		return err
	}
	ciphertext, err := encrypt(plaintext, c.passphrase)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return err
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, ciphertext, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

// encrypt returns salt(16) || iv(16) || hmac(32) || ciphertext, where
// ciphertext is AES-128-CBC over PKCS7-padded plaintext, and the HMAC
// covers salt||iv||ciphertext (encrypt-then-MAC).
func encrypt(plaintext, passphrase []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	encKey, macKey := deriveKeys(passphrase, salt)

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, err
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	mac := hmac.New(sha256.New, macKey)
	mac.Write(salt)
	mac.Write(iv)
	mac.Write(ciphertext)
	sum := mac.Sum(nil)

	out := make([]byte, 0, saltSize+aes.BlockSize+macSize+len(ciphertext))
	out = append(out, salt...)
	out = append(out, iv...)
	out = append(out, sum...)
	out = append(out, ciphertext...)
	return out, nil
}

func decrypt(blob, passphrase []byte) ([]byte, error) {
	if len(blob) < saltSize+aes.BlockSize+macSize {
		return nil, fmt.Errorf("auth: cache file too short")
	}
	salt := blob[:saltSize]
	iv := blob[saltSize : saltSize+aes.BlockSize]
	sum := blob[saltSize+aes.BlockSize : saltSize+aes.BlockSize+macSize]
	ciphertext := blob[saltSize+aes.BlockSize+macSize:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("auth: cache file ciphertext misaligned")
	}

	encKey, macKey := deriveKeys(passphrase, salt)

	mac := hmac.New(sha256.New, macKey)
	mac.Write(salt)
	mac.Write(iv)
	mac.Write(ciphertext)
	if !hmac.Equal(mac.Sum(nil), sum) {
		return nil, fmt.Errorf("auth: cache file failed integrity check")
	}

	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return pkcs7Unpad(plaintext)
}

func deriveKeys(passphrase, salt []byte) (encKey, macKey []byte) {
	dk := pbkdf2.Key(passphrase, salt, pbkdf2Iterations, keyMaterialSize, sha256.New)
	return dk[:16], dk[16:]
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padding := bytes.Repeat([]byte{byte(padLen)}, padLen)
	return append(data, padding...)
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("auth: empty plaintext")
	}
	padLen := int(data[len(data)-1])
	if padLen == 0 || padLen > len(data) {
		return nil, fmt.Errorf("auth: invalid padding")
	}
	return data[:len(data)-padLen], nil
}
