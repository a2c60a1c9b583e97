/*
 * Copyright 2018 The Trickster Authors
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

// Package pake implements an augmented password-authenticated key exchange
// over X25519. The server stores a verifier derived from the password with
// Argon2id and never sees the password itself. Each login is two messages
// from the client: a start request carrying an ephemeral key, and a finish
// request carrying a proof of the password-derived key.
package pake

import (
	"crypto/ecdh"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/crypto/argon2"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var b64 = base64.RawURLEncoding

// ErrMalformed is returned for protocol messages that cannot be decoded
var ErrMalformed = errors.New("malformed pake message")

// ErrAuthFailed is returned when the client proof does not verify
var ErrAuthFailed = errors.New("pake authentication failed")

const (
	saltLen    = 16
	keyLen     = 32
	recordVers = 1
)

// Params are the Argon2id cost parameters of a record
type Params struct {
	Time    uint32 `json:"t"`
	Memory  uint32 `json:"m"`
	Threads uint8  `json:"p"`
}

// DefaultParams are the Argon2id parameters used for new records
var DefaultParams = Params{Time: 2, Memory: 19 * 1024, Threads: 1}

func (p Params) valid() bool {
	return p.Time > 0 && p.Memory >= 8*uint32(p.Threads) && p.Threads > 0
}

// Record is the server-side registration record of one user
type Record struct {
	Version  int    `json:"v"`
	Salt     []byte `json:"salt"`
	Params   Params `json:"params"`
	Verifier []byte `json:"verifier"`
}

// NewRecord derives a registration record from password. It runs on the
// client, or in the admin tool that provisions users.
func NewRecord(password string, p Params) (*Record, error) {
	if !p.valid() {
		return nil, fmt.Errorf("invalid argon2 parameters: %+v", p)
	}
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	priv, err := passwordKey(password, salt, p)
	if err != nil {
		return nil, err
	}
	return &Record{
		Version:  recordVers,
		Salt:     salt,
		Params:   p,
		Verifier: priv.PublicKey().Bytes(),
	}, nil
}

// FakeRecord returns a record for an unknown username. It is derived from
// secret so that repeated logins for the same name look identical to those
// of a real user, and no password can ever satisfy it.
func FakeRecord(secret []byte, username string) *Record {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte("salt\x00" + username))
	salt := mac.Sum(nil)[:saltLen]
	mac.Reset()
	mac.Write([]byte("verifier\x00" + username))
	// the private half is discarded, so no password maps to this verifier
	priv, err := ecdh.X25519().NewPrivateKey(mac.Sum(nil))
	if err != nil {
		panic(err)
	}
	return &Record{
		Version:  recordVers,
		Salt:     salt,
		Params:   DefaultParams,
		Verifier: priv.PublicKey().Bytes(),
	}
}

// Encode returns the record as an opaque URL-safe string
func (r *Record) Encode() string {
	b, _ := json.Marshal(r)
	return b64.EncodeToString(b)
}

// DecodeRecord parses a record produced by Encode
func DecodeRecord(s string) (*Record, error) {
	b, err := b64.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	r := &Record{}
	if err := json.Unmarshal(b, r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if r.Version != recordVers || len(r.Salt) != saltLen ||
		len(r.Verifier) != keyLen || !r.Params.valid() {
		return nil, fmt.Errorf("%w: invalid record", ErrMalformed)
	}
	return r, nil
}

func passwordKey(password string, salt []byte, p Params) (*ecdh.PrivateKey, error) {
	seed := argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, keyLen)
	return ecdh.X25519().NewPrivateKey(seed)
}
