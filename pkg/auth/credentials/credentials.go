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

// Package credentials keeps username to registration record bindings in
// the configured store
package credentials

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/wikiserv/wikiserv/pkg/auth/pake"
	"github.com/wikiserv/wikiserv/pkg/store"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// KeyPrefix is prepended to the username to form the store key
const KeyPrefix = "user:"

// ErrUnknownUser is returned by Get for a username with no credential
var ErrUnknownUser = errors.New("unknown user")

// ErrInvalidCredential is returned by Put for incomplete credentials
var ErrInvalidCredential = errors.New("invalid credential")

// Credential binds a user to its registration record
type Credential struct {
	UserID             string `json:"user_id"`
	Username           string `json:"username"`
	RegistrationRecord string `json:"registration_record"`
}

// Seed is a configured user
type Seed struct {
	UserID             string `yaml:"user_id"`
	RegistrationRecord string `yaml:"registration_record"`
}

// Credentials looks up registration records
type Credentials struct {
	st     store.Store
	secret []byte
}

// New returns Credentials backed by st. secret derives the fake records
// served for unknown users; a random one is generated when empty.
func New(st store.Store, secret []byte) (*Credentials, error) {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, err
		}
	}
	return &Credentials{st: st, secret: secret}, nil
}

func key(username string) string {
	return KeyPrefix + strings.ToLower(username)
}

// Put writes c, replacing any credential for the same username
func (cs *Credentials) Put(c Credential) error {
	if c.Username == "" || c.UserID == "" {
		return ErrInvalidCredential
	}
	if _, err := pake.DecodeRecord(c.RegistrationRecord); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidCredential, c.Username, err)
	}
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return cs.st.Store(key(c.Username), b, 0)
}

// Get returns the credential for username
func (cs *Credentials) Get(username string) (Credential, error) {
	var c Credential
	b, err := cs.st.Retrieve(key(username))
	if errors.Is(err, store.ErrKNF) {
		return c, ErrUnknownUser
	}
	if err != nil {
		return c, err
	}
	err = json.Unmarshal(b, &c)
	return c, err
}

// Delete removes the credential for username
func (cs *Credentials) Delete(username string) error {
	return cs.st.Remove(key(username))
}

// Lookup returns the user id and registration record for username. Unknown
// users get an empty user id and a deterministic fake record, so a login
// for them proceeds through step 0 like any other and then fails.
func (cs *Credentials) Lookup(username string) (string, *pake.Record, error) {
	c, err := cs.Get(username)
	if errors.Is(err, ErrUnknownUser) {
		return "", pake.FakeRecord(cs.secret, strings.ToLower(username)), nil
	}
	if err != nil {
		return "", nil, err
	}
	rec, err := pake.DecodeRecord(c.RegistrationRecord)
	if err != nil {
		return "", nil, err
	}
	return c.UserID, rec, nil
}

// Seed writes the configured users
func (cs *Credentials) Seed(users map[string]Seed) error {
	for name, u := range users {
		id := u.UserID
		if id == "" {
			id = name
		}
		if err := cs.Put(Credential{UserID: id, Username: name,
			RegistrationRecord: u.RegistrationRecord}); err != nil {
			return err
		}
	}
	return nil
}
