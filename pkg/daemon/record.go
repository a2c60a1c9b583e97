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

package daemon

import (
	"bufio"
	goerrors "errors"
	"io"
	"strings"

	"github.com/wikiserv/wikiserv/pkg/auth/credentials"
	"github.com/wikiserv/wikiserv/pkg/auth/pake"

	"gopkg.in/yaml.v3"
)

// ErrEmptyPassword is returned by MakeRecord when stdin has no password
var ErrEmptyPassword = goerrors.New("no password was provided on stdin")

type recordSnippet struct {
	Auth struct {
		Users map[string]credentials.Seed `yaml:"users"`
	} `yaml:"auth"`
}

// MakeRecord reads a password from the first line of r and writes a config
// snippet to w that registers username with it
func MakeRecord(username string, r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	var password string
	if sc.Scan() {
		password = strings.TrimRight(sc.Text(), "\r")
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if password == "" {
		return ErrEmptyPassword
	}
	rec, err := pake.NewRecord(password, pake.DefaultParams)
	if err != nil {
		return err
	}
	var snip recordSnippet
	snip.Auth.Users = map[string]credentials.Seed{
		username: {UserID: username, RegistrationRecord: rec.Encode()},
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(snip); err != nil {
		return err
	}
	return enc.Close()
}
