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

package pake

import (
	"crypto/ecdh"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	protocolLabel = "wikiserv-pake-v1"
	hkdfInfo      = "wikiserv login keys"
)

type loginResponse struct {
	Ephemeral []byte `json:"e"`
	Salt      []byte `json:"salt"`
	Params    Params `json:"params"`
}

// keys derives the MAC and session keys for one exchange. Both sides feed
// the two shared secrets, e_s*E_c and e_s*V, and the transcript.
func keys(dhEphemeral, dhVerifier, transcript []byte) (km, ks []byte, err error) {
	secret := append(append([]byte{}, dhEphemeral...), dhVerifier...)
	r := hkdf.New(sha256.New, secret, transcript, []byte(hkdfInfo))
	out := make([]byte, 2*keyLen)
	if _, err = io.ReadFull(r, out); err != nil {
		return nil, nil, err
	}
	return out[:keyLen], out[keyLen:], nil
}

func transcriptHash(username string, clientEph, serverEph, verifier []byte) []byte {
	h := sha256.New()
	for _, part := range [][]byte{[]byte(protocolLabel), []byte(username), clientEph, serverEph, verifier} {
		var n [4]byte
		binary.BigEndian.PutUint32(n[:], uint32(len(part)))
		h.Write(n[:])
		h.Write(part)
	}
	return h.Sum(nil)
}

func proof(km, transcript []byte) []byte {
	mac := hmac.New(sha256.New, km)
	mac.Write([]byte("client proof"))
	mac.Write(transcript)
	return mac.Sum(nil)
}

// ServerLogin is the server state held between the two login messages
type ServerLogin struct {
	expected   []byte
	sessionKey []byte
}

// StartServer answers a client start request for username with the given
// record, returning the state needed to verify the finish request and the
// opaque login response for the client
func StartServer(username string, rec *Record, startLoginRequest string) (*ServerLogin, string, error) {
	ce, err := b64.DecodeString(startLoginRequest)
	if err != nil || len(ce) != keyLen {
		return nil, "", ErrMalformed
	}
	curve := ecdh.X25519()
	clientEph, err := curve.NewPublicKey(ce)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	verifier, err := curve.NewPublicKey(rec.Verifier)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	es, err := curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, "", err
	}
	dh1, err := es.ECDH(clientEph)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	dh2, err := es.ECDH(verifier)
	if err != nil {
		return nil, "", err
	}
	serverEph := es.PublicKey().Bytes()
	tr := transcriptHash(username, ce, serverEph, rec.Verifier)
	km, ks, err := keys(dh1, dh2, tr)
	if err != nil {
		return nil, "", err
	}
	resp, err := json.Marshal(loginResponse{Ephemeral: serverEph, Salt: rec.Salt, Params: rec.Params})
	if err != nil {
		return nil, "", err
	}
	return &ServerLogin{expected: proof(km, tr), sessionKey: ks},
		b64.EncodeToString(resp), nil
}

// Finish verifies the client's finish request and returns the session key
func (s *ServerLogin) Finish(finishLoginRequest string) ([]byte, error) {
	p, err := b64.DecodeString(finishLoginRequest)
	if err != nil {
		return nil, ErrMalformed
	}
	if !hmac.Equal(p, s.expected) {
		return nil, ErrAuthFailed
	}
	return s.sessionKey, nil
}

// ClientLogin is the client side of a login
type ClientLogin struct {
	username string
	password string
	eph      *ecdh.PrivateKey
}

// StartClient begins a login and returns the start request to send
func StartClient(username, password string) (*ClientLogin, string, error) {
	eph, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, "", err
	}
	c := &ClientLogin{username: username, password: password, eph: eph}
	return c, b64.EncodeToString(eph.PublicKey().Bytes()), nil
}

// Finish processes the server's login response and returns the finish
// request to send along with the session key the server will hold if the
// password was right
func (c *ClientLogin) Finish(loginResp string) (string, []byte, error) {
	raw, err := b64.DecodeString(loginResp)
	if err != nil {
		return "", nil, ErrMalformed
	}
	var lr loginResponse
	if err := json.Unmarshal(raw, &lr); err != nil || !lr.Params.valid() {
		return "", nil, ErrMalformed
	}
	curve := ecdh.X25519()
	serverEph, err := curve.NewPublicKey(lr.Ephemeral)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	priv, err := passwordKey(c.password, lr.Salt, lr.Params)
	if err != nil {
		return "", nil, err
	}
	dh1, err := c.eph.ECDH(serverEph)
	if err != nil {
		return "", nil, err
	}
	dh2, err := priv.ECDH(serverEph)
	if err != nil {
		return "", nil, err
	}
	tr := transcriptHash(c.username, c.eph.PublicKey().Bytes(), lr.Ephemeral,
		priv.PublicKey().Bytes())
	km, ks, err := keys(dh1, dh2, tr)
	if err != nil {
		return "", nil, err
	}
	return b64.EncodeToString(proof(km, tr)), ks, nil
}
