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

// Package login drives the two-message PAKE login exchange. Each exchange
// is an explicit state machine that must be advanced in order, and the
// Manager keeps in-flight exchanges under single-use opaque tokens.
package login

import (
	"fmt"
	"time"

	"github.com/wikiserv/wikiserv/pkg/auth/pake"
)

// Step is the state of an Exchange
type Step int

const (
	// Step0Pending is a new exchange awaiting the client start request
	Step0Pending Step = iota
	// Step1Pending has answered step 0 and awaits the finish request
	Step1Pending
	// Done has finished, successfully or not
	Done
)

func (s Step) String() string {
	switch s {
	case Step0Pending:
		return "step0-pending"
	case Step1Pending:
		return "step1-pending"
	case Done:
		return "done"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// StepError is returned when an Exchange is driven out of order
type StepError struct {
	State Step
	Tried int
}

func (e *StepError) Error() string {
	return fmt.Sprintf("login exchange driven with step %d while %s", e.Tried, e.State)
}

// Step0Input starts an exchange
type Step0Input struct {
	UserID             string
	Username           string
	StartLoginRequest  string
	RegistrationRecord *pake.Record
}

// Step0Output is the server's answer to the start request
type Step0Output struct {
	LoginResponse string `json:"loginResponse"`
}

// Step1Input finishes an exchange
type Step1Input struct {
	FinishLoginRequest string
}

// Session is the result of a verified login
type Session struct {
	SessionKey []byte
}

// Step1Output is the result of an exchange. Session is nil unless the
// client proved knowledge of the password within the exchange window.
type Step1Output struct {
	Session  *Session
	UserID   string
	Username string
}

// Exchange is one in-flight login
type Exchange struct {
	state    Step
	userID   string
	username string
	server   *pake.ServerLogin
	started  time.Time
	window   time.Duration
	now      func() time.Time
}

// NewExchange returns an Exchange whose step 1 must arrive within window
// of step 0
func NewExchange(window time.Duration) *Exchange {
	return &Exchange{window: window, now: time.Now}
}

// State returns the current state
func (e *Exchange) State() Step {
	return e.state
}

// Started returns the time step 0 completed
func (e *Exchange) Started() time.Time {
	return e.started
}

// Step0 computes the login response for the start request
func (e *Exchange) Step0(in Step0Input) (Step0Output, error) {
	if e.state != Step0Pending {
		return Step0Output{}, &StepError{State: e.state, Tried: 0}
	}
	if in.RegistrationRecord == nil {
		e.state = Done
		return Step0Output{}, pake.ErrMalformed
	}
	srv, resp, err := pake.StartServer(in.Username, in.RegistrationRecord, in.StartLoginRequest)
	if err != nil {
		e.state = Done
		return Step0Output{}, err
	}
	e.server = srv
	e.userID = in.UserID
	e.username = in.Username
	e.started = e.now()
	e.state = Step1Pending
	return Step0Output{LoginResponse: resp}, nil
}

// Step1 verifies the finish request. A wrong proof, or a finish request
// arriving after the window, yields a result without a Session.
func (e *Exchange) Step1(in Step1Input) (Step1Output, error) {
	if e.state != Step1Pending {
		return Step1Output{}, &StepError{State: e.state, Tried: 1}
	}
	e.state = Done
	out := Step1Output{UserID: e.userID, Username: e.username}
	key, err := e.server.Finish(in.FinishLoginRequest)
	e.server = nil
	if err != nil || e.Expired() || e.userID == "" {
		return out, nil
	}
	out.Session = &Session{SessionKey: key}
	return out, nil
}

// Expired reports whether the exchange window has passed since step 0
func (e *Exchange) Expired() bool {
	return !e.started.IsZero() && e.now().Sub(e.started) > e.window
}
