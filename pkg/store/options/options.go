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

// Package options configures the store used for credentials and sessions
package options

import (
	"fmt"
	"time"

	"github.com/wikiserv/wikiserv/pkg/errors"
	bado "github.com/wikiserv/wikiserv/pkg/store/badger/options"
	bbo "github.com/wikiserv/wikiserv/pkg/store/bbolt/options"
	"github.com/wikiserv/wikiserv/pkg/store/providers"
	reo "github.com/wikiserv/wikiserv/pkg/store/redis/options"
)

const (
	DefaultProvider     = providers.Memory
	DefaultReapInterval = time.Minute
)

// Options is a collection of store configurations
type Options struct {
	// Provider is one of memory, bbolt, badger or redis
	Provider string `yaml:"provider,omitempty"`
	// ReapInterval is how often the memory provider drops expired entries
	ReapInterval time.Duration `yaml:"reap_interval,omitempty"`

	Redis  *reo.Options  `yaml:"redis,omitempty"`
	BBolt  *bbo.Options  `yaml:"bbolt,omitempty"`
	Badger *bado.Options `yaml:"badger,omitempty"`
}

// New returns a new Options with default values
func New() *Options {
	return &Options{
		Provider:     DefaultProvider,
		ReapInterval: DefaultReapInterval,
		Redis:        reo.New(),
		BBolt:        bbo.New(),
		Badger:       bado.New(),
	}
}

func (o *Options) UnmarshalYAML(unmarshal func(any) error) error {
	type loadOptions Options
	lo := loadOptions(*(New()))
	if err := unmarshal(&lo); err != nil {
		return err
	}
	*o = Options(lo)
	return nil
}

// Validate checks the Options and fills in missing provider sections
func (o *Options) Validate() error {
	if !providers.IsValid(o.Provider) {
		return fmt.Errorf("%w: unknown store provider %q", errors.ErrInvalidOptions, o.Provider)
	}
	if o.ReapInterval <= 0 {
		o.ReapInterval = DefaultReapInterval
	}
	if o.Redis == nil {
		o.Redis = reo.New()
	}
	if o.BBolt == nil {
		o.BBolt = bbo.New()
	}
	if o.Badger == nil {
		o.Badger = bado.New()
	}
	if o.Badger.ValueDirectory == "" {
		o.Badger.ValueDirectory = o.Badger.Directory
	}
	return nil
}
