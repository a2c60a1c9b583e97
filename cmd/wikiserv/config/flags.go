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

package config

import (
	"flag"
)

const (
	// Command-line flags
	cfConfig      = "config"
	cfVersion     = "version"
	cfValidate    = "validate-config"
	cfLogLevel    = "log-level"
	cfInstanceID  = "instance-id"
	cfPort        = "port"
	cfMetricsPort = "metrics-port"
	cfPathPrefix  = "path-prefix"
	cfMakeRecord  = "make-record"
)

// Flags holds the values for allowed flags
type Flags struct {
	PrintVersion      bool
	ValidateConfig    bool
	customPath        bool
	ListenPort        int
	MetricsListenPort int
	InstanceID        int
	ConfigPath        string
	LogLevel          string
	PathPrefix        string
	// MakeRecord names the user to print a registration record for
	MakeRecord string
}

func parseFlags(arguments []string) (*Flags, error) {
	flags := &Flags{}
	flagSet := flag.NewFlagSet("wikiserv", flag.ContinueOnError)

	flagSet.BoolVar(&flags.PrintVersion, cfVersion, false,
		"Prints the wikiserv version")
	flagSet.BoolVar(&flags.ValidateConfig, cfValidate, false,
		"Validates a wikiserv config and exits without running the server")
	flagSet.StringVar(&flags.ConfigPath, cfConfig, "",
		"Path to wikiserv Config File")
	flagSet.StringVar(&flags.LogLevel, cfLogLevel, "",
		"Level of Logging to use (debug, info, warn, error)")
	flagSet.IntVar(&flags.InstanceID, cfInstanceID, 0,
		"Instance ID is for running multiple wikiserv processes"+
			" from the same config while logging to their own files")
	flagSet.IntVar(&flags.ListenPort, cfPort, 0,
		"Port that the HTTP frontend will listen on")
	flagSet.IntVar(&flags.MetricsListenPort, cfMetricsPort, 0,
		"Port that the /metrics endpoint will listen on")
	flagSet.StringVar(&flags.PathPrefix, cfPathPrefix, "",
		"Path prefix the wiki is mounted under, e.g. /wiki")
	flagSet.StringVar(&flags.MakeRecord, cfMakeRecord, "",
		"Reads a password from stdin and prints a registration record for the named user")

	if err := flagSet.Parse(arguments); err != nil {
		return nil, err
	}
	if flags.ConfigPath != "" {
		flags.customPath = true
	} else {
		flags.ConfigPath = DefaultConfigPath
	}
	return flags, nil
}

// loadFlags loads configuration from command line flags
func (c *Config) loadFlags(flags *Flags) {
	if flags.ListenPort > 0 {
		c.Frontend.ListenPort = flags.ListenPort
	}
	if flags.MetricsListenPort > 0 {
		c.Metrics.ListenPort = flags.MetricsListenPort
	}
	if flags.LogLevel != "" {
		c.Logging.LogLevel = flags.LogLevel
	}
	if flags.InstanceID > 0 {
		c.Main.InstanceID = flags.InstanceID
	}
	if flags.PathPrefix != "" {
		c.Main.PathPrefix = flags.PathPrefix
	}
}
