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

// Package main is the main package for the wikiserv application
package main

import (
	"fmt"
	"os"

	"github.com/wikiserv/wikiserv/pkg/appinfo"
	"github.com/wikiserv/wikiserv/pkg/daemon"
)

var (
	applicationGitCommitID string
	applicationBuildTime   string
)

const (
	applicationName    = "wikiserv"
	applicationVersion = "0.9.0"
)

func main() {
	appinfo.Set(applicationName, applicationVersion,
		applicationBuildTime, applicationGitCommitID)
	if err := daemon.Start(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "wikiserv:", err)
		os.Exit(1)
	}
}
