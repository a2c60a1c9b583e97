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

package appinfo

import "testing"

func TestSet(t *testing.T) {
	Set("wikiserv", "1.0.0", "now", "abc123")
	if Name != "wikiserv" || Version != "1.0.0" || BuildTime != "now" || GitCommitID != "abc123" {
		t.Error("unexpected app info")
	}
	orig := Server
	SetServer("")
	if Server != orig {
		t.Error("expected empty server to be ignored")
	}
	SetServer("wiki.example.com")
	if Server != "wiki.example.com" {
		t.Errorf("expected %s got %s", "wiki.example.com", Server)
	}
	if GoVersion() == "" {
		t.Error("expected go version")
	}
}
