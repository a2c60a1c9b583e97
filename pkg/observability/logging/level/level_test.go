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

package level

import "testing"

func TestGetID(t *testing.T) {
	tests := []struct {
		l  Level
		id ID
	}{
		{Debug, DebugID},
		{Info, InfoID},
		{"WARN", WarnID},
		{Error, ErrorID},
		{Fatal, FatalID},
		{"trace", 0},
	}
	for _, test := range tests {
		t.Run(string(test.l), func(t *testing.T) {
			if id := GetID(test.l); id != test.id {
				t.Errorf("expected %d got %d", test.id, id)
			}
		})
	}
	if IsValid("verbose") {
		t.Error("expected false")
	}
}
