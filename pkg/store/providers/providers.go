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

// Package providers enumerates the store providers
package providers

import "strconv"

// Provider enumerates the store providers
type Provider int

const (
	// MemoryID indicates a memory store
	MemoryID = Provider(iota)
	// RedisID indicates a Redis store
	RedisID
	// BBoltID indicates a BBolt store
	BBoltID
	// BadgerDBID indicates a BadgerDB store
	BadgerDBID

	Memory   = "memory"
	Redis    = "redis"
	BBolt    = "bbolt"
	BadgerDB = "badger"
)

// Names is a map of store providers keyed by name
var Names = map[string]Provider{
	Memory:   MemoryID,
	Redis:    RedisID,
	BBolt:    BBoltID,
	BadgerDB: BadgerDBID,
}

// Values is a map of store providers keyed by internal id
var Values = make(map[Provider]string)

func init() {
	for k, v := range Names {
		Values[v] = k
	}
}

func (p Provider) String() string {
	if v, ok := Values[p]; ok {
		return v
	}
	return strconv.Itoa(int(p))
}

// IsValid returns true if name is a known provider
func IsValid(name string) bool {
	_, ok := Names[name]
	return ok
}
