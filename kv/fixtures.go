// Copyright 2025 Ekjot Singh
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// See the License for the specific language governing permissions and
// limitations under the License.

package kv

import "github.com/google/uuid"

// NewOpaqueThing returns a Thing for table with a fresh random UUID as
// its id, for callers (tests, ad-hoc fixtures) that need a Thing
// without caring about its identity beyond uniqueness.
func NewOpaqueThing(table string) Thing {
	return Thing{Table: table, ID: uuid.New().String()}
}
