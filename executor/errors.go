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

package executor

import (
	"fmt"

	"github.com/ekjotsingh/idxexec/idxplan"
)

// DuplicatedMatchRef is returned when two Matches predicates in the
// same plan declare the same user-visible MatchRef.
type DuplicatedMatchRef struct {
	Ref idxplan.MatchRef
}

func (e *DuplicatedMatchRef) Error() string {
	return fmt.Sprintf("executor: duplicated match reference %d", e.Ref)
}

// NoIndexFoundForMatch is returned when a Matches/Highlight/Offsets/Score
// call arrives for an expression with no registered full-text entry.
type NoIndexFoundForMatch struct {
	Expr idxplan.Expression
}

func (e *NoIndexFoundForMatch) Error() string {
	return fmt.Sprintf("executor: no full-text index found for expression %v", e.Expr)
}
