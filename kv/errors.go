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

import "github.com/pingcap/errors"

// ErrNotFound is returned by Retriever.Get when the key does not exist.
var ErrNotFound = errors.New("kv: key not found")

// IsErrNotFound reports whether err is (or wraps) ErrNotFound.
func IsErrNotFound(err error) bool {
	for err != nil {
		err = errors.Cause(err)
		if err == ErrNotFound {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// StorageError wraps any failure surfaced by the underlying KV layer so
// callers can distinguish storage failures from executor-local ones
// while still propagating the original error verbatim via Unwrap.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "kv: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// WrapStorage annotates err, if non-nil, as a StorageError for op.
func WrapStorage(op string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Trace(&StorageError{Op: op, Err: err})
}
