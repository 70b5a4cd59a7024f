// Copyright 2010-2024 Google LLC
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package qpmodel

import (
	"errors"
	"fmt"
)

// ErrMixedModels holds the error when elements added to a model are different.
var ErrMixedModels = errors.New("elements are not part of the same model")

// ErrorCode classifies model configuration errors.
type ErrorCode int

// Error codes reported in Error.Code.
const (
	CodeInvalidArgument ErrorCode = 10003
	CodeDuplicateName   ErrorCode = 10005
	CodeNotPSD          ErrorCode = 10020
	CodeMixedModels     ErrorCode = 10021
	CodeNumeric         ErrorCode = 10025
)

func (c ErrorCode) String() string {
	switch c {
	case CodeInvalidArgument:
		return "INVALID_ARGUMENT"
	case CodeDuplicateName:
		return "DUPLICATE_NAME"
	case CodeNotPSD:
		return "Q_NOT_PSD"
	case CodeMixedModels:
		return "MIXED_MODELS"
	case CodeNumeric:
		return "NUMERIC"
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Error is returned for models that cannot be handed to the solver. It carries a stable
// numeric code along with a human readable message.
type Error struct {
	Code    ErrorCode
	Message string
	err     error
}

func newError(code ErrorCode, format string, a ...any) *Error {
	err := fmt.Errorf(format, a...)
	return &Error{Code: code, Message: err.Error(), err: errors.Unwrap(err)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("qpmodel error %d: %s", int(e.Code), e.Message)
}

// Unwrap returns the wrapped error, if any.
func (e *Error) Unwrap() error {
	return e.err
}
