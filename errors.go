// Copyright 2026 Lexfly, Inc.
//
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

package coref

import (
	"errors"
	"fmt"
)

// Pipeline stages, used to attribute failures.
const (
	StageDetect  = "detect"
	StageEncode  = "encode"
	StagePrune   = "prune"
	StageScore   = "score"
	StageCluster = "cluster"
)

// ErrInvalidMention means a supplied mention does not fit inside the
// document it was given with.
var ErrInvalidMention = errors.New("mention outside document")

// StageError attributes a resolution failure to one pipeline stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}
