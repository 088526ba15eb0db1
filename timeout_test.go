/*
 * Copyright 2022 RapidLoop, Inc.
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

package firebolt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimeoutControllerZeroDurationIsDisabled(t *testing.T) {
	r := require.New(t)
	tc := newTimeoutController(0)
	r.False(tc.enabled())
	r.NoError(tc.raiseIfTimeout())
	r.Zero(tc.remaining())
}

func TestTimeoutControllerExpiresAfterDuration(t *testing.T) {
	r := require.New(t)
	tc := newTimeoutController(10 * time.Millisecond)
	r.True(tc.enabled())
	r.NoError(tc.raiseIfTimeout())
	r.Positive(tc.remaining())

	time.Sleep(20 * time.Millisecond)
	err := tc.raiseIfTimeout()
	r.ErrorIs(err, ErrQueryTimeout)
	r.Zero(tc.remaining())
}

func TestTimeoutControllerAtPastDeadlineIsAlreadyExpired(t *testing.T) {
	r := require.New(t)
	tc := newTimeoutControllerAt(time.Now().Add(-time.Second))
	r.True(tc.enabled())
	r.ErrorIs(tc.raiseIfTimeout(), ErrQueryTimeout)
	r.Zero(tc.remaining())
}
