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

import "time"

// timeoutController holds an absolute deadline for a multi-statement batch.
// A zero deadline means "no timeout".
type timeoutController struct {
	deadline time.Time
}

func newTimeoutController(d time.Duration) timeoutController {
	if d <= 0 {
		return timeoutController{}
	}
	return timeoutController{deadline: time.Now().Add(d)}
}

// newTimeoutControllerAt wraps an already-computed absolute deadline, e.g.
// one read off a context.Context via Deadline(). Unlike
// newTimeoutController, a deadline in the past is kept rather than treated
// as "no timeout" — the first raiseIfTimeout call reports the expiry.
func newTimeoutControllerAt(deadline time.Time) timeoutController {
	return timeoutController{deadline: deadline}
}

func (t timeoutController) enabled() bool { return !t.deadline.IsZero() }

// raiseIfTimeout is checked before each HTTP request in a multi-statement
// batch; exhaustion surfaces as QueryTimeoutError.
func (t timeoutController) raiseIfTimeout() error {
	if t.enabled() && time.Now().After(t.deadline) {
		return wrapErr(ErrQueryTimeout, "query deadline exceeded")
	}
	return nil
}

// remaining feeds a per-request timeout; a disabled controller returns 0,
// meaning "no deadline" to callers that treat 0 as unset.
func (t timeoutController) remaining() time.Duration {
	if !t.enabled() {
		return 0
	}
	d := time.Until(t.deadline)
	if d < 0 {
		return 0
	}
	return d
}
