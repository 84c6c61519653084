/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

package aot

import (
	"os"
	"strconv"

	"k8s.io/klog/v2"
)

// FunctionalizeRNGOps controls whether random ops are functionalized during capture:
// when set, both the forward and backward graphs return one extra output with the
// total consumed RNG offset, used to advance the RNG state between executions.
//
// The value is read when a ViewAndMutationMeta is constructed and frozen into the
// record; changing it later does not affect already-built records.
var FunctionalizeRNGOps = false

// GradEnabled is the ambient autograd mode: whether operations record gradient
// bookkeeping. A captured function may flip it; CollectMetadata records the flip in
// the metadata (GradEnabledMutation) and restores the mode, and ApplyEpilogue
// replays the flip after each compiled execution.
var GradEnabled = true

// AOTGRAD_FUNCTIONALIZE_RNG is the environment variable that sets the default of
// FunctionalizeRNGOps at process start. It accepts the values strconv.ParseBool does.
const AOTGRAD_FUNCTIONALIZE_RNG = "AOTGRAD_FUNCTIONALIZE_RNG"

func init() {
	value, found := os.LookupEnv(AOTGRAD_FUNCTIONALIZE_RNG)
	if !found {
		return
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		klog.Warningf("invalid %s=%q, ignored: %v", AOTGRAD_FUNCTIONALIZE_RNG, value, err)
		return
	}
	FunctionalizeRNGOps = parsed
}
