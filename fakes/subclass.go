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

package fakes

import (
	"github.com/gomlx/exceptions"
)

// Subclass is a composite ("tensor subclass") value: a logical value made of one or
// more inner plain tensors plus auxiliary non-tensor state, opaque to the backend
// compiler. The capture machinery desugars composites into their inner plain tensors
// before handing the graph to the backend, and reconstructs them afterwards.
//
// Flatten must be deterministic: same keys, in the same order, every call.
// Unflatten is prototype-based: called on any instance (typically the capture-time
// template), it builds a fresh composite of the same concrete type from the given
// inner tensors. The inner slice is keyed positionally by the keys Flatten returns.
type Subclass interface {
	// Flatten returns the inner plain tensors of the composite, the keys labeling
	// each of them, and the auxiliary non-tensor state needed to rebuild it.
	Flatten() (innerKeys []string, inner []*Tensor, meta any)

	// Unflatten builds a new composite of the same concrete type from inner tensors
	// (positionally matching innerKeys as returned by Flatten) and the meta returned
	// by Flatten.
	Unflatten(inner []*Tensor, meta any) Subclass
}

// ValidateMetadataOnly panics unless every inner tensor of the composite is a live
// fake tensor. Holding a real-data composite in capture metadata would pin real
// allocations for the lifetime of the compiled artifact.
func ValidateMetadataOnly(sc Subclass) {
	innerKeys, inner, _ := sc.Flatten()
	if len(innerKeys) != len(inner) {
		exceptions.Panicf("fakes.ValidateMetadataOnly: composite %T flattened to %d keys but %d tensors",
			sc, len(innerKeys), len(inner))
	}
	for ii, t := range inner {
		if t == nil || t.storage == nil {
			exceptions.Panicf("fakes.ValidateMetadataOnly: composite %T inner tensor %q (#%d) is not a fake tensor",
				sc, innerKeys[ii], ii)
		}
	}
}
