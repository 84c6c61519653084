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

package capture

import (
	"github.com/gomlx/aotgrad/aot"
	"github.com/gomlx/aotgrad/fakes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// DefaultMaxInlineDepth bounds nested inline expansion: deeply recursive user
// functions fail the capture instead of hanging it.
const DefaultMaxInlineDepth = 8

// Inliner expands callable variables in place during tracing. Keyed callables have
// their aliasing metadata captured once and cached, so repeated calls of the same
// function skip the metadata pass.
//
// An Inliner serves one capture and is not safe for concurrent use.
type Inliner struct {
	maxDepth int
	depth    int
	cache    map[string]*aot.ViewAndMutationMeta
}

// NewInliner returns an inliner with the given depth bound; maxDepth <= 0 selects
// DefaultMaxInlineDepth.
func NewInliner(maxDepth int) *Inliner {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxInlineDepth
	}
	return &Inliner{
		maxDepth: maxDepth,
		cache:    make(map[string]*aot.ViewAndMutationMeta),
	}
}

// Inline runs fn over the unboxed argument values and boxes its outputs back into
// variables. On the first call with a given non-empty fn.Key whose arguments are all
// tensor-like, the callee's aliasing metadata is captured and cached (the callee runs
// an extra time for that pass); later calls reuse the cached record via Metadata.
func (in *Inliner) Inline(fn *CallableVariable, args []Variable) ([]Variable, error) {
	if in.depth >= in.maxDepth {
		return nil, errors.Errorf("inlining %s exceeds the maximum inline depth (%d): "+
			"recursive or too deeply nested user function", fn, in.maxDepth)
	}
	in.depth++
	defer func() { in.depth-- }()

	values := make([]any, len(args))
	tensorLike := true
	for ii, arg := range args {
		values[ii] = arg.Proxy()
		switch values[ii].(type) {
		case *fakes.Tensor, fakes.Subclass:
		default:
			// Constants fold into the graph; they carry no aliasing metadata.
			tensorLike = false
		}
	}

	if fn.Key != "" && tensorLike {
		if _, found := in.cache[fn.Key]; !found {
			meta, err := aot.CollectMetadata(fn.Fn, values, aot.CollectOptions{})
			if err != nil {
				return nil, errors.WithMessagef(err, "capturing metadata while inlining %s", fn)
			}
			in.cache[fn.Key] = meta
			if klog.V(1).Enabled() {
				klog.Infof("Inliner: cached metadata for %q (%d outputs)", fn.Key, meta.NumOutputs)
			}
		}
	}

	outputs := fn.Fn(values)
	return WrapAll(outputs), nil
}

// Metadata returns the cached aliasing metadata of a keyed callable, if it was
// already inlined with tensor-like arguments.
func (in *Inliner) Metadata(key string) (*aot.ViewAndMutationMeta, bool) {
	meta, found := in.cache[key]
	return meta, found
}

// Depth returns the current nesting level, for tests and diagnostics.
func (in *Inliner) Depth() int { return in.depth }
