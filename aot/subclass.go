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
	"slices"

	"github.com/gomlx/aotgrad/fakes"
	"github.com/gomlx/exceptions"
)

// The user's function may take and return composite "tensor subclass" values, but the
// graph handed to the backend compiler takes only plain tensors. Each logical
// input/output therefore maps to one or more plain-tensor slots of the dense graph,
// described by an ArgMeta: either PlainArg (a 1:1 identity mapping to one slot) or a
// *SubclassCreationMeta (a contiguous run of slots plus the recipe to rebuild the
// composite from them). Calling code must switch on the descriptor kind before
// deciding whether to invoke CreationFn.

// ArgMeta describes how one logical (user-visible) value maps to plain-tensor slots
// of the dense graph. Implemented by PlainArg and *SubclassCreationMeta only.
type ArgMeta interface {
	isArgMeta()
}

// PlainArg says the logical value is a plain (non-composite) value living at slot
// int(p) of the dense graph: identity mapping, no reconstruction needed.
type PlainArg int

func (PlainArg) isArgMeta() {}

// SubclassCreationMeta describes how to reconstitute one composite value from a
// contiguous run of plain-tensor slots.
//
// OriginalSubclass is the capture-time template: a metadata-only instance whose
// registered type and auxiliary non-tensor state drive the reconstruction.
// Constructing a SubclassCreationMeta with a real-data instance is a bug (it would
// pin real memory inside the compiled artifact); NewSubclassCreationMeta checks it.
type SubclassCreationMeta struct {
	// FlatTensorStartIdx is the first dense-graph slot of this composite.
	FlatTensorStartIdx int

	// ArgCount is the number of dense-graph slots the composite occupies.
	ArgCount int

	// OriginalSubclass is the metadata-only template used to rebuild the composite.
	// Shared and immutable after construction; referenced, never copied.
	OriginalSubclass fakes.Subclass

	// Meta is the opaque auxiliary state the template's Flatten returned.
	Meta any

	// InnerKeys labels each of the ArgCount slots within the composite.
	InnerKeys []string
}

func (*SubclassCreationMeta) isArgMeta() {}

// NewSubclassCreationMeta builds the reconstruction recipe for a composite occupying
// the dense-graph slots [startIdx, startIdx+len(innerKeys)). It panics if the template
// is not metadata-only.
func NewSubclassCreationMeta(startIdx int, template fakes.Subclass) *SubclassCreationMeta {
	fakes.ValidateMetadataOnly(template)
	innerKeys, inner, meta := template.Flatten()
	return &SubclassCreationMeta{
		FlatTensorStartIdx: startIdx,
		ArgCount:           len(inner),
		OriginalSubclass:   template,
		Meta:               meta,
		InnerKeys:          slices.Clone(innerKeys),
	}
}

// CreationFn reconstitutes the composite from the full flat-argument list: it slices
// allArgs[FlatTensorStartIdx : FlatTensorStartIdx+ArgCount] and rebuilds the composite
// through the template's Unflatten. allArgs is never mutated, and CreationFn can be
// called repeatedly.
//
// When isRuntime is false (still capturing), the autograd bookkeeping of the template's
// inner tensors is mirrored onto the rebuilt composite's inner tensors, since the
// autograd engine still runs over the composite during capture. At pure-execution time
// the differentiable graph has already been captured, so the mirroring is skipped.
//
// A slot-run shorter than InnerKeys is a fatal internal-consistency fault: it means
// the flat-argument list was not produced by the same subclass layout used at capture.
func (m *SubclassCreationMeta) CreationFn(allArgs []*fakes.Tensor, isRuntime bool) fakes.Subclass {
	if m.FlatTensorStartIdx < 0 || m.FlatTensorStartIdx+m.ArgCount > len(allArgs) {
		exceptions.Panicf(
			"SubclassCreationMeta.CreationFn: slots [%d:%d) out of range of %d flat arguments -- "+
				"the flat-argument list does not match the capture-time subclass layout",
			m.FlatTensorStartIdx, m.FlatTensorStartIdx+m.ArgCount, len(allArgs))
	}
	currArgs := allArgs[m.FlatTensorStartIdx : m.FlatTensorStartIdx+m.ArgCount]
	if len(currArgs) != len(m.InnerKeys) {
		exceptions.Panicf(
			"SubclassCreationMeta.CreationFn: innerKeys %v but %d tensors in the slot run -- "+
				"the flat-argument list does not match the capture-time subclass layout",
			m.InnerKeys, len(currArgs))
	}
	out := m.OriginalSubclass.Unflatten(currArgs, m.Meta)
	if !isRuntime {
		_, templateInner, _ := m.OriginalSubclass.Flatten()
		_, outInner, _ := out.Flatten()
		for ii, template := range templateInner {
			fakes.MirrorAutogradMeta(template, outInner[ii])
		}
	}
	return out
}

// NumFlatSlots returns the number of dense-graph slots the descriptors cover in total.
func NumFlatSlots(descriptors []ArgMeta) (count int) {
	for _, desc := range descriptors {
		switch d := desc.(type) {
		case PlainArg:
			count++
		case *SubclassCreationMeta:
			count += d.ArgCount
		default:
			exceptions.Panicf("NumFlatSlots: unknown ArgMeta %T", desc)
		}
	}
	return
}

// UnflattenValues rebuilds the logical (user-visible) value list from the dense
// plain-tensor list, following the descriptors: PlainArg slots pass through as plain
// tensors, subclass runs are reconstituted via CreationFn.
func UnflattenValues(descriptors []ArgMeta, flat []*fakes.Tensor, isRuntime bool) []any {
	out := make([]any, len(descriptors))
	for ii, desc := range descriptors {
		switch d := desc.(type) {
		case PlainArg:
			if int(d) < 0 || int(d) >= len(flat) {
				exceptions.Panicf("UnflattenValues: descriptor %d points at slot %d of %d", ii, int(d), len(flat))
			}
			out[ii] = flat[d]
		case *SubclassCreationMeta:
			out[ii] = d.CreationFn(flat, isRuntime)
		default:
			exceptions.Panicf("UnflattenValues: unknown ArgMeta %T", desc)
		}
	}
	return out
}

// FlattenValues desugars a logical value list (plain tensors and composites) into the
// dense plain-tensor list, and produces the descriptors to invert the mapping.
// Values must be *fakes.Tensor or fakes.Subclass.
func FlattenValues(values []any) (flat []*fakes.Tensor, descriptors []ArgMeta) {
	descriptors = make([]ArgMeta, 0, len(values))
	for _, value := range values {
		switch v := value.(type) {
		case *fakes.Tensor:
			descriptors = append(descriptors, PlainArg(len(flat)))
			flat = append(flat, v)
		case fakes.Subclass:
			meta := NewSubclassCreationMeta(len(flat), v)
			_, inner, _ := v.Flatten()
			descriptors = append(descriptors, meta)
			flat = append(flat, inner...)
		default:
			exceptions.Panicf("FlattenValues: value %T is neither a fake tensor nor a subclass", value)
		}
	}
	return
}
