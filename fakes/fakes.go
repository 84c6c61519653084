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

// Package fakes implements metadata-only ("fake") tensors used during graph capture.
//
// A fakes.Tensor carries a shape, autograd flags and a storage identity, but no data:
// running the user's function over fake tensors records which values alias each other
// and which inputs get mutated, without executing any real computation.
//
// The important relationships a fake tensor tracks:
//
//   - Storage: every tensor references a Storage with a unique id. Two tensors alias
//     each other iff they share the same Storage.
//   - View chain: a view remembers the root tensor it was derived from (Base), like
//     the view/base relationship of an eager tensor runtime.
//   - Version counters: data mutations bump a counter on the Storage (a mutation
//     through a view is visible through every alias); metadata mutations (reshape
//     in place and similar) bump a counter on the Tensor itself.
//
// Fake tensors are not safe for concurrent mutation; graph capture is single-threaded.
package fakes

import (
	"fmt"

	"github.com/gomlx/aotgrad/types/shapes"
	"github.com/gomlx/exceptions"
	"github.com/google/uuid"
)

// Storage is the fake allocation identity shared by all aliasing tensors.
// It holds no data, only an id, a size and a data version counter.
type Storage struct {
	id          uuid.UUID
	memory      uintptr
	dataVersion int
}

func newStorage(memory uintptr) *Storage {
	return &Storage{id: uuid.New(), memory: memory}
}

// ID uniquely identifies this storage within the process.
func (s *Storage) ID() uuid.UUID { return s.id }

// Memory is the size in bytes the real allocation would have.
func (s *Storage) Memory() uintptr { return s.memory }

// DataVersion counts data mutations applied to this storage (through any alias).
func (s *Storage) DataVersion() int { return s.dataVersion }

// Tensor is a metadata-only stand-in for a real tensor.
// Create leaf tensors with FromShape, intermediates with NewResult and
// aliases with the View* methods.
type Tensor struct {
	shape   shapes.Shape
	storage *Storage
	base    *Tensor // nil if this tensor is not a view.

	requiresGrad bool
	isLeaf       bool

	metaVersion int

	hiddenMutation bool // data mutation happened with autograd tracking disabled.
	unsafeView     bool
	customFnView   bool
}

// FromShape creates a new leaf fake tensor (fresh storage, no autograd history).
func FromShape(shape shapes.Shape) *Tensor {
	if !shape.Ok() {
		exceptions.Panicf("fakes.FromShape: invalid shape %s", shape)
	}
	return &Tensor{
		shape:   shape.Clone(),
		storage: newStorage(shape.Memory()),
		isLeaf:  true,
	}
}

// NewResult creates a fake tensor standing for the result of a traced operation over
// the given inputs: fresh storage, not a leaf, and it requires gradient if any input does.
func NewResult(shape shapes.Shape, inputs ...*Tensor) *Tensor {
	t := FromShape(shape)
	t.isLeaf = false
	for _, input := range inputs {
		if input.requiresGrad {
			t.requiresGrad = true
			break
		}
	}
	return t
}

// SetRequiresGrad sets whether the tensor participates in autograd. It returns the
// tensor to allow chaining with the constructor.
func (t *Tensor) SetRequiresGrad(requiresGrad bool) *Tensor {
	t.requiresGrad = requiresGrad
	return t
}

// Shape of the tensor. It implements shapes.HasShape.
func (t *Tensor) Shape() shapes.Shape { return t.shape }

// RequiresGrad reports whether the tensor participates in autograd.
func (t *Tensor) RequiresGrad() bool { return t.requiresGrad }

// IsLeaf reports whether the tensor has no autograd history.
func (t *Tensor) IsLeaf() bool { return t.isLeaf }

// Storage returns the fake allocation backing this tensor.
func (t *Tensor) Storage() *Storage { return t.storage }

// Base returns the root tensor this view was derived from, or nil if not a view.
func (t *Tensor) Base() *Tensor { return t.base }

// IsView reports whether the tensor is a view of another tensor.
func (t *Tensor) IsView() bool { return t.base != nil }

// MetaVersion counts in-place metadata mutations (shape/stride changes) of this tensor.
func (t *Tensor) MetaVersion() int { return t.metaVersion }

// HasHiddenMutation reports whether a data mutation was applied with autograd
// tracking disabled (see MutateDataHiddenFromAutograd).
func (t *Tensor) HasHiddenMutation() bool { return t.hiddenMutation }

// IsUnsafeView reports whether this tensor was created by ViewUnsafe.
func (t *Tensor) IsUnsafeView() bool { return t.unsafeView }

// IsCustomFunctionView reports whether this tensor is a view produced at a custom
// backward-function boundary, where view-replay is unavailable.
func (t *Tensor) IsCustomFunctionView() bool { return t.customFnView }

// root returns the base of the view chain, or the tensor itself.
func (t *Tensor) root() *Tensor {
	if t.base != nil {
		return t.base
	}
	return t
}

// View creates an alias with the same shape: shared storage, Base set to the root
// of the view chain.
func (t *Tensor) View() *Tensor {
	return t.ViewWithShape(t.shape)
}

// ViewWithShape creates an alias with a different shape (e.g. a reshape or slice view).
// The total memory of the view cannot exceed the storage.
func (t *Tensor) ViewWithShape(shape shapes.Shape) *Tensor {
	if shape.Memory() > t.storage.memory {
		exceptions.Panicf("fakes.Tensor.ViewWithShape: view shape %s needs %d bytes, storage only has %d",
			shape, shape.Memory(), t.storage.memory)
	}
	return &Tensor{
		shape:   shape.Clone(),
		storage: t.storage,
		base:    t.root(),
		// A view of a differentiable tensor has autograd history of its own.
		requiresGrad: t.requiresGrad,
		isLeaf:       t.isLeaf && !t.requiresGrad,
	}
}

// ViewUnsafe creates an alias whose relationship with its base is guaranteed stable,
// so it never needs view-replay at runtime.
func (t *Tensor) ViewUnsafe() *Tensor {
	v := t.View()
	v.unsafeView = true
	return v
}

// ViewFromCustomFunction creates an alias produced at a custom backward-function
// boundary: view-replay is not available for it, it is treated as a normal output.
func (t *Tensor) ViewFromCustomFunction() *Tensor {
	v := t.View()
	v.customFnView = true
	return v
}

// MutateData records an in-place data mutation of the tensor: the storage's data
// version is bumped, so the mutation is visible through every alias.
func (t *Tensor) MutateData() {
	t.storage.dataVersion++
}

// MutateDataHiddenFromAutograd records a data mutation applied while autograd tracking
// was disabled: the mutation happened, but the autograd graph need not see it.
func (t *Tensor) MutateDataHiddenFromAutograd() {
	t.storage.dataVersion++
	t.hiddenMutation = true
}

// MutateMetadata records an in-place metadata mutation (e.g. a reshape in place):
// the shape changes but the contents are untouched.
func (t *Tensor) MutateMetadata(newShape shapes.Shape) {
	if !newShape.Ok() {
		exceptions.Panicf("fakes.Tensor.MutateMetadata: invalid shape %s", newShape)
	}
	t.shape = newShape.Clone()
	t.metaVersion++
}

// CopyDataFrom records copying the data of src into t (the runtime replay of an
// out-of-graph input mutation). Shapes must match in total size.
func (t *Tensor) CopyDataFrom(src *Tensor) {
	if src.shape.Memory() != t.shape.Memory() {
		exceptions.Panicf("fakes.Tensor.CopyDataFrom: size mismatch, %s into %s", src.shape, t.shape)
	}
	t.storage.dataVersion++
}

// MirrorAutogradMeta copies the autograd bookkeeping (requires-grad and leafness)
// from template onto out. Used after reconstructing composites during tracing, where
// the autograd engine will still run over the result.
func MirrorAutogradMeta(template, out *Tensor) {
	out.requiresGrad = template.requiresGrad
	out.isLeaf = template.isLeaf
}

// Snapshot is the pre-capture state of an input tensor, compared against the
// post-capture state to classify mutations.
type Snapshot struct {
	Shape       shapes.Shape
	StorageID   uuid.UUID
	DataVersion int
	MetaVersion int
}

// Snapshot captures the current state of the tensor.
func (t *Tensor) Snapshot() Snapshot {
	return Snapshot{
		Shape:       t.shape.Clone(),
		StorageID:   t.storage.id,
		DataVersion: t.storage.dataVersion,
		MetaVersion: t.metaVersion,
	}
}

// SameStorage reports whether two fake tensors alias the same storage.
func SameStorage(a, b *Tensor) bool {
	return a != nil && b != nil && a.storage == b.storage
}

// String implements fmt.Stringer.
func (t *Tensor) String() string {
	kind := "tensor"
	if t.IsView() {
		kind = "view"
	}
	return fmt.Sprintf("fake %s %s (storage %s, %s)",
		kind, t.shape, t.storage.id.String()[:8], t.shape.MemoryString())
}
