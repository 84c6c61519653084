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

// Package shapes defines Shape and associated tools.
//
// Shape represents the shape (rank, dimensions and DType) of either a fake tensor used
// during graph capture, or of a value in the captured computation graph. DType indicates
// the type of the unit element and is shared with the rest of the GoMLX family through
// github.com/gomlx/gopjrt/dtypes.
//
// During graph capture some axes may have sizes that are only symbolically known
// ("dynamic"): those are marked in Shape.DynamicAxes. Two shapes with the same rank,
// dtype and static dimensions are considered Equal even if they disagree on which axes
// are dynamic -- use EqualDynamic when the distinction matters.
//
// ## Glossary
//
//   - Rank: number of axes (dimensions) of a tensor.
//   - Axis: the index of a dimension. We refer to a dimension index as "axis"
//     (plural axes), and its size as its dimension.
//   - Dynamic axis: an axis whose dimension is not fixed at capture time.
//   - Scalar: a shape with no axes, a single value of the associated DType.
package shapes

import (
	"encoding/gob"
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// Shape represents the shape of a fake tensor or of a value in a captured graph.
//
// Use Make to create a new shape. DynamicAxes lists the axes (sorted, no duplicates)
// whose dimension is only symbolically known at capture time.
type Shape struct {
	DType       dtypes.DType
	Dimensions  []int
	DynamicAxes []int
}

// Make returns a Shape structure filled with the values given.
func Make(dtype dtypes.DType, dimensions ...int) Shape {
	s := Shape{Dimensions: slices.Clone(dimensions), DType: dtype}
	for _, dim := range dimensions {
		if dim <= 0 {
			exceptions.Panicf("shapes.Make(%s): cannot create a shape with an axis with dimension <= 0", s)
		}
	}
	return s
}

// MakeDynamic is like Make, but marks the given axes as dynamically sized.
// The dimension recorded for a dynamic axis is the example (capture-time) dimension.
func MakeDynamic(dtype dtypes.DType, dimensions []int, dynamicAxes ...int) Shape {
	s := Make(dtype, dimensions...)
	for _, axis := range dynamicAxes {
		if axis < 0 || axis >= s.Rank() {
			exceptions.Panicf("shapes.MakeDynamic(%s): dynamic axis %d out-of-bounds for rank %d", s, axis, s.Rank())
		}
	}
	s.DynamicAxes = slices.Clone(dynamicAxes)
	slices.Sort(s.DynamicAxes)
	s.DynamicAxes = slices.Compact(s.DynamicAxes)
	return s
}

// Scalar returns a scalar Shape for the given type.
func Scalar[T dtypes.Supported]() Shape {
	return Shape{DType: dtypes.FromGenericsType[T]()}
}

// Invalid returns an invalid shape.
//
// Invalid().Ok() == false.
func Invalid() Shape {
	return Shape{DType: dtypes.InvalidDType}
}

// Ok returns whether this is a valid Shape. A "zero" shape, that is just instantiating
// it with Shape{}, will be invalid.
func (s Shape) Ok() bool { return s.DType != dtypes.InvalidDType }

// Rank of the shape, that is, the number of axes.
func (s Shape) Rank() int { return len(s.Dimensions) }

// IsScalar returns whether the shape represents a scalar: no axes (rank==0).
func (s Shape) IsScalar() bool { return s.Ok() && s.Rank() == 0 }

// IsDynamic returns whether any axis of the shape is dynamically sized.
func (s Shape) IsDynamic() bool { return len(s.DynamicAxes) > 0 }

// AxisIsDynamic returns whether the given axis is dynamically sized.
func (s Shape) AxisIsDynamic(axis int) bool {
	_, found := slices.BinarySearch(s.DynamicAxes, axis)
	return found
}

// Dim returns the dimension of the given axis. axis can take negative numbers, in which
// case it counts from the end -- so axis=-1 refers to the last axis.
// Like with slice indexing, it panics for an out-of-bound axis.
func (s Shape) Dim(axis int) int {
	adjustedAxis := axis
	if adjustedAxis < 0 {
		adjustedAxis += s.Rank()
	}
	if adjustedAxis < 0 || adjustedAxis >= s.Rank() {
		exceptions.Panicf("Shape.Dim(%d) out-of-bounds for rank %d (shape=%s)", axis, s.Rank(), s)
	}
	return s.Dimensions[adjustedAxis]
}

// Shape returns a shallow copy of itself. It implements the HasShape interface.
func (s Shape) Shape() Shape { return s }

// String implements fmt.Stringer, pretty-prints the shape.
// Dynamic axes are printed with a "~" prefix on their example dimension.
func (s Shape) String() string {
	if s.Rank() == 0 {
		return fmt.Sprintf("(%s)", s.DType)
	}
	if !s.IsDynamic() {
		return fmt.Sprintf("(%s)%v", s.DType, s.Dimensions)
	}
	parts := make([]string, s.Rank())
	for axis, dim := range s.Dimensions {
		if s.AxisIsDynamic(axis) {
			parts[axis] = fmt.Sprintf("~%d", dim)
		} else {
			parts[axis] = fmt.Sprintf("%d", dim)
		}
	}
	return fmt.Sprintf("(%s)[%s]", s.DType, strings.Join(parts, " "))
}

// Size returns the number of elements of DType needed for this shape.
// It's the product of all dimensions (example dimensions for dynamic axes).
func (s Shape) Size() (size int) {
	size = 1
	for _, d := range s.Dimensions {
		size *= d
	}
	return
}

// Memory returns the memory needed to store an array of the given shape, in bytes.
func (s Shape) Memory() uintptr {
	return s.DType.Memory() * uintptr(s.Size())
}

// MemoryString returns Memory pretty-printed for humans, e.g. "4.1 kB".
func (s Shape) MemoryString() string {
	return humanize.Bytes(uint64(s.Memory()))
}

// Equal compares two shapes for equality: dtype and dimensions are compared,
// dynamic axes are ignored. See EqualDynamic.
func (s Shape) Equal(s2 Shape) bool {
	if s.DType != s2.DType {
		return false
	}
	if s.Rank() != s2.Rank() {
		return false
	}
	if s.IsScalar() {
		return true
	}
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// EqualDynamic compares two shapes like Equal, and additionally requires the
// same set of dynamic axes.
func (s Shape) EqualDynamic(s2 Shape) bool {
	return s.Equal(s2) && slices.Equal(s.DynamicAxes, s2.DynamicAxes)
}

// EqualDimensions compares two shapes for equality of dimensions. DTypes can be different.
func (s Shape) EqualDimensions(s2 Shape) bool {
	if s.Rank() != s2.Rank() {
		return false
	}
	if s.IsScalar() {
		return true
	}
	return slices.Equal(s.Dimensions, s2.Dimensions)
}

// Clone returns a new deep copy of the shape.
func (s Shape) Clone() (s2 Shape) {
	s2.DType = s.DType
	s2.Dimensions = slices.Clone(s.Dimensions)
	s2.DynamicAxes = slices.Clone(s.DynamicAxes)
	return
}

// GobSerialize shape in binary format.
func (s Shape) GobSerialize(encoder *gob.Encoder) (err error) {
	enc := func(e any) {
		if err != nil {
			return
		}
		err = encoder.Encode(e)
		if err != nil {
			err = errors.Wrapf(err, "failed to serialize Shape %s", s)
		}
	}
	enc(s.DType)
	enc(s.Dimensions)
	enc(s.DynamicAxes)
	return
}

// GobDeserialize a Shape. Returns new Shape or an error.
func GobDeserialize(decoder *gob.Decoder) (s Shape, err error) {
	dec := func(data any) {
		if err != nil {
			return
		}
		err = decoder.Decode(data)
		if err != nil {
			err = errors.Wrapf(err, "failed to deserialize Shape")
		}
	}
	dec(&s.DType)
	dec(&s.Dimensions)
	dec(&s.DynamicAxes)
	return
}
