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
	"testing"

	"github.com/gomlx/aotgrad/fakes"
	"github.com/gomlx/aotgrad/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// halvedTensor is a composite with one inner tensor and a divisor as auxiliary state.
type halvedTensor struct {
	inner   *fakes.Tensor
	divisor int
}

func (h *halvedTensor) Flatten() ([]string, []*fakes.Tensor, any) {
	return []string{"inner"}, []*fakes.Tensor{h.inner}, h.divisor
}

func (h *halvedTensor) Unflatten(inner []*fakes.Tensor, meta any) fakes.Subclass {
	return &halvedTensor{inner: inner[0], divisor: meta.(int)}
}

func TestWrap(t *testing.T) {
	s := shapes.Make(dtypes.Float32, 2)
	tensor := fakes.FromShape(s)
	composite := &halvedTensor{inner: tensor, divisor: 2}

	tv, ok := Wrap(tensor).(*TensorVariable)
	require.True(t, ok)
	assert.Same(t, tensor, tv.Tensor)
	assert.Same(t, tensor, tv.Proxy())

	cv, ok := Wrap(composite).(*CompositeVariable)
	require.True(t, ok)
	assert.Same(t, composite, cv.Value)

	constant, ok := Wrap(3.5).(*ConstantVariable)
	require.True(t, ok)
	value, isConst := constant.AsConstant()
	assert.True(t, isConst)
	assert.Equal(t, 3.5, value)

	assert.Same(t, tv, Wrap(tv), "already-boxed variables pass through")
}

func TestVariableAttrs(t *testing.T) {
	s := shapes.Make(dtypes.Float32, 3, 3)
	tensor := fakes.FromShape(s).SetRequiresGrad(true)

	t.Run("tensor attributes", func(t *testing.T) {
		tv := &TensorVariable{Tensor: tensor}
		attr, err := tv.GetAttr("shape")
		require.NoError(t, err)
		shape, _ := attr.(*ConstantVariable).AsConstant()
		assert.True(t, shape.(shapes.Shape).Equal(s))

		attr, err = tv.GetAttr("requires_grad")
		require.NoError(t, err)
		rg, _ := attr.(*ConstantVariable).AsConstant()
		assert.Equal(t, true, rg)

		_, err = tv.GetAttr("grad_fn")
		require.Error(t, err)
	})

	t.Run("composite inner tensors by key", func(t *testing.T) {
		cv := &CompositeVariable{Value: &halvedTensor{inner: tensor, divisor: 2}}
		attr, err := cv.GetAttr("inner")
		require.NoError(t, err)
		assert.Same(t, tensor, attr.(*TensorVariable).Tensor)

		_, err = cv.GetAttr("outer")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `no inner tensor "outer"`)
	})

	t.Run("user objects expose only registered attributes", func(t *testing.T) {
		obj := NewUserObjectVariable(struct{ name string }{"x"}).
			SetAttr("weight", &TensorVariable{Tensor: tensor})
		attr, err := obj.GetAttr("weight")
		require.NoError(t, err)
		assert.Same(t, tensor, attr.(*TensorVariable).Tensor)

		_, err = obj.GetAttr("bias")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot trace through")
	})
}

func TestInliner(t *testing.T) {
	s := shapes.Make(dtypes.Float32, 4)

	t.Run("inlines and caches keyed callables", func(t *testing.T) {
		calls := 0
		fn := &CallableVariable{
			Key: "double",
			Fn: func(inputs []any) []any {
				calls++
				x := inputs[0].(*fakes.Tensor)
				return []any{fakes.NewResult(x.Shape(), x)}
			},
		}
		inliner := NewInliner(0)
		x := fakes.FromShape(s)

		results, err := fn.Call(inliner, []Variable{Wrap(x)})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.IsType(t, &TensorVariable{}, results[0])
		// First call runs the metadata pass plus the inline itself.
		assert.Equal(t, 2, calls)

		meta, found := inliner.Metadata("double")
		require.True(t, found)
		assert.Equal(t, 1, meta.NumOutputs)

		_, err = fn.Call(inliner, []Variable{Wrap(x)})
		require.NoError(t, err)
		assert.Equal(t, 3, calls, "cached key skips the metadata pass")
	})

	t.Run("constant arguments skip the metadata cache", func(t *testing.T) {
		fn := &CallableVariable{
			Key: "scale",
			Fn: func(inputs []any) []any {
				x := inputs[0].(*fakes.Tensor)
				return []any{fakes.NewResult(x.Shape(), x), inputs[1]}
			},
		}
		inliner := NewInliner(0)
		results, err := inliner.Inline(fn, []Variable{Wrap(fakes.FromShape(s)), Wrap(2.0)})
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.IsType(t, &ConstantVariable{}, results[1])
		_, found := inliner.Metadata("scale")
		assert.False(t, found)
	})

	t.Run("depth bound stops recursion", func(t *testing.T) {
		inliner := NewInliner(3)
		var recursive *CallableVariable
		recursive = &CallableVariable{
			Fn: func(inputs []any) []any {
				results, err := inliner.Inline(recursive, WrapAll(inputs))
				if err != nil {
					panic(err)
				}
				return []any{results[0].Proxy()}
			},
		}
		assert.Panics(t, func() {
			_, _ = inliner.Inline(recursive, []Variable{Wrap(fakes.FromShape(s))})
		})
		assert.Equal(t, 0, inliner.Depth(), "depth unwinds after the failed inline")
	})

	t.Run("nested inlining within the bound", func(t *testing.T) {
		inliner := NewInliner(4)
		inner := &CallableVariable{
			Key: "inner",
			Fn: func(inputs []any) []any {
				x := inputs[0].(*fakes.Tensor)
				return []any{fakes.NewResult(x.Shape(), x)}
			},
		}
		outer := &CallableVariable{
			Fn: func(inputs []any) []any {
				results, err := inliner.Inline(inner, WrapAll(inputs))
				if err != nil {
					panic(err)
				}
				return []any{results[0].Proxy()}
			},
		}
		results, err := inliner.Inline(outer, []Variable{Wrap(fakes.FromShape(s))})
		require.NoError(t, err)
		require.Len(t, results, 1)
		_, found := inliner.Metadata("inner")
		assert.True(t, found)
	})
}
