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
	"testing"

	"github.com/gomlx/aotgrad/fakes"
	"github.com/gomlx/aotgrad/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyInput(t *testing.T) {
	s := shapes.Make(dtypes.Float32, 3, 4)

	t.Run("not mutated", func(t *testing.T) {
		input := fakes.FromShape(s)
		pre := input.Snapshot()
		info := ClassifyInput(input, pre, false, false)
		assert.Equal(t, MutationTypeNotMutated, info.MutationType)
		assert.False(t, info.MutatesData)
		assert.False(t, info.MutatesMetadata)
		assert.True(t, info.IsLeaf)
		assert.False(t, info.Mutated())
	})

	t.Run("data mutation goes to the epilogue by default", func(t *testing.T) {
		input := fakes.FromShape(s)
		pre := input.Snapshot()
		input.MutateData()
		info := ClassifyInput(input, pre, false, false)
		assert.True(t, info.MutatesData)
		assert.False(t, info.MutatesMetadata)
		assert.Equal(t, MutationTypeMutatedOutGraph, info.MutationType)
		assert.True(t, info.Mutated())
	})

	t.Run("data mutation stays in graph with keepInputMutations", func(t *testing.T) {
		input := fakes.FromShape(s)
		pre := input.Snapshot()
		input.MutateData()
		info := ClassifyInput(input, pre, true, false)
		assert.Equal(t, MutationTypeMutatedInGraph, info.MutationType)
	})

	t.Run("subclass dispatch forces graph mutations out", func(t *testing.T) {
		input := fakes.FromShape(s)
		pre := input.Snapshot()
		input.MutateData()
		info := ClassifyInput(input, pre, true, true)
		assert.Equal(t, MutationTypeMutatedOutGraph, info.MutationType)
	})

	t.Run("metadata mutation never stays in graph", func(t *testing.T) {
		input := fakes.FromShape(s)
		pre := input.Snapshot()
		input.MutateMetadata(shapes.Make(dtypes.Float32, 12))
		info := ClassifyInput(input, pre, true, false)
		assert.False(t, info.MutatesData)
		assert.True(t, info.MutatesMetadata)
		assert.Equal(t, MutationTypeMutatedOutGraph, info.MutationType)
	})

	t.Run("data and metadata mutation", func(t *testing.T) {
		input := fakes.FromShape(s)
		pre := input.Snapshot()
		input.MutateMetadata(shapes.Make(dtypes.Float32, 12))
		input.MutateData()
		info := ClassifyInput(input, pre, true, false)
		assert.True(t, info.MutatesData)
		assert.True(t, info.MutatesMetadata)
		assert.Equal(t, MutationTypeMutatedOutGraph, info.MutationType)
	})

	t.Run("hidden mutation is recorded", func(t *testing.T) {
		input := fakes.FromShape(s)
		pre := input.Snapshot()
		input.MutateDataHiddenFromAutograd()
		info := ClassifyInput(input, pre, false, false)
		assert.True(t, info.MutatesData)
		assert.True(t, info.MutationsHiddenFromAutograd)
	})

	t.Run("mutation through another view of the same storage", func(t *testing.T) {
		input := fakes.FromShape(s)
		view := input.View()
		pre := input.Snapshot()
		view.MutateData()
		info := ClassifyInput(input, pre, false, false)
		assert.True(t, info.MutatesData, "data versioning is per storage, not per view")
	})

	t.Run("requires grad is carried over", func(t *testing.T) {
		input := fakes.FromShape(s).SetRequiresGrad(true)
		pre := input.Snapshot()
		info := ClassifyInput(input, pre, false, false)
		assert.True(t, info.RequiresGrad)
		assert.True(t, info.IsLeaf)
	})
}

func TestOutputClassifier(t *testing.T) {
	s := shapes.Make(dtypes.Float32, 2, 3)
	in0 := fakes.FromShape(s)
	in1 := fakes.FromShape(s)

	t.Run("is input", func(t *testing.T) {
		c := NewOutputClassifier([]*fakes.Tensor{in0, in1}, []any{in1})
		info := c.Classify(in1)
		assert.Equal(t, OutputTypeIsInput, info.OutputType)
		require.NotNil(t, info.BaseIdx)
		assert.Equal(t, 1, *info.BaseIdx)
	})

	t.Run("alias of input", func(t *testing.T) {
		view := in0.View()
		c := NewOutputClassifier([]*fakes.Tensor{in0, in1}, []any{view})
		info := c.Classify(view)
		assert.Equal(t, OutputTypeAliasOfInput, info.OutputType)
		require.NotNil(t, info.BaseIdx)
		assert.Equal(t, 0, *info.BaseIdx)
	})

	t.Run("non alias", func(t *testing.T) {
		out := fakes.NewResult(s, in0)
		c := NewOutputClassifier([]*fakes.Tensor{in0}, []any{out})
		info := c.Classify(out)
		assert.Equal(t, OutputTypeNonAlias, info.OutputType)
		assert.Nil(t, info.BaseIdx)
		assert.False(t, info.HasBase())
	})

	t.Run("unsafe view is a normal output", func(t *testing.T) {
		intermediate := fakes.NewResult(s, in0)
		out := intermediate.ViewUnsafe()
		c := NewOutputClassifier([]*fakes.Tensor{in0}, []any{out})
		info := c.Classify(out)
		assert.Equal(t, OutputTypeUnsafeViewAlias, info.OutputType)
		assert.Nil(t, info.BaseIdx)
		assert.Empty(t, c.IntermediateBases(), "no base tracking for unsafe views")
	})

	t.Run("custom function view is a normal output", func(t *testing.T) {
		intermediate := fakes.NewResult(s, in0)
		out := intermediate.ViewFromCustomFunction()
		c := NewOutputClassifier([]*fakes.Tensor{in0}, []any{out})
		info := c.Classify(out)
		assert.Equal(t, OutputTypeCustomFunctionView, info.OutputType)
		assert.Empty(t, c.IntermediateBases())
	})

	t.Run("views of intermediates share a promoted base", func(t *testing.T) {
		intermediate := fakes.NewResult(s, in0)
		v0 := intermediate.View()
		v1 := intermediate.View()
		c := NewOutputClassifier([]*fakes.Tensor{in0}, []any{v0, v1})

		info0 := c.Classify(v0)
		assert.Equal(t, OutputTypeAliasOfIntermediateSaveAsOutput, info0.OutputType)
		require.NotNil(t, info0.BaseIdx)
		assert.Equal(t, 0, *info0.BaseIdx)

		info1 := c.Classify(v1)
		assert.Equal(t, OutputTypeAliasOfIntermediate, info1.OutputType)
		require.NotNil(t, info1.BaseIdx)
		assert.Equal(t, 0, *info1.BaseIdx)

		require.Len(t, c.IntermediateBases(), 1, "the shared base is promoted once")
		assert.Same(t, intermediate, c.IntermediateBases()[0])
	})

	t.Run("base is itself a user output", func(t *testing.T) {
		base := fakes.NewResult(s, in0)
		view := base.View()
		c := NewOutputClassifier([]*fakes.Tensor{in0}, []any{base, view})

		infoBase := c.Classify(base)
		assert.Equal(t, OutputTypeNonAlias, infoBase.OutputType)

		infoView := c.Classify(view)
		assert.Equal(t, OutputTypeAliasOfIntermediateBaseIsUserOutput, infoView.OutputType)
		require.NotNil(t, infoView.BaseIdx)
		assert.Equal(t, 0, *infoView.BaseIdx, "indexes the user outputs, not the dense inputs")
		assert.Empty(t, c.IntermediateBases())
	})

	t.Run("view of a view aliases the root base", func(t *testing.T) {
		intermediate := fakes.NewResult(s, in0)
		vv := intermediate.View().View()
		c := NewOutputClassifier([]*fakes.Tensor{in0}, []any{vv})
		info := c.Classify(vv)
		assert.Equal(t, OutputTypeAliasOfIntermediateSaveAsOutput, info.OutputType)
		require.Len(t, c.IntermediateBases(), 1)
		assert.Same(t, intermediate, c.IntermediateBases()[0])
	})

	t.Run("dynamic dimensions are recorded", func(t *testing.T) {
		out := fakes.NewResult(shapes.MakeDynamic(dtypes.Float32, []int{5, 3}, 0), in0)
		c := NewOutputClassifier([]*fakes.Tensor{in0}, []any{out})
		info := c.Classify(out)
		assert.Equal(t, []int{0}, info.DynamicDims)
	})
}
