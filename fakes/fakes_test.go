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
	"testing"

	"github.com/gomlx/aotgrad/types/shapes"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromShape(t *testing.T) {
	a := FromShape(shapes.Make(dtypes.Float32, 2, 3))
	assert.True(t, a.IsLeaf())
	assert.False(t, a.RequiresGrad())
	assert.False(t, a.IsView())
	assert.Nil(t, a.Base())
	assert.NotEqual(t, a.Storage().ID(), FromShape(a.Shape()).Storage().ID())
	require.Panics(t, func() { FromShape(shapes.Invalid()) })
}

func TestNewResult(t *testing.T) {
	a := FromShape(shapes.Make(dtypes.Float32, 2)).SetRequiresGrad(true)
	b := FromShape(shapes.Make(dtypes.Float32, 2))
	c := NewResult(shapes.Make(dtypes.Float32, 2), a, b)
	assert.False(t, c.IsLeaf())
	assert.True(t, c.RequiresGrad())
	assert.False(t, SameStorage(a, c))

	d := NewResult(shapes.Make(dtypes.Float32, 2), b)
	assert.False(t, d.RequiresGrad())
}

func TestViews(t *testing.T) {
	a := FromShape(shapes.Make(dtypes.Float32, 2, 3)).SetRequiresGrad(true)
	v := a.View()
	assert.True(t, v.IsView())
	assert.Same(t, a, v.Base())
	assert.True(t, SameStorage(a, v))
	assert.True(t, v.RequiresGrad())
	assert.False(t, v.IsLeaf(), "view of a differentiable leaf is not a leaf")

	// Views-of-views point at the root of the chain.
	vv := v.ViewWithShape(shapes.Make(dtypes.Float32, 6))
	assert.Same(t, a, vv.Base())

	// A view cannot cover more memory than its storage.
	require.Panics(t, func() { a.ViewWithShape(shapes.Make(dtypes.Float32, 100)) })

	assert.True(t, a.ViewUnsafe().IsUnsafeView())
	assert.True(t, a.ViewFromCustomFunction().IsCustomFunctionView())
}

func TestMutationCounters(t *testing.T) {
	a := FromShape(shapes.Make(dtypes.Float32, 4))
	v := a.View()
	snapshot := a.Snapshot()

	// Data mutation through a view is visible through every alias.
	v.MutateData()
	assert.Equal(t, snapshot.DataVersion+1, a.Storage().DataVersion())
	assert.Equal(t, snapshot.MetaVersion, a.MetaVersion())

	// Metadata mutations stay local to the mutated alias.
	a.MutateMetadata(shapes.Make(dtypes.Float32, 2, 2))
	assert.Equal(t, snapshot.MetaVersion+1, a.MetaVersion())
	assert.Equal(t, 0, v.MetaVersion())
	assert.True(t, a.Shape().Equal(shapes.Make(dtypes.Float32, 2, 2)))

	hidden := FromShape(shapes.Make(dtypes.Float32, 4))
	hidden.MutateDataHiddenFromAutograd()
	assert.True(t, hidden.HasHiddenMutation())
}

func TestCopyDataFrom(t *testing.T) {
	dst := FromShape(shapes.Make(dtypes.Float32, 4))
	src := FromShape(shapes.Make(dtypes.Float32, 2, 2))
	before := dst.Storage().DataVersion()
	dst.CopyDataFrom(src)
	assert.Equal(t, before+1, dst.Storage().DataVersion())

	bad := FromShape(shapes.Make(dtypes.Float32, 3))
	require.Panics(t, func() { dst.CopyDataFrom(bad) })
}

func TestMirrorAutogradMeta(t *testing.T) {
	template := FromShape(shapes.Make(dtypes.Float32, 2)).SetRequiresGrad(true)
	out := NewResult(shapes.Make(dtypes.Float32, 2))
	MirrorAutogradMeta(template, out)
	assert.True(t, out.RequiresGrad())
	assert.True(t, out.IsLeaf())
}

// pairTensor is a minimal composite holding two inner tensors, used across the
// fakes and aot tests.
type pairTensor struct {
	left, right *Tensor
	scale       float64
}

func (p *pairTensor) Flatten() (innerKeys []string, inner []*Tensor, meta any) {
	return []string{"left", "right"}, []*Tensor{p.left, p.right}, p.scale
}

func (p *pairTensor) Unflatten(inner []*Tensor, meta any) Subclass {
	return &pairTensor{left: inner[0], right: inner[1], scale: meta.(float64)}
}

func TestValidateMetadataOnly(t *testing.T) {
	p := &pairTensor{
		left:  FromShape(shapes.Make(dtypes.Float32, 2)),
		right: FromShape(shapes.Make(dtypes.Float32, 2)),
		scale: 2.0,
	}
	require.NotPanics(t, func() { ValidateMetadataOnly(p) })

	broken := &pairTensor{left: p.left, right: nil}
	require.Panics(t, func() { ValidateMetadataOnly(broken) })
}
