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
	"encoding/gob"

	"github.com/gomlx/aotgrad/types/shapes"
	"github.com/pkg/errors"
)

// MetaCacheKey is the serializable portion of a ViewAndMutationMeta: exactly the
// fields its Equal contract compares. Two captures with equal keys may share a
// compiled artifact. Traced tangents are reduced to their shapes, and derived
// counts are omitted, they are recomputed on load.
type MetaCacheKey struct {
	InputInfo  []InputAliasInfo
	OutputInfo []OutputAliasInfo

	NumIntermediateBases int
	KeepInputMutations   bool

	IsRNGOpFunctionalized bool
	NumOutputsRNGOffset   int

	TangentShapes []shapes.Shape
}

// CacheKey extracts the compile-cache key of the metadata record.
func (m *ViewAndMutationMeta) CacheKey() MetaCacheKey {
	return MetaCacheKey{
		InputInfo:             m.InputInfo,
		OutputInfo:            m.OutputInfo,
		NumIntermediateBases:  m.NumIntermediateBases,
		KeepInputMutations:    m.KeepInputMutations,
		IsRNGOpFunctionalized: m.IsRNGOpFunctionalized,
		NumOutputsRNGOffset:   m.NumOutputsRNGOffset,
		TangentShapes:         m.TangentShapes,
	}
}

// Equal compares two cache keys the same way ViewAndMutationMeta.Equal compares
// two records.
func (k MetaCacheKey) Equal(other MetaCacheKey) bool {
	if len(k.InputInfo) != len(other.InputInfo) ||
		len(k.OutputInfo) != len(other.OutputInfo) ||
		k.NumIntermediateBases != other.NumIntermediateBases ||
		k.KeepInputMutations != other.KeepInputMutations ||
		k.IsRNGOpFunctionalized != other.IsRNGOpFunctionalized ||
		k.NumOutputsRNGOffset != other.NumOutputsRNGOffset ||
		len(k.TangentShapes) != len(other.TangentShapes) {
		return false
	}
	for ii, info := range k.InputInfo {
		if info != other.InputInfo[ii] {
			return false
		}
	}
	for ii, info := range k.OutputInfo {
		if !info.Equal(other.OutputInfo[ii]) {
			return false
		}
	}
	for ii, shape := range k.TangentShapes {
		if !shape.Equal(other.TangentShapes[ii]) {
			return false
		}
	}
	return true
}

// GobSerialize the cache key to the encoder.
func (k MetaCacheKey) GobSerialize(encoder *gob.Encoder) error {
	err := encoder.Encode(k)
	if err != nil {
		return errors.Wrapf(err, "failed to serialize MetaCacheKey")
	}
	return nil
}

// GobDeserialize a MetaCacheKey from the decoder. Returns new MetaCacheKey or an
// error.
func GobDeserialize(decoder *gob.Decoder) (k MetaCacheKey, err error) {
	err = decoder.Decode(&k)
	if err != nil {
		err = errors.Wrapf(err, "failed to deserialize MetaCacheKey")
	}
	return
}
