// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package collator_test

import (
	"testing"

	"github.com/q191201771/lalcollator/pkg/collator"
	"github.com/q191201771/naza/pkg/assert"
)

func TestSyncPredictorReset(t *testing.T) {
	p := collator.NewSyncPredictor()
	p.MakePrediction(100)
	p.Verify(10)
	p.Reset()
	first := p.DebugString()
	p.Reset()
	assert.Equal(t, first, p.DebugString())
	assert.Equal(t, collator.PredictionInvalid, p.Prediction())
	assert.Equal(t, collator.DefaultRemainingWildcards, p.RemainingWildcards())
	assert.Equal(t, collator.DefaultRemainingMispredictions, p.RemainingMispredictions())
	assert.Equal(t, true, p.PassPesPrivateDataToElementaryStreamHandler())
}

func TestSyncPredictorVerify(t *testing.T) {
	// 私有数据区first_access_unit_pointer=10，同步字在13
	pd, err := collator.ParsePesPrivateData([]byte{0x88, 0x01, 0x00, 0x0A})
	assert.Equal(t, nil, err)
	assert.Equal(t, 13, pd.PredictedSyncOffset(true))

	p := collator.NewSyncPredictor()
	p.MakePrediction(pd.PredictedSyncOffset(true))
	p.Verify(13)
	assert.Equal(t, false, p.PassPesPrivateDataToElementaryStreamHandler())
	assert.Equal(t, collator.PredictionWildcard, p.Prediction())
	assert.Equal(t, collator.DefaultRemainingMispredictions, p.RemainingMispredictions())

	for _, observed := range []int{0, 12, 14, 17} {
		p.Reset()
		p.MakePrediction(pd.PredictedSyncOffset(true))
		p.Verify(observed)
		assert.Equal(t, true, p.PassPesPrivateDataToElementaryStreamHandler())
		assert.Equal(t, collator.DefaultRemainingMispredictions-1, p.RemainingMispredictions())
	}
}

func TestSyncPredictorHysteresis(t *testing.T) {
	p := collator.NewSyncPredictor()
	for i := 0; i < collator.DefaultRemainingMispredictions; i++ {
		p.MakePrediction(20)
		p.Verify(30)
		assert.Equal(t, true, p.PassPesPrivateDataToElementaryStreamHandler())
	}
	assert.Equal(t, 0, p.RemainingMispredictions())

	// 预测失败次数用完，不管传入什么值都强制wildcard
	p.MakePrediction(20)
	assert.Equal(t, collator.PredictionWildcard, p.Prediction())
	assert.Equal(t, false, p.PassPesPrivateDataToElementaryStreamHandler())
	assert.Equal(t, collator.DefaultRemainingMispredictions, p.RemainingMispredictions())
}

func TestSyncPredictorWildcard(t *testing.T) {
	p := collator.NewSyncPredictor()
	p.MakePrediction(collator.PredictionWildcard)
	for i := 0; i < collator.DefaultRemainingWildcards; i++ {
		p.Verify(i)
		assert.Equal(t, true, p.PassPesPrivateDataToElementaryStreamHandler())
	}
	p.Verify(0)
	assert.Equal(t, false, p.PassPesPrivateDataToElementaryStreamHandler())
	assert.Equal(t, collator.DefaultRemainingWildcards, p.RemainingWildcards())

	p.ResetHeuristics()
	assert.Equal(t, false, p.PassPesPrivateDataToElementaryStreamHandler())
}

func TestSyncPredictorAdjust(t *testing.T) {
	p := collator.NewSyncPredictor()
	p.MakePrediction(13)
	p.AdjustAfterConsuming(4)
	assert.Equal(t, 9, p.Prediction())
	p.AdjustAfterConsuming(10)
	assert.Equal(t, collator.PredictionInvalid, p.Prediction())
	p.AdjustAfterConsuming(10)
	assert.Equal(t, collator.PredictionInvalid, p.Prediction())

	// invalid时verify只冻结判断
	p.Verify(5)
	assert.Equal(t, true, p.PassPesPrivateDataToElementaryStreamHandler())
	assert.Equal(t, collator.PredictionWildcard, p.Prediction())
	p.AdjustAfterConsuming(3)
	assert.Equal(t, collator.PredictionWildcard, p.Prediction())
}
