// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package collator

import "fmt"

// SyncPredictor DVD风格PES流的启发式判断
//
// DVD的private_stream_1在PES payload前有4字节的私有数据区(sub_stream_id, number_of_frame_headers,
// first_access_unit_pointer)，而广播流没有，这4个字节就是es数据。私有数据区只有大概10个固定比特，
// 无法仅靠查看内容区分两种流，所以用"预测下一个同步字位置 -> 找到同步字后验证"的方式自我纠正，
// 结果体现在 PassPesPrivateDataToElementaryStreamHandler 上。
//
// 预测值是相对于collator缓存当前读取位置的字节偏移。
//
type SyncPredictor struct {
	prediction int

	remainingWildcards      int
	remainingMispredictions int

	passPesPrivateData bool
}

const (
	PredictionWildcard = -1 // 不改变当前的判断
	PredictionInvalid  = -2 // 没有预测

	DefaultRemainingWildcards      = 2
	DefaultRemainingMispredictions = 3
)

func NewSyncPredictor() *SyncPredictor {
	p := &SyncPredictor{}
	p.Reset()
	return p
}

// Reset collator Reset 时调用
func (p *SyncPredictor) Reset() {
	p.prediction = PredictionInvalid
	p.passPesPrivateData = true
	p.ResetHeuristics()
}

// ResetHeuristics collator重新完全同步（成功吐出一个完整帧）时调用
func (p *SyncPredictor) ResetHeuristics() {
	p.remainingWildcards = DefaultRemainingWildcards
	p.remainingMispredictions = DefaultRemainingMispredictions
}

// MakePrediction 记录下一个同步字的预测位置
//
// 如果连续预测失败的次数已经用完，则强制使用 PredictionWildcard ，并且不再把私有数据区当作es数据
//
func (p *SyncPredictor) MakePrediction(value int) {
	if p.remainingMispredictions <= 0 {
		p.prediction = PredictionWildcard
		p.passPesPrivateData = false
		p.remainingMispredictions = DefaultRemainingMispredictions
		return
	}
	p.prediction = value
}

// AdjustAfterConsuming 消费了`n`字节后，预测位置前移
//
func (p *SyncPredictor) AdjustAfterConsuming(n int) {
	if p.prediction < 0 {
		return
	}
	p.prediction -= n
	if p.prediction < 0 {
		p.prediction = PredictionInvalid
	}
}

// Verify 在`observed`位置找到了同步字
//
func (p *SyncPredictor) Verify(observed int) {
	if p.prediction == PredictionWildcard {
		p.remainingWildcards--
		if p.remainingWildcards < 0 {
			p.passPesPrivateData = !p.passPesPrivateData
			p.remainingWildcards = DefaultRemainingWildcards
		}
		return
	}

	if p.prediction != PredictionInvalid {
		mispredicted := p.prediction != observed
		p.passPesPrivateData = mispredicted
		if mispredicted && p.remainingMispredictions > 0 {
			p.remainingMispredictions--
		}
	}

	// 冻结判断，直到下一次检查私有数据区
	p.prediction = PredictionWildcard
}

// PassPesPrivateDataToElementaryStreamHandler true表示私有数据区按es数据处理（广播流）
func (p *SyncPredictor) PassPesPrivateDataToElementaryStreamHandler() bool {
	return p.passPesPrivateData
}

func (p *SyncPredictor) Prediction() int {
	return p.prediction
}

func (p *SyncPredictor) RemainingWildcards() int {
	return p.remainingWildcards
}

func (p *SyncPredictor) RemainingMispredictions() int {
	return p.remainingMispredictions
}

func (p *SyncPredictor) DebugString() string {
	return fmt.Sprintf("prediction=%d, wildcards=%d, mispredictions=%d, pass=%t",
		p.prediction, p.remainingWildcards, p.remainingMispredictions, p.passPesPrivateData)
}
