// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package collator 压缩音频elementary stream的collator公共部分
//
// collator把任意大小的输入数据切分成一个个完整的逻辑帧(logical frame)，一个逻辑帧可能由多个物理子帧组成，
// 比如DTS-HD的core+extension，E-AC3的independent+dependent。
//
// 单线程同步模型：Push / PushPes 处理完所有可以处理的数据后返回，完整的帧通过 Poll 取出。
package collator

import (
	"fmt"

	"github.com/q191201771/lalcollator/pkg/base"
)

type Collator interface {
	// Reset 重置所有状态，包括 SyncPredictor
	Reset()

	// Push 输入elementary stream数据
	//
	// @param b: 函数调用结束后，内部不持有该内存块
	//
	// @return err: 当前候选帧不可用，collator内部已经回到查找同步字的状态，可以继续输入
	//
	Push(b []byte) error

	// PushPes 输入一个PES包的payload，可能包含DVD风格的PES私有数据区
	//
	PushPes(pes PesPayload) error

	// Flush 输入不连续或者输入结束，把已经累积的帧吐出，并回到查找同步字的状态
	//
	Flush()

	// Poll 取出一个完整的逻辑帧
	//
	Poll() (Frame, bool)

	Stat() Stat
}

// PesPayload 去掉PES头之后的数据
type PesPayload struct {
	// PrivateData private_stream_1 PES payload的前4个字节，可能是DVD的私有数据区，也可能是广播流的es数据
	PrivateData []byte

	Payload []byte

	Pts    uint64
	HasPts bool
}

// ---------------------------------------------------------------------------------------------------------------------

type State int

const (
	StateSeekingSyncWord State = iota
	StateGotSynchronized
	StateSeekingFrameEnd
	StateReadSubFrame
	StateSkipSubFrame
	StateValidateFrame
	StateGotCompleteFrame
)

func (s State) ReadableString() string {
	switch s {
	case StateSeekingSyncWord:
		return "SeekingSyncWord"
	case StateGotSynchronized:
		return "GotSynchronized"
	case StateSeekingFrameEnd:
		return "SeekingFrameEnd"
	case StateReadSubFrame:
		return "ReadSubFrame"
	case StateSkipSubFrame:
		return "SkipSubFrame"
	case StateValidateFrame:
		return "ValidateFrame"
	case StateGotCompleteFrame:
		return "GotCompleteFrame"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ---------------------------------------------------------------------------------------------------------------------

// CoreSubstream DTS-HD中向后兼容的DTS core在逻辑帧中的位置，用于转码成DTS core
type CoreSubstream struct {
	Offset          int
	Size            int
	IsSubStreamCore bool // true表示core位于extension substream内部，false表示独立的core substream
}

// Frame 逻辑帧，交给下游的frame parser/codec
type Frame struct {
	Codec base.AudioCodec

	Payload           []byte
	SampleCount       int
	SamplingFrequency int

	// DataSpecificFlags DTS-HD: collator通过同步字扫描得到的core大小
	DataSpecificFlags int

	// Core 仅DTS-HD
	Core *CoreSubstream

	Pts    uint64
	HasPts bool
}

func (f Frame) Length() int {
	return len(f.Payload)
}

func (f Frame) DebugString() string {
	s := fmt.Sprintf("codec=%s, len=%d, samples=%d, freq=%d, flags=%d, pts=%d(%t)",
		f.Codec.ReadableString(), len(f.Payload), f.SampleCount, f.SamplingFrequency, f.DataSpecificFlags, f.Pts, f.HasPts)
	if f.Core != nil {
		s += fmt.Sprintf(", core=(%d, %d, %t)", f.Core.Offset, f.Core.Size, f.Core.IsSubStreamCore)
	}
	return s
}

// ---------------------------------------------------------------------------------------------------------------------

type Stat struct {
	FrameCount   uint64
	ResyncCount  uint64
	ErrorCount   uint64
	SkippedBytes uint64

	// QueueGrowCount 调用方没有及时 Poll ，输出队列扩容的次数
	QueueGrowCount uint64
}
