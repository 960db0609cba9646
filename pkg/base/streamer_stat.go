// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"github.com/q191201771/naza/pkg/connection"
	"github.com/q191201771/naza/pkg/nazaatomic"
)

// StatStreamer 一个输入源的统计信息，用于日志
type StatStreamer struct {
	StreamerId string `json:"streamer_id"`
	InputUrl   string `json:"input_url"`
	StartTime  string `json:"start_time"`

	ReadBytesSum  uint64 `json:"read_bytes_sum"`
	WroteBytesSum uint64 `json:"wrote_bytes_sum"`
	FrameCount    uint64 `json:"frame_count"`

	ReadBitrateKbits  int `json:"read_bitrate_kbits"`
	WriteBitrateKbits int `json:"write_bitrate_kbits"`
}

// StreamerStat
//
// 包含两部分功能：
// 1. 维护 StatStreamer 的一些静态信息
// 2. 计算输入、输出的带宽，判断输入是否还活跃
//
// 字节数的累加可以在读协程中进行，其他方法需要在同一个协程中调用
//
type StreamerStat struct {
	stat StatStreamer

	prevConnStat connection.Stat
	staleStat    *connection.Stat

	currConnStat connection.StatAtomic
	frameCount   nazaatomic.Uint64
}

func NewStreamerStat(streamerId string, inputUrl string) *StreamerStat {
	s := &StreamerStat{}
	s.stat.StreamerId = streamerId
	s.stat.InputUrl = inputUrl
	s.stat.StartTime = ReadableNowTime()
	return s
}

func (s *StreamerStat) AddReadBytes(n int) {
	s.currConnStat.ReadBytesSum.Add(uint64(n))
}

func (s *StreamerStat) AddWriteBytes(n int) {
	s.currConnStat.WroteBytesSum.Add(uint64(n))
}

func (s *StreamerStat) AddFrame() {
	s.frameCount.Increment()
}

// UpdateStat 计算两次调用之间的带宽
//
// @param intervalSec: 两次调用之间的间隔，单位秒
//
func (s *StreamerStat) UpdateStat(intervalSec uint32) {
	if intervalSec == 0 {
		return
	}
	readBytesSum := s.currConnStat.ReadBytesSum.Load()
	wroteBytesSum := s.currConnStat.WroteBytesSum.Load()

	rDiff := readBytesSum - s.prevConnStat.ReadBytesSum
	s.stat.ReadBitrateKbits = int(rDiff * 8 / 1000 / uint64(intervalSec))
	wDiff := wroteBytesSum - s.prevConnStat.WroteBytesSum
	s.stat.WriteBitrateKbits = int(wDiff * 8 / 1000 / uint64(intervalSec))

	s.prevConnStat.ReadBytesSum = readBytesSum
	s.prevConnStat.WroteBytesSum = wroteBytesSum
}

func (s *StreamerStat) GetStat() StatStreamer {
	s.stat.ReadBytesSum = s.currConnStat.ReadBytesSum.Load()
	s.stat.WroteBytesSum = s.currConnStat.WroteBytesSum.Load()
	s.stat.FrameCount = s.frameCount.Load()
	return s.stat
}

// IsReadAlive 距离上次调用，是否读取到了新的数据
//
// 第一次调用总是返回true
//
func (s *StreamerStat) IsReadAlive() bool {
	readBytesSum := s.currConnStat.ReadBytesSum.Load()
	if s.staleStat == nil {
		s.staleStat = &connection.Stat{ReadBytesSum: readBytesSum}
		return true
	}
	alive := readBytesSum != s.staleStat.ReadBytesSum
	s.staleStat.ReadBytesSum = readBytesSum
	return alive
}

func (s *StreamerStat) UniqueKey() string {
	return s.stat.StreamerId
}
