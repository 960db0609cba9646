// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package eac3 AC3 / E-AC3 帧头解析以及collator
//
// 一个E-AC3逻辑帧包含1536个采样(6个audio block)，由目标节目的若干independent帧，
// 以及跟在它们后面的dependent帧组成。AC3帧本身就是一个逻辑帧。
package eac3

import "fmt"

const SyncWord uint16 = 0x0B77

const (
	// SamplesPerFrame 一个逻辑帧的采样数
	SamplesPerFrame = 1536

	// SamplesPerBlock 一个audio block的采样数
	SamplesPerBlock = 256

	// MinHeaderSize 判断帧类型和帧长度至少需要的字节数
	MinHeaderSize = 6

	// MaxHeaderSize 解析BSI(包括查找convsync)最多需要的字节数
	MaxHeaderSize = 128

	// MaxFrameBytes 一个逻辑帧累积的上限，还要加上当前子帧的头部长度
	MaxFrameBytes = 24 * 1024
)

const (
	maxAc3Bsid  = 8
	minEac3Bsid = 10 // 不包含
	maxEac3Bsid = 16
)

// 单位kbps，frmsizecod/2为下标
var ac3BitrateTable = [19]int{32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 448, 512, 576, 640}

// fscod为下标，3保留
var samplingFrequencyTable = [3]int{48000, 44100, 32000}

// fscod2为下标，采样率减半，3保留
var reducedSamplingFrequencyTable = [3]int{24000, 22050, 16000}

// numblkscod为下标
var blocksPerFrameTable = [4]int{1, 2, 3, 6}

// acmod为下标，不包括lfe
var fullBandwidthChannelsTable = [8]int{2, 1, 2, 3, 3, 4, 4, 5}

// ac3FrameSize AC3帧的字节数
//
// @return 0表示fscod或frmsizecod非法
//
func ac3FrameSize(fscod, frmsizecod uint32) int {
	if fscod > 2 || frmsizecod > 37 {
		return 0
	}
	bitrate := ac3BitrateTable[frmsizecod/2]
	switch fscod {
	case 0:
		return bitrate * 4
	case 1:
		// 44.1k时帧长度不是整数个字，frmsizecod的最低位表示是否多一个字
		return (bitrate*96000/44100 + int(frmsizecod&1)) * 2
	default:
		return bitrate * 6
	}
}

// ----- 帧头 -----------------------------------------------------------------------------------------------------------

type FrameType int

const (
	FrameTypeUnknown FrameType = iota
	FrameTypeAc3
	FrameTypeIndependent
	FrameTypeDependent
	FrameTypeInvalidBsid
	FrameTypeReserved
)

func (t FrameType) ReadableString() string {
	switch t {
	case FrameTypeAc3:
		return "ac3"
	case FrameTypeIndependent:
		return "independent"
	case FrameTypeDependent:
		return "dependent"
	case FrameTypeInvalidBsid:
		return "invalidbsid"
	case FrameTypeReserved:
		return "reserved"
	}
	return "unknown"
}

type FrameHeader struct {
	Type        FrameType
	Bsid        uint8
	SubStreamId int // 只有E-AC3有，AC3为0
	Length      int // 整个帧的字节数，也就是到下一个同步字的距离

	SamplingFrequency int
	Blocks            int
	SampleCount       int
	Channels          int // 包括lfe
	Bitrate           int // kbps，只有AC3有

	// ConvSync 是否在BSI中找到了置位的convsync，表示这是一个1536采样边界
	ConvSync bool

	// ChannelMap dependent帧的chanmap，0表示不存在
	ChannelMap uint16

	// DeltaLength 仅FrameTypeInvalidBsid，根据损坏的帧头猜测的帧长度，此时Length与它相同
	DeltaLength int
}

func (h FrameHeader) DebugString() string {
	return fmt.Sprintf("type=%s, bsid=%d, substream=%d, len=%d, freq=%d, blocks=%d, samples=%d, ch=%d, convsync=%t",
		h.Type.ReadableString(), h.Bsid, h.SubStreamId, h.Length, h.SamplingFrequency, h.Blocks, h.SampleCount, h.Channels, h.ConvSync)
}
