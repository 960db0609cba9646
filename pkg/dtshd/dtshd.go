// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package dtshd DTS / DTS-HD 帧头解析以及collator
//
// 一个DTS-HD逻辑帧由若干子帧组成：
//   [core substream] [extension substream 0] [extension substream 1] ...
// core可能不存在(比如DTS Express，只有LBR extension)，也可能是14比特打包格式(常见于wav/cd)。
package dtshd

import (
	"fmt"

	"github.com/q191201771/naza/pkg/bele"
)

// TODO(chef): 支持小端字节序的core同步字 0xFE7F0180

const (
	SyncCore      uint32 = 0x7FFE8001
	SyncCore14    uint32 = 0x1FFFE800 // 14比特打包格式，后面紧跟12比特的0x07F
	SyncSubstream uint32 = 0x64582025

	syncCore14Tail uint16 = 0x07F
	syncXll        uint32 = 0x41A29547
	syncLbr        uint32 = 0x0A801921
)

const (
	// FrameHeaderSize collator在解析子帧头之前至少需要看到的字节数
	FrameHeaderSize = 24

	// SyncWordWindow 判断一个位置是否是同步字需要的字节数，14比特同步字需要6个字节
	SyncWordWindow = 6

	// MaxFrameSize 一个逻辑帧的上限，超过后放弃当前帧重新同步
	MaxFrameSize = 0x20000
)

const (
	coreMinBlocks    = 5
	coreMaxBlocks    = 127
	coreMinFrameSize = 95
	coreMaxFrameSize = 16383

	coreSamplesPerBlock = 32
)

// CoreSubStreamId core子帧的SubStreamId，不会和任何extension的id(0~3)相等
const CoreSubStreamId = -1

// 核心(core)采样率，sfreq为下标，0表示非法
var coreSamplingFrequencyTable = [16]int{
	0, 8000, 16000, 32000, 0, 0, 11025, 22050, 44100, 0, 0, 12000, 24000, 48000, 0, 0,
}

// extension substream中asset的最大采样率，nuMaxSampleRate为下标
var assetSamplingFrequencyTable = [16]int{
	8000, 16000, 32000, 64000, 128000, 22050, 44100, 88200, 176400, 352800, 12000, 24000, 48000, 96000, 192000, 384000,
}

// LBR采样率的频段，LBR采样率代码为下标，一帧的采样数为 1024 << range
var lbrFrequencyRangeTable = [16]uint{0, 1, 2, 3, 4, 1, 2, 3, 4, 4, 0, 1, 2, 3, 4, 4}

// nuRefClockCode为下标，3保留
var referenceClockTable = [4]int{32000, 44100, 48000, 0}

// 扬声器mask中每一位代表的扬声器个数
//   C, L+R, Ls+Rs, LFE1, Cs, Lh+Rh, Lsr+Rsr, Ch, Oh, Lc+Rc, Lw+Rw, Lss+Rss, LFE2, Lhs+Rhs, Chr, Lhr+Rhr
var speakerCountPerMaskBit = [16]int{1, 2, 2, 1, 1, 2, 2, 1, 1, 2, 2, 2, 1, 2, 1, 2}

func numSpeakersOfMask(mask uint32) int {
	n := 0
	for i := 0; i < 16; i++ {
		if mask&(1<<uint(i)) != 0 {
			n += speakerCountPerMaskBit[i]
		}
	}
	return n
}

func popCount(v uint32) int {
	n := 0
	for ; v != 0; v &= v - 1 {
		n++
	}
	return n
}

// ----- 同步字 ---------------------------------------------------------------------------------------------------------

type SyncKind int

const (
	SyncKindNone SyncKind = iota
	SyncKindCore
	SyncKindCore14
	SyncKindSubstream
)

func (k SyncKind) ReadableString() string {
	switch k {
	case SyncKindCore:
		return "core"
	case SyncKindCore14:
		return "core14"
	case SyncKindSubstream:
		return "substream"
	}
	return "none"
}

// MatchSyncWord 判断`b`是否以某个同步字开头，14比特同步字需要`b`至少6个字节
//
func MatchSyncWord(b []byte) SyncKind {
	if len(b) < 4 {
		return SyncKindNone
	}
	switch bele.BeUint32(b) {
	case SyncCore:
		return SyncKindCore
	case SyncSubstream:
		return SyncKindSubstream
	case SyncCore14:
		if len(b) >= SyncWordWindow && bele.BeUint16(b[4:])>>4 == syncCore14Tail {
			return SyncKindCore14
		}
	}
	return SyncKindNone
}

// ----- 子帧头 ---------------------------------------------------------------------------------------------------------

type SubFrameType int

const (
	SubFrameTypeUnknown SubFrameType = iota
	SubFrameTypeCore
	SubFrameTypeExtension
)

func (t SubFrameType) ReadableString() string {
	switch t {
	case SubFrameTypeCore:
		return "core"
	case SubFrameTypeExtension:
		return "extension"
	}
	return "unknown"
}

type ParseMode int

const (
	// ParseModeForSynchro 只解析同步需要的字段：类型，长度，substream id，以及CRC校验
	ParseModeForSynchro ParseMode = iota

	// ParseModeExtended 同时解析asset描述，得到采样率，采样数，core的位置
	ParseModeExtended
)

type SubFrameHeader struct {
	Type        SubFrameType
	SubStreamId int // core为 CoreSubStreamId
	Length      int // 整个子帧的字节数

	SampleCount       int
	SamplingFrequency int

	// core
	Is14Bit       bool
	IsNormalFrame bool
	Blocks        int // NBLKS+1
	HasExtension  bool
	ExtensionType uint8 // EXT_AUDIO_ID

	// extension
	HeaderSize          int
	StaticFieldsPresent bool
	FrameDuration       int // 以参考时钟为单位
	ReferenceClock      int
	NumPresentations    int
	Assets              []Asset
	CrcChecked          bool
}

// Asset extension substream中一个asset的描述
type Asset struct {
	Index  int
	Offset int // asset数据相对子帧起始位置的偏移
	Size   int

	CodingMode          uint8
	CodingComponentMask uint32
	SamplingFrequency   int
	TotalNumChs         int
	BitResolution       int

	// CoreSize 大于0表示asset内嵌了向后兼容的core，位于asset数据的起始位置
	CoreSize    int
	XbrSize     int
	XxchSize    int
	X96Size     int
	LbrSize     int
	XllSize     int
	XllSyncPos  int // XLL同步字相对XLL数据起始位置的偏移
	AuxSize     int
	AuxCodecId  uint8
	SampleCount int
}

func (h SubFrameHeader) DebugString() string {
	if h.Type == SubFrameTypeCore {
		return fmt.Sprintf("core: len=%d, blocks=%d, normal=%t, 14bit=%t, freq=%d, samples=%d, ext=%t(%d)",
			h.Length, h.Blocks, h.IsNormalFrame, h.Is14Bit, h.SamplingFrequency, h.SampleCount, h.HasExtension, h.ExtensionType)
	}
	return fmt.Sprintf("extension: id=%d, len=%d, hdr=%d, crc=%t, assets=%d, freq=%d, samples=%d",
		h.SubStreamId, h.Length, h.HeaderSize, h.CrcChecked, len(h.Assets), h.SamplingFrequency, h.SampleCount)
}
