// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"github.com/q191201771/lalcollator/pkg/base"
	"github.com/q191201771/lalcollator/pkg/collator"
	"github.com/q191201771/naza/pkg/nazabits"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

const (
	StreamIdProgramStreamMap = 0xBC
	StreamIdPrivateStream1   = 0xBD
	StreamIdPaddingStream    = 0xBE
	StreamIdPrivateStream2   = 0xBF
	StreamIdAudioMin         = 0xC0
	StreamIdAudioMax         = 0xDF
	StreamIdExtended         = 0xFD // DTS-HD / E-AC3 in Blu-ray TS

	pesFixedHeaderSize = 9
)

// -----------------------------------------------------------
// <iso13818-1.pdf>
// <2.4.3.6 PES packet> <page 49/174>
// packet_start_code_prefix  [24b] *** always 0x00, 0x00, 0x01
// stream_id                 [8b]  *
// PES_packet_length         [16b] **
// '10'                      [2b]
// PES_scrambling_control    [2b]
// PES_priority              [1b]
// data_alignment_indicator  [1b]
// copyright                 [1b]
// original_or_copy          [1b]  *
// PTS_DTS_flags             [2b]
// ESCR_flag                 [1b]
// ES_rate_flag              [1b]
// DSM_trick_mode_flag       [1b]
// additional_copy_info_flag [1b]
// PES_CRC_flag              [1b]
// PES_extension_flag        [1b]  *
// PES_header_data_length    [8b]  *
// -----------------------------------------------------------
type Pes struct {
	StreamId      uint8
	PacketLength  uint16 // 0表示不限长度，只在TS中出现
	DataAlignment bool
	HasPts        bool
	HasDts        bool
	Pts           uint64
	Dts           uint64

	HeaderLength int // 包括9字节的固定部分
}

// HasOptionalHeader padding_stream, private_stream_2等没有可选头
func HasOptionalHeader(sid uint8) bool {
	switch sid {
	case StreamIdProgramStreamMap, StreamIdPaddingStream, StreamIdPrivateStream2, 0xF0, 0xF1, 0xF2, 0xF8, 0xFF:
		return false
	}
	return true
}

// ParsePes 解析PES头
//
// @param b: 从packet_start_code_prefix开始。函数调用结束后，内部不持有该内存块
//
// @return pes.HeaderLength: payload在`b`中的起始位置
//
func ParsePes(b []byte) (pes Pes, err error) {
	if len(b) < 6 {
		return pes, base.NewErrShortBuffer(6, len(b), "pes header")
	}
	if b[0] != 0 || b[1] != 0 || b[2] != 1 {
		return pes, base.ErrMpegtsPesStartCode
	}

	br := nazabits.NewBitReader(b[3:])
	pes.StreamId, _ = br.ReadBits8(8)
	pes.PacketLength, _ = br.ReadBits16(16)
	pes.HeaderLength = 6
	if !HasOptionalHeader(pes.StreamId) {
		return pes, nil
	}

	if len(b) < pesFixedHeaderSize {
		return pes, base.NewErrShortBuffer(pesFixedHeaderSize, len(b), "pes optional header")
	}
	marker, _ := br.ReadBits8(2)
	if marker != 2 {
		// MPEG-1 风格的PES头，当前不支持
		return pes, base.ErrMpegtsPesMarker
	}
	_, _ = br.ReadBits8(3)
	da, _ := br.ReadBits8(1)
	pes.DataAlignment = da == 1
	_, _ = br.ReadBits8(2)
	ptsDtsFlag, _ := br.ReadBits8(2)
	_, _ = br.ReadBits8(6)
	phdl, err := br.ReadBits8(8)
	if err != nil {
		return pes, nazaerrors.Wrap(err)
	}
	pes.HeaderLength = pesFixedHeaderSize + int(phdl)
	if len(b) < pes.HeaderLength {
		return pes, base.NewErrShortBuffer(pes.HeaderLength, len(b), "pes header data")
	}

	pes.HasPts = ptsDtsFlag&0x2 != 0
	pes.HasDts = ptsDtsFlag == 0x3
	if pes.HasPts {
		if phdl < 5 {
			return pes, base.ErrMpegtsPesHeaderLength
		}
		pes.Pts = readPts(b[9:])
	}
	if pes.HasDts {
		if phdl < 10 {
			return pes, base.ErrMpegtsPesHeaderLength
		}
		pes.Dts = readPts(b[14:])
	} else {
		pes.Dts = pes.Pts
	}
	return pes, nil
}

// read pts or dts
func readPts(b []byte) (pts uint64) {
	pts |= uint64((b[0]>>1)&0x07) << 30
	pts |= (uint64(b[1])<<8 | uint64(b[2])) >> 1 << 15
	pts |= (uint64(b[3])<<8 | uint64(b[4])) >> 1
	return
}

// ToCollatorPayload 把PES payload交给collator
//
// private_stream_1的前4个字节可能是DVD的私有数据区，由collator判断
//
func (pes Pes) ToCollatorPayload(payload []byte) collator.PesPayload {
	out := collator.PesPayload{
		Payload: payload,
		Pts:     pes.Pts,
		HasPts:  pes.HasPts,
	}
	if pes.StreamId == StreamIdPrivateStream1 && len(payload) >= collator.PesPrivateDataLength {
		out.PrivateData = payload[:collator.PesPrivateDataLength]
		out.Payload = payload[collator.PesPrivateDataLength:]
	}
	return out
}
