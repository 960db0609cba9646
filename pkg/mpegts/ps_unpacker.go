// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import (
	"bytes"

	"github.com/q191201771/lalcollator/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazabytes"
)

const (
	psStartCodePackEnd      = 0xB9
	psStartCodePackHeader   = 0xBA
	psStartCodeSystemHeader = 0xBB

	psPackHeaderLenMpeg2 = 14
	psPackHeaderLenMpeg1 = 12
)

var startCodePrefix = []byte{0, 0, 1}

// OnPesFn
//
// @param payload: PES payload，回调结束后不再有效
//
type OnPesFn func(pes Pes, payload []byte)

// PsUnpacker 从program stream(比如DVD的VOB文件)或者首尾相接的PES包中拆出PES包
//
// 输入可以任意切分。
//
type PsUnpacker struct {
	buf   *nazabytes.Buffer
	onPes OnPesFn

	streamTypes  map[uint8]uint8 // program stream map中 stream_id -> stream_type
	skippedBytes uint64
}

func NewPsUnpacker() *PsUnpacker {
	return &PsUnpacker{
		buf:         nazabytes.NewBuffer(4096),
		streamTypes: make(map[uint8]uint8),
	}
}

func (p *PsUnpacker) WithCallbackFunc(onPes OnPesFn) *PsUnpacker {
	p.onPes = onPes
	return p
}

// StreamType program stream map中声明的stream_type
func (p *PsUnpacker) StreamType(sid uint8) (uint8, bool) {
	st, ok := p.streamTypes[sid]
	return st, ok
}

func (p *PsUnpacker) SkippedBytes() uint64 {
	return p.skippedBytes
}

// Feed
//
// @param b: 函数调用结束后，内部不持有该内存块
//
func (p *PsUnpacker) Feed(b []byte) {
	p.buf.Write(b)

	// ISO/IEC iso13818-1
	// 2.5.3.3 Pack layer of Program Stream, Table 2-33 - Program Stream pack header
	// 2.5.3.5 System header, Table 2-32
	// 2.5.4 Program Stream map, Table 2-35
	for {
		rb := p.buf.Bytes()
		if len(rb) < 4 {
			return
		}
		if !bytes.HasPrefix(rb, startCodePrefix) {
			p.resync(rb)
			continue
		}

		code := rb[3]
		switch {
		case code == psStartCodePackEnd:
			p.buf.Skip(4)
		case code == psStartCodePackHeader:
			n, ok := packHeaderLength(rb)
			if !ok {
				return
			}
			p.buf.Skip(n)
		case code >= psStartCodeSystemHeader:
			if len(rb) < 6 {
				return
			}
			length := int(bele.BeUint16(rb[4:]))
			if length == 0 {
				// 只有TS中的视频PES才允许不限长度
				base.Log.Warnf("pes packet length is 0 in program stream. sid=0x%02x", code)
				p.skip(4)
				continue
			}
			if len(rb) < 6+length {
				return
			}
			p.handlePacket(code, rb[:6+length])
			p.buf.Skip(6 + length)
		default:
			// 不是pack层的start code，可能是es数据中恰好出现的00 00 01
			p.skip(1)
		}
	}
}

func (p *PsUnpacker) handlePacket(code uint8, pkt []byte) {
	switch code {
	case psStartCodeSystemHeader, StreamIdPaddingStream, StreamIdPrivateStream2:
		return
	case StreamIdProgramStreamMap:
		p.parseProgramStreamMap(pkt)
		return
	}

	pes, err := ParsePes(pkt)
	if err != nil {
		base.Log.Warnf("parse pes failed. sid=0x%02x, len=%d, err=%+v", code, len(pkt), err)
		return
	}
	if p.onPes != nil {
		p.onPes(pes, pkt[pes.HeaderLength:])
	}
}

// packetstartcodeprefix [24b]
// map_stream_id         [8b]
// program_stream_map_length [16b]
// current_next_indicator, reserved, program_stream_map_version, reserved, marker [16b]
// program_stream_info_length [16b]
// ...
// elementary_stream_map_length [16b]
// -----loop-----
// stream_type                  [8b]
// elementary_stream_id         [8b]
// elementary_stream_info_length [16b]
// --------------
// CRC32                        [32b]
func (p *PsUnpacker) parseProgramStreamMap(pkt []byte) {
	i := 8
	if len(pkt) < i+2 {
		return
	}
	i += 2 + int(bele.BeUint16(pkt[i:]))
	if len(pkt) < i+2 {
		return
	}
	esml := int(bele.BeUint16(pkt[i:]))
	i += 2
	end := i + esml
	if end > len(pkt) {
		end = len(pkt)
	}
	for i+4 <= end {
		streamType := pkt[i]
		sid := pkt[i+1]
		esil := int(bele.BeUint16(pkt[i+2:]))
		p.streamTypes[sid] = streamType
		base.Log.Debugf("program stream map. stream_type=0x%02x, stream_id=0x%02x", streamType, sid)
		i += 4 + esil
	}
}

// resync 跳到下一个00 00 01
func (p *PsUnpacker) resync(rb []byte) {
	pos := bytes.Index(rb, startCodePrefix)
	if pos == -1 {
		// 最后两个字节可能是下一个start code的一部分
		pos = len(rb) - 2
	}
	p.skip(pos)
}

func (p *PsUnpacker) skip(n int) {
	p.buf.Skip(n)
	p.skippedBytes += uint64(n)
}

// packHeaderLength
//
// @return ok: false表示需要更多数据
//
func packHeaderLength(rb []byte) (int, bool) {
	if len(rb) < 5 {
		return 0, false
	}
	if rb[4]>>6 != 1 {
		// '0010' MPEG-1
		return psPackHeaderLenMpeg1, len(rb) >= psPackHeaderLenMpeg1
	}
	if len(rb) < psPackHeaderLenMpeg2 {
		return 0, false
	}
	n := psPackHeaderLenMpeg2 + int(rb[13]&0x7)
	return n, len(rb) >= n
}
