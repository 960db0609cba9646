// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import "github.com/q191201771/naza/pkg/bele"

const maxPesPacketLength = 0xFFFF

// PackPes 把一个逻辑帧打包成PES包
//
// 帧的长度超过PES_packet_length的表示范围时拆成多个PES包，只有第一个带PTS并设置data_alignment_indicator
//
// @param payload: 函数调用结束后，内部不持有该内存块
//
func PackPes(sid uint8, payload []byte, pts uint64, hasPts bool) []byte {
	var out []byte
	first := true
	for first || len(payload) > 0 {
		phdl := 0
		flags1 := uint8(0x80) // '10'
		flags2 := uint8(0)
		if first {
			flags1 |= 0x04
			if hasPts {
				flags2 = 0x80
				phdl = 5
			}
		}

		n := maxPesPacketLength - 3 - phdl
		if n > len(payload) {
			n = len(payload)
		}

		header := make([]byte, pesFixedHeaderSize+phdl)
		header[2] = 1
		header[3] = sid
		bele.BePutUint16(header[4:], uint16(3+phdl+n))
		header[6] = flags1
		header[7] = flags2
		header[8] = uint8(phdl)
		if phdl != 0 {
			packPts(header[9:], 0x2, pts)
		}
		out = append(out, header...)
		out = append(out, payload[:n]...)
		payload = payload[n:]
		first = false
	}
	return out
}

// packPts
//
// @param fb: PTS_DTS_flags为'10'时的PTS前缀为2，'11'时PTS为3、DTS为1
//
func packPts(out []byte, fb uint8, pts uint64) {
	var val uint64
	out[0] = (fb << 4) | (uint8(pts>>30)&0x07)<<1 | 1

	val = (((pts >> 15) & 0x7FFF) << 1) | 1
	out[1] = uint8(val >> 8)
	out[2] = uint8(val)

	val = ((pts & 0x7FFF) << 1) | 1
	out[3] = uint8(val >> 8)
	out[4] = uint8(val)
}
