// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package eac3

import (
	"github.com/q191201771/lalcollator/pkg/base"
	"github.com/q191201771/lalcollator/pkg/bitstream"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// PeekBsid bsid在AC3和E-AC3中的位置相同，都是第40比特开始的5个比特
//
func PeekBsid(b []byte) (uint8, error) {
	if len(b) < MinHeaderSize {
		return 0, base.NewErrShortBuffer(MinHeaderSize, len(b), "eac3 bsid")
	}
	return b[5] >> 3, nil
}

// ParseHeader 解析`b`起始位置的AC3或E-AC3帧头
//
// @param b: 从同步字开始。函数调用结束后，内部不持有该内存块
//
// @param searchConvSync: 为true时遍历E-AC3的BSI查找convsync，数据不够时ConvSync为false，不认为是错误
//
func ParseHeader(b []byte, searchConvSync bool) (FrameHeader, error) {
	var h FrameHeader
	if len(b) < MinHeaderSize {
		return h, base.NewErrShortBuffer(MinHeaderSize, len(b), "eac3 header")
	}
	if bele.BeUint16(b) != SyncWord {
		return h, base.ErrEac3SyncWord
	}

	bsid, _ := PeekBsid(b)
	h.Bsid = bsid
	switch {
	case bsid <= maxAc3Bsid:
		return parseAc3Header(b)
	case bsid > minEac3Bsid && bsid <= maxEac3Bsid:
		return parseEac3Header(b, searchConvSync)
	}

	// 不认识的bsid不作为错误返回，解码器会把这种帧静音。
	// bsid为9和10时按AC3的方式猜测长度，大于16时按E-AC3的方式，猜不出来时DeltaLength为0
	h.Type = FrameTypeInvalidBsid
	h.Blocks = SamplesPerFrame / SamplesPerBlock
	h.SampleCount = SamplesPerFrame
	r := bitstream.NewReader(b)
	if bsid <= minEac3Bsid {
		r.Skip(16 + 16)
		fscod := r.Read(2)
		frmsizecod := r.Read(6)
		h.DeltaLength = ac3FrameSize(fscod, frmsizecod)
		if fscod < 3 {
			h.SamplingFrequency = samplingFrequencyTable[fscod]
		}
	} else {
		r.Skip(16 + 2 + 3)
		h.DeltaLength = int(r.Read(11)+1) * 2
	}
	if err := r.Err(); err != nil {
		return h, nazaerrors.Wrap(err)
	}
	h.Length = h.DeltaLength
	return h, nil
}

// <ATSC A/52, 5.3 syncinfo / bsi>
// -------------------------------
// syncword   [16b]
// crc1       [16b]
// fscod      [2b]
// frmsizecod [6b]
// bsid       [5b]
// bsmod      [3b]
// acmod      [3b]
// ...
// lfeon      [1b]
func parseAc3Header(b []byte) (FrameHeader, error) {
	h := FrameHeader{
		Type:        FrameTypeAc3,
		Blocks:      SamplesPerFrame / SamplesPerBlock,
		SampleCount: SamplesPerFrame,
	}

	r := bitstream.NewReader(b)
	r.Skip(16 + 16)
	fscod := r.Read(2)
	frmsizecod := r.Read(6)
	h.Bsid = uint8(r.Read(5))
	r.Skip(3)
	acmod := r.Read(3)
	if acmod&1 != 0 && acmod != 1 {
		r.Skip(2) // cmixlev
	}
	if acmod&4 != 0 {
		r.Skip(2) // surmixlev
	}
	if acmod == 2 {
		r.Skip(2) // dsurmod
	}
	lfeon := r.Read(1)
	if err := r.Err(); err != nil {
		return h, nazaerrors.Wrap(err)
	}

	if fscod == 3 {
		return h, base.ErrEac3InvalidFrequency
	}
	if frmsizecod > 37 {
		return h, base.ErrEac3InvalidRateCode
	}
	h.SamplingFrequency = samplingFrequencyTable[fscod]
	h.Bitrate = ac3BitrateTable[frmsizecod/2]
	h.Length = ac3FrameSize(fscod, frmsizecod)
	h.Channels = fullBandwidthChannelsTable[acmod] + int(lfeon)
	return h, nil
}

// <ATSC A/52, E.1.2 syncinfo / bsi>
// ---------------------------------
// syncword    [16b]
// strmtyp     [2b]  0 independent, 1 dependent, 2 独立的AC3转换流, 3 保留
// substreamid [3b]
// frmsiz      [11b] 字数 - 1
// fscod       [2b]
// fscod2 / numblkscod [2b]
// acmod       [3b]
// lfeon       [1b]
// bsid        [5b]
// ...
func parseEac3Header(b []byte, searchConvSync bool) (FrameHeader, error) {
	var h FrameHeader

	r := bitstream.NewReader(b)
	r.Skip(16)
	strmtyp := r.Read(2)
	h.SubStreamId = int(r.Read(3))
	h.Length = int(r.Read(11)+1) * 2
	fscod := r.Read(2)
	var numblkscod uint32
	if fscod == 3 {
		fscod2 := r.Read(2)
		if fscod2 == 3 {
			return h, base.ErrEac3InvalidFrequency
		}
		h.SamplingFrequency = reducedSamplingFrequencyTable[fscod2]
		numblkscod = 3
	} else {
		numblkscod = r.Read(2)
		h.SamplingFrequency = samplingFrequencyTable[fscod]
	}
	acmod := r.Read(3)
	lfeon := r.Read(1)
	h.Bsid = uint8(r.Read(5))
	if err := r.Err(); err != nil {
		return h, nazaerrors.Wrap(err)
	}

	switch strmtyp {
	case 0, 2:
		h.Type = FrameTypeIndependent
	case 1:
		h.Type = FrameTypeDependent
	default:
		h.Type = FrameTypeReserved
		return h, base.ErrEac3ReservedStreamType
	}
	if h.Length < MinHeaderSize {
		return h, base.ErrEac3InvalidFrameSize
	}
	h.Blocks = blocksPerFrameTable[numblkscod]
	h.SampleCount = h.Blocks * SamplesPerBlock
	h.Channels = fullBandwidthChannelsTable[acmod] + int(lfeon)

	if !searchConvSync && h.Type != FrameTypeDependent {
		return h, nil
	}

	// 剩余的BSI，数据不够时放弃，不影响帧头本身
	bsi := eac3Bsi{
		strmtyp:    strmtyp,
		numblkscod: numblkscod,
		acmod:      acmod,
		lfeon:      lfeon == 1,
		fscod:      fscod,
	}
	bsi.walk(r)
	if r.Err() == nil {
		h.ConvSync = bsi.convsync
		h.ChannelMap = bsi.chanmap
	}
	return h, nil
}

type eac3Bsi struct {
	strmtyp    uint32
	numblkscod uint32
	acmod      uint32
	lfeon      bool
	fscod      uint32

	chanmap  uint16
	convsync bool
}

// walk 从dialnorm开始，一直读到convsync
//
func (bsi *eac3Bsi) walk(r *bitstream.Reader) {
	r.Skip(5) // dialnorm
	if r.ReadFlag() {
		r.Skip(8) // compr
	}
	if bsi.acmod == 0 {
		r.Skip(5) // dialnorm2
		if r.ReadFlag() {
			r.Skip(8) // compr2
		}
	}
	if bsi.strmtyp == 1 && r.ReadFlag() {
		bsi.chanmap = uint16(r.Read(16))
	}

	// ----- mixing metadata -----
	if r.ReadFlag() {
		if bsi.acmod > 2 {
			r.Skip(2) // dmixmod
		}
		if bsi.acmod&1 != 0 && bsi.acmod > 2 {
			r.Skip(3 + 3) // ltrtcmixlev, lorocmixlev
		}
		if bsi.acmod&4 != 0 {
			r.Skip(3 + 3) // ltrtsurmixlev, lorosurmixlev
		}
		if bsi.lfeon && r.ReadFlag() {
			r.Skip(5) // lfemixlevcod
		}
		if bsi.strmtyp == 0 {
			if r.ReadFlag() {
				r.Skip(6) // pgmscl
			}
			if bsi.acmod == 0 && r.ReadFlag() {
				r.Skip(6) // pgmscl2
			}
			if r.ReadFlag() {
				r.Skip(6) // extpgmscl
			}
			switch r.Read(2) { // mixdef
			case 1:
				r.Skip(1 + 1 + 3)
			case 2:
				r.Skip(12)
			case 3:
				r.Skip(uint(r.Read(5)+2) * 8)
			}
			if bsi.acmod < 2 {
				if r.ReadFlag() {
					r.Skip(8 + 6) // panmean, paninfo
				}
				if bsi.acmod == 0 && r.ReadFlag() {
					r.Skip(8 + 6) // panmean2, paninfo2
				}
			}
			if r.ReadFlag() { // frmmixcfginfoe
				if bsi.numblkscod == 0 {
					r.Skip(5)
				} else {
					for i := 0; i < blocksPerFrameTable[bsi.numblkscod]; i++ {
						if r.ReadFlag() {
							r.Skip(5)
						}
					}
				}
			}
		}
	}

	// ----- informational metadata -----
	if r.ReadFlag() {
		r.Skip(3 + 1 + 1) // bsmod, copyrightb, origbs
		if bsi.acmod == 2 {
			r.Skip(2 + 2) // dsurmod, dheadphonmod
		}
		if bsi.acmod >= 6 {
			r.Skip(2) // dsurexmod
		}
		if r.ReadFlag() {
			r.Skip(5 + 2 + 1) // mixlevel, roomtyp, adconvtyp
		}
		if bsi.acmod == 0 && r.ReadFlag() {
			r.Skip(5 + 2 + 1)
		}
		if bsi.fscod < 3 {
			r.Skip(1) // sourcefscod
		}
	}

	if bsi.strmtyp == 0 && bsi.numblkscod != 3 {
		bsi.convsync = r.ReadFlag()
	}
}
