// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package eac3_test

import (
	"testing"

	"github.com/q191201771/lalcollator/pkg/base"
	"github.com/q191201771/lalcollator/pkg/eac3"
	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/naza/pkg/nazabits"
)

func newPutter(b []byte) func(n uint, v uint32) {
	bw := nazabits.NewBitWriter(b)
	return func(n uint, v uint32) {
		for n > 16 {
			n -= 16
			bw.WriteBits16(16, uint16(v>>n))
		}
		bw.WriteBits16(n, uint16(v&(1<<n-1)))
	}
}

// makeAc3 acmod为2，没有lfe，帧长度由fscod和frmsizecod决定
func makeAc3(fscod, frmsizecod, bsid uint32, length int) []byte {
	b := make([]byte, length)
	put := newPutter(b)
	put(16, uint32(eac3.SyncWord))
	put(16, 0) // crc1
	put(2, fscod)
	put(6, frmsizecod)
	put(5, bsid)
	put(3, 0) // bsmod
	put(3, 2) // acmod
	put(2, 0) // dsurmod
	put(1, 0) // lfeon
	return b
}

type eac3Opt struct {
	strmtyp     uint32
	substreamid uint32
	length      int
	fscod       uint32
	numblkscod  uint32 // fscod为3时是fscod2
	bsid        uint32
	convsync    bool
}

// makeEac3 acmod为2，没有lfe，没有mixing/informational metadata
func makeEac3(o eac3Opt) []byte {
	if o.bsid == 0 {
		o.bsid = 16
	}
	b := make([]byte, o.length)
	put := newPutter(b)
	put(16, uint32(eac3.SyncWord))
	put(2, o.strmtyp)
	put(3, o.substreamid)
	put(11, uint32(o.length/2-1))
	put(2, o.fscod)
	put(2, o.numblkscod)
	put(3, 2) // acmod
	put(1, 0) // lfeon
	put(5, o.bsid)
	put(5, 27) // dialnorm
	put(1, 0)  // compre
	if o.strmtyp == 1 {
		put(1, 0) // chanmape
	}
	put(1, 0) // mixmdate
	put(1, 0) // infomdate
	if o.strmtyp == 0 && o.numblkscod != 3 && o.fscod != 3 {
		if o.convsync {
			put(1, 1)
		} else {
			put(1, 0)
		}
	}
	return b
}

func TestParseAc3Header(t *testing.T) {
	golden := []struct {
		fscod      uint32
		frmsizecod uint32
		length     int
		freq       int
	}{
		{0, 8, 256, 48000},
		{1, 8, 278, 44100},
		{1, 9, 280, 44100},
		{2, 8, 384, 32000},
		{0, 37, 2560, 48000},
	}
	for _, item := range golden {
		b := makeAc3(item.fscod, item.frmsizecod, 8, item.length)
		h, err := eac3.ParseHeader(b, true)
		assert.Equal(t, nil, err)
		assert.Equal(t, eac3.FrameTypeAc3, h.Type)
		assert.Equal(t, uint8(8), h.Bsid)
		assert.Equal(t, item.length, h.Length)
		assert.Equal(t, item.freq, h.SamplingFrequency)
		assert.Equal(t, eac3.SamplesPerFrame, h.SampleCount)
		assert.Equal(t, 6, h.Blocks)
		assert.Equal(t, 2, h.Channels)
	}

	_, err := eac3.ParseHeader(makeAc3(3, 8, 8, 256), false)
	assert.Equal(t, base.ErrEac3InvalidFrequency, err)
	_, err = eac3.ParseHeader(makeAc3(0, 38, 8, 256), false)
	assert.Equal(t, base.ErrEac3InvalidRateCode, err)
}

func TestParseEac3Header(t *testing.T) {
	b := makeEac3(eac3Opt{strmtyp: 0, substreamid: 0, length: 512, fscod: 0, numblkscod: 3})
	h, err := eac3.ParseHeader(b, true)
	assert.Equal(t, nil, err)
	assert.Equal(t, eac3.FrameTypeIndependent, h.Type)
	assert.Equal(t, uint8(16), h.Bsid)
	assert.Equal(t, 0, h.SubStreamId)
	assert.Equal(t, 512, h.Length)
	assert.Equal(t, 48000, h.SamplingFrequency)
	assert.Equal(t, 6, h.Blocks)
	assert.Equal(t, 1536, h.SampleCount)
	assert.Equal(t, false, h.ConvSync)

	// 1个block，convsync只有在要求时才查找
	b = makeEac3(eac3Opt{strmtyp: 0, substreamid: 0, length: 64, fscod: 1, numblkscod: 0, convsync: true})
	h, err = eac3.ParseHeader(b, false)
	assert.Equal(t, nil, err)
	assert.Equal(t, 256, h.SampleCount)
	assert.Equal(t, 44100, h.SamplingFrequency)
	assert.Equal(t, false, h.ConvSync)
	h, err = eac3.ParseHeader(b, true)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, h.ConvSync)

	// 数据不够时找不到convsync，但不是错误
	h, err = eac3.ParseHeader(b[:eac3.MinHeaderSize], true)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, h.ConvSync)
	assert.Equal(t, 64, h.Length)

	// fscod为3时采样率减半，固定6个block
	b = makeEac3(eac3Opt{strmtyp: 0, substreamid: 0, length: 128, fscod: 3, numblkscod: 1})
	h, err = eac3.ParseHeader(b, true)
	assert.Equal(t, nil, err)
	assert.Equal(t, 22050, h.SamplingFrequency)
	assert.Equal(t, 1536, h.SampleCount)
	b = makeEac3(eac3Opt{strmtyp: 0, substreamid: 0, length: 128, fscod: 3, numblkscod: 3})
	_, err = eac3.ParseHeader(b, true)
	assert.Equal(t, base.ErrEac3InvalidFrequency, err)

	// dependent
	b = makeEac3(eac3Opt{strmtyp: 1, substreamid: 2, length: 256, fscod: 0, numblkscod: 3})
	h, err = eac3.ParseHeader(b, false)
	assert.Equal(t, nil, err)
	assert.Equal(t, eac3.FrameTypeDependent, h.Type)
	assert.Equal(t, 2, h.SubStreamId)
	assert.Equal(t, uint16(0), h.ChannelMap)

	// strmtyp 2 也是independent
	b = makeEac3(eac3Opt{strmtyp: 2, substreamid: 0, length: 256, fscod: 0, numblkscod: 3})
	h, err = eac3.ParseHeader(b, false)
	assert.Equal(t, nil, err)
	assert.Equal(t, eac3.FrameTypeIndependent, h.Type)

	b = makeEac3(eac3Opt{strmtyp: 3, substreamid: 0, length: 256, fscod: 0, numblkscod: 3})
	h, err = eac3.ParseHeader(b, false)
	assert.Equal(t, base.ErrEac3ReservedStreamType, err)
	assert.Equal(t, eac3.FrameTypeReserved, h.Type)
}

func TestParseInvalidBsid(t *testing.T) {
	for _, bsid := range []uint32{9, 10} {
		h, err := eac3.ParseHeader(makeAc3(0, 8, bsid, 256), true)
		assert.Equal(t, nil, err)
		assert.Equal(t, eac3.FrameTypeInvalidBsid, h.Type)
		assert.Equal(t, uint8(bsid), h.Bsid)
		assert.Equal(t, 256, h.DeltaLength)
		assert.Equal(t, 256, h.Length)
		assert.Equal(t, 1536, h.SampleCount)
	}

	b := makeEac3(eac3Opt{strmtyp: 0, substreamid: 0, length: 300, fscod: 0, numblkscod: 3, bsid: 20})
	h, err := eac3.ParseHeader(b, true)
	assert.Equal(t, nil, err)
	assert.Equal(t, eac3.FrameTypeInvalidBsid, h.Type)
	assert.Equal(t, 300, h.DeltaLength)

	// 猜不出长度
	h, err = eac3.ParseHeader(makeAc3(0, 40, 9, 256), true)
	assert.Equal(t, nil, err)
	assert.Equal(t, eac3.FrameTypeInvalidBsid, h.Type)
	assert.Equal(t, 0, h.DeltaLength)
}

func TestParseHeaderSyncWord(t *testing.T) {
	b := makeAc3(0, 8, 8, 256)
	_, err := eac3.ParseHeader(b[:eac3.MinHeaderSize-1], false)
	assert.IsNotNil(t, err)

	// 同步字任意一个比特出错都不能被识别
	for i := 0; i < 16; i++ {
		c := append([]byte(nil), b...)
		c[i/8] ^= 0x80 >> uint(i%8)
		_, err = eac3.ParseHeader(c, false)
		assert.Equal(t, base.ErrEac3SyncWord, err)
	}

	bsid, err := eac3.PeekBsid(makeEac3(eac3Opt{length: 64, numblkscod: 3}))
	assert.Equal(t, nil, err)
	assert.Equal(t, uint8(16), bsid)
}
