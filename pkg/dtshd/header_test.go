// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package dtshd_test

import (
	"errors"
	"testing"

	"github.com/q191201771/lalcollator/pkg/base"
	"github.com/q191201771/lalcollator/pkg/dtshd"
	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazabits"
)

// newPutter 往`b`中按大端依次写入任意宽度(<=32)的字段
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

// makeCore 构造一个长度为fsize+1的core子帧，头部之后全部是0
func makeCore(fsize, nblks, sfreq uint32) []byte {
	b := make([]byte, fsize+1)
	put := newPutter(b)
	put(32, dtshd.SyncCore)
	put(1, 1)  // FTYPE
	put(5, 31) // SHORT
	put(1, 0)  // CPF
	put(7, nblks)
	put(14, fsize)
	put(6, 9) // AMODE
	put(4, sfreq)
	put(5, 15) // RATE
	put(1, 0)
	put(4, 0)
	put(3, 2) // EXT_AUDIO_ID
	put(1, 1) // EXT_AUDIO
	return b
}

const (
	extHeaderSize = 24
	extAssetSize  = 100
	extLength     = extHeaderSize + extAssetSize
)

// makeExtension 构造一个extension substream：static fields，1个XLL asset，96k，参考时钟48k，帧时长1024
func makeExtension(ssIndex uint32) []byte {
	b := make([]byte, extLength)
	put := newPutter(b)
	put(32, dtshd.SyncSubstream)
	put(8, 0)
	put(2, ssIndex)
	put(1, 0)
	put(8, extHeaderSize-1)
	put(16, extLength-1)

	put(1, 1) // bStaticFieldsPresent
	put(2, 2) // nuRefClockCode 48000
	put(3, 1) // nuExSSFrameDurationCode 1024
	put(1, 0) // bTimeStampFlag
	put(3, 0) // nuNumAudioPresnt-1
	put(3, 0) // nuNumAssets-1
	put(uint(ssIndex)+1, 1<<ssIndex)
	put(8, 1) // nuActiveAssetMask
	put(1, 0) // bMixMetadataEnbl
	put(16, extAssetSize-1)

	// asset descriptor，57比特，按8字节计
	put(9, 8-1)
	put(3, 0)
	put(1, 0)  // bAssetTypeDescrPresent
	put(1, 0)  // bLanguageDescrPresent
	put(1, 0)  // bInfoTextPresent
	put(5, 23) // nuBitResolution-1
	put(4, 13) // nuMaxSampleRate 96000
	put(8, 1)  // nuTotalNumChs-1
	put(1, 0)  // bOne2OneMapChannels2Speakers
	put(3, 0)  // nuRepresentationType
	put(1, 0)  // bDRCCoefPresent
	put(1, 0)  // bDialNormPresent
	put(2, 1)  // nuCodingMode lossless
	put(16, extAssetSize-1)
	put(1, 0) // bExSSXLLSyncPresent

	crc := dtshd.CalcCrc16(b[5 : extHeaderSize-2])
	bele.BePutUint16(b[extHeaderSize-2:], crc)
	return b
}

func TestMatchSyncWord(t *testing.T) {
	assert.Equal(t, dtshd.SyncKindCore, dtshd.MatchSyncWord([]byte{0x7F, 0xFE, 0x80, 0x01}))
	assert.Equal(t, dtshd.SyncKindSubstream, dtshd.MatchSyncWord([]byte{0x64, 0x58, 0x20, 0x25}))
	assert.Equal(t, dtshd.SyncKindCore14, dtshd.MatchSyncWord([]byte{0x1F, 0xFF, 0xE8, 0x00, 0x07, 0xF1}))
	// 14比特同步字后面的12比特不对
	assert.Equal(t, dtshd.SyncKindNone, dtshd.MatchSyncWord([]byte{0x1F, 0xFF, 0xE8, 0x00, 0x07, 0xE1}))
	// 14比特同步字需要6个字节才能判断
	assert.Equal(t, dtshd.SyncKindNone, dtshd.MatchSyncWord([]byte{0x1F, 0xFF, 0xE8, 0x00}))
	assert.Equal(t, dtshd.SyncKindNone, dtshd.MatchSyncWord([]byte{0x7F, 0xFE, 0x80, 0x02}))
	assert.Equal(t, dtshd.SyncKindNone, dtshd.MatchSyncWord([]byte{0x7F, 0xFE}))
}

func TestMatchSyncWordBitFlip(t *testing.T) {
	golden := []struct {
		kind dtshd.SyncKind
		b    []byte
		bits int // 同步字占用的比特数
	}{
		{dtshd.SyncKindCore, []byte{0x7F, 0xFE, 0x80, 0x01, 0x00, 0x00}, 32},
		{dtshd.SyncKindSubstream, []byte{0x64, 0x58, 0x20, 0x25, 0x00, 0x00}, 32},
		{dtshd.SyncKindCore14, []byte{0x1F, 0xFF, 0xE8, 0x00, 0x07, 0xF1}, 44},
	}
	for _, item := range golden {
		assert.Equal(t, item.kind, dtshd.MatchSyncWord(item.b))
		// 同步字任意一个比特出错都不能被识别
		for i := 0; i < item.bits; i++ {
			c := append([]byte(nil), item.b...)
			c[i/8] ^= 0x80 >> uint(i%8)
			assert.Equal(t, dtshd.SyncKindNone, dtshd.MatchSyncWord(c), item.kind.ReadableString())
		}
		// 同步字之后的比特不影响判断
		for i := item.bits; i < len(item.b)*8; i++ {
			c := append([]byte(nil), item.b...)
			c[i/8] ^= 0x80 >> uint(i%8)
			assert.Equal(t, item.kind, dtshd.MatchSyncWord(c), item.kind.ReadableString())
		}
	}
}

func TestCalcCrc16(t *testing.T) {
	// CRC-16/CCITT-FALSE 标准校验值
	assert.Equal(t, uint16(0x29B1), dtshd.CalcCrc16([]byte("123456789")))
	assert.Equal(t, uint16(0xFFFF), dtshd.CalcCrc16(nil))
}

func TestParseCoreHeader(t *testing.T) {
	b := makeCore(100, 7, 13)
	h, err := dtshd.ParseSubFrameHeader(b, dtshd.ParseModeForSynchro)
	assert.Equal(t, nil, err)
	assert.Equal(t, dtshd.SubFrameTypeCore, h.Type)
	assert.Equal(t, dtshd.CoreSubStreamId, h.SubStreamId)
	assert.Equal(t, 101, h.Length)
	assert.Equal(t, 8, h.Blocks)
	assert.Equal(t, 256, h.SampleCount)
	assert.Equal(t, 48000, h.SamplingFrequency)
	assert.Equal(t, true, h.IsNormalFrame)
	assert.Equal(t, true, h.HasExtension)
	assert.Equal(t, uint8(2), h.ExtensionType)

	h, err = dtshd.ParseSubFrameHeader(makeCore(2012, 15, 8), dtshd.ParseModeExtended)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2013, h.Length)
	assert.Equal(t, 512, h.SampleCount)
	assert.Equal(t, 44100, h.SamplingFrequency)
}

func TestParseCoreHeaderInvalid(t *testing.T) {
	var err error
	// NBLKS不在[5, 127]
	_, err = dtshd.ParseSubFrameHeader(makeCore(100, 4, 13), dtshd.ParseModeForSynchro)
	assert.Equal(t, true, errors.Is(err, base.ErrDtshdInvalidCoreHeader))
	// normal frame的NBLKS必须是2^n-1
	_, err = dtshd.ParseSubFrameHeader(makeCore(100, 8, 13), dtshd.ParseModeForSynchro)
	assert.Equal(t, true, errors.Is(err, base.ErrDtshdInvalidCoreHeader))
	// FSIZE太小
	_, err = dtshd.ParseSubFrameHeader(makeCore(94, 7, 13), dtshd.ParseModeForSynchro)
	assert.Equal(t, true, errors.Is(err, base.ErrDtshdInvalidCoreHeader))
	// 采样率下标对应0
	_, err = dtshd.ParseSubFrameHeader(makeCore(100, 7, 4), dtshd.ParseModeForSynchro)
	assert.Equal(t, true, errors.Is(err, base.ErrDtshdInvalidCoreHeader))
	// 不认识的同步字
	b := makeCore(100, 7, 13)
	b[3] = 0x02
	_, err = dtshd.ParseSubFrameHeader(b, dtshd.ParseModeForSynchro)
	assert.Equal(t, true, errors.Is(err, base.ErrDtshdUnknownSyncWord))
}

func TestParseCore14Header(t *testing.T) {
	core := makeCore(100, 7, 13)

	// 每14比特放进一个16比特字的低位，高2比特是符号扩展
	words := (len(core)*8 + 13) / 14
	packed := make([]byte, words*2)
	r := nazabits.NewBitReader(core)
	for i := 0; i < words; i++ {
		v, _ := r.ReadBits16(14)
		if v&0x2000 != 0 {
			v |= 0xC000
		}
		bele.BePutUint16(packed[i*2:], v)
	}
	assert.Equal(t, dtshd.SyncKindCore14, dtshd.MatchSyncWord(packed))

	h, err := dtshd.ParseSubFrameHeader(packed, dtshd.ParseModeForSynchro)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, h.Is14Bit)
	assert.Equal(t, 101*16/14, h.Length)
	assert.Equal(t, 256, h.SampleCount)
	assert.Equal(t, 48000, h.SamplingFrequency)
}

func TestParseSubstreamHeader(t *testing.T) {
	b := makeExtension(0)

	h, err := dtshd.ParseSubFrameHeader(b, dtshd.ParseModeForSynchro)
	assert.Equal(t, nil, err)
	assert.Equal(t, dtshd.SubFrameTypeExtension, h.Type)
	assert.Equal(t, 0, h.SubStreamId)
	assert.Equal(t, extHeaderSize, h.HeaderSize)
	assert.Equal(t, extLength, h.Length)
	assert.Equal(t, true, h.CrcChecked)
	assert.Equal(t, 0, len(h.Assets))

	// 头部不完整时不做CRC校验
	h, err = dtshd.ParseSubFrameHeader(b[:16], dtshd.ParseModeForSynchro)
	assert.Equal(t, nil, err)
	assert.Equal(t, false, h.CrcChecked)
	assert.Equal(t, extLength, h.Length)

	h, err = dtshd.ParseSubFrameHeader(b, dtshd.ParseModeExtended)
	assert.Equal(t, nil, err)
	assert.Equal(t, true, h.StaticFieldsPresent)
	assert.Equal(t, 48000, h.ReferenceClock)
	assert.Equal(t, 1024, h.FrameDuration)
	assert.Equal(t, 1, len(h.Assets))
	a := h.Assets[0]
	assert.Equal(t, extHeaderSize, a.Offset)
	assert.Equal(t, extAssetSize, a.Size)
	assert.Equal(t, dtshd.CodingModeLossless, a.CodingMode)
	assert.Equal(t, dtshd.ExtensionMaskXll, a.CodingComponentMask)
	assert.Equal(t, extAssetSize, a.XllSize)
	assert.Equal(t, 96000, a.SamplingFrequency)
	assert.Equal(t, 2, a.TotalNumChs)
	assert.Equal(t, 24, a.BitResolution)
	assert.Equal(t, 2048, a.SampleCount)
	assert.Equal(t, 96000, h.SamplingFrequency)
	assert.Equal(t, 2048, h.SampleCount)

	h, err = dtshd.ParseSubFrameHeader(makeExtension(2), dtshd.ParseModeForSynchro)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, h.SubStreamId)
}

func TestParseSubstreamHeaderCrc(t *testing.T) {
	b := makeExtension(0)
	// CRC覆盖范围内任意一个比特翻转都会被发现
	for i := 5; i < extHeaderSize-2; i++ {
		for bit := uint(0); bit < 8; bit++ {
			c := append([]byte(nil), b...)
			c[i] ^= 1 << bit
			h, err := dtshd.ParseSubFrameHeader(c, dtshd.ParseModeForSynchro)
			if err == nil && !h.CrcChecked {
				// 头部大小字段被改大，超出了输入数据，无法校验
				continue
			}
			if !errors.Is(err, base.ErrDtshdCrcMismatch) && !errors.Is(err, base.ErrDtshdInvalidSubstream) {
				t.Fatalf("bit flip not detected. byte=%d, bit=%d, err=%+v", i, bit, err)
			}
		}
	}

	// user defined bits不在CRC覆盖范围内
	c := append([]byte(nil), b...)
	c[4] = 0xAB
	_, err := dtshd.ParseSubFrameHeader(c, dtshd.ParseModeForSynchro)
	assert.Equal(t, nil, err)

	// 扩展模式下头部必须完整
	_, err = dtshd.ParseSubFrameHeader(b[:16], dtshd.ParseModeExtended)
	assert.Equal(t, true, errors.Is(err, base.ErrShortBuffer))
}
