// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package dtshd

import (
	"github.com/q191201771/lalcollator/pkg/base"
	"github.com/q191201771/lalcollator/pkg/bitstream"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazabits"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// ParseSubFrameHeader 解析`b`起始位置的子帧头
//
// @param b: 从同步字开始。函数调用结束后，内部不持有该内存块
//
// @param mode: ParseModeForSynchro 时，如果`b`包含整个extension substream头，会做CRC校验；
//              ParseModeExtended 时，`b`必须包含整个extension substream头
//
func ParseSubFrameHeader(b []byte, mode ParseMode) (SubFrameHeader, error) {
	switch MatchSyncWord(b) {
	case SyncKindCore:
		return parseCoreHeader(b, false)
	case SyncKindCore14:
		return parseCoreHeader(unpack14(b), true)
	case SyncKindSubstream:
		return parseSubstreamHeader(b, mode)
	}
	if len(b) < SyncWordWindow {
		return SubFrameHeader{}, base.NewErrShortBuffer(SyncWordWindow, len(b), "dtshd sync word")
	}
	return SubFrameHeader{}, base.ErrDtshdUnknownSyncWord
}

// ----- core ----------------------------------------------------------------------------------------------------------

// <ETSI TS 102 114, 5.3.1 Bit stream header>
// ------------------------------------------
// SYNC        [32b]
// FTYPE       [1b]  1 normal frame
// SHORT       [5b]  deficit sample count
// CPF         [1b]  crc present
// NBLKS       [7b]  pcm sample blocks - 1
// FSIZE       [14b] primary frame byte size - 1
// AMODE       [6b]
// SFREQ       [4b]
// RATE        [5b]
// FixedBit    [1b]
// DYNF TIMEF AUXF HDCD [4b]
// EXT_AUDIO_ID [3b]
// EXT_AUDIO    [1b]
// ...
func parseCoreHeader(b []byte, is14Bit bool) (SubFrameHeader, error) {
	h := SubFrameHeader{
		Type:        SubFrameTypeCore,
		SubStreamId: CoreSubStreamId,
		Is14Bit:     is14Bit,
	}

	r := bitstream.NewReader(b)
	r.Skip(32)
	h.IsNormalFrame = r.ReadFlag()
	r.Skip(5 + 1)
	nblks := r.Read(7)
	fsize := r.Read(14)
	r.Skip(6)
	sfreq := r.Read(4)
	r.Skip(5 + 1 + 4)
	h.ExtensionType = uint8(r.Read(3))
	h.HasExtension = r.ReadFlag()
	if err := r.Err(); err != nil {
		return h, nazaerrors.Wrap(err)
	}

	if nblks < coreMinBlocks || nblks > coreMaxBlocks {
		return h, base.NewErrDtshdInvalidCoreHeader("nblks", nblks)
	}
	if h.IsNormalFrame {
		switch nblks {
		case 7, 15, 31, 63, 127:
		default:
			return h, base.NewErrDtshdInvalidCoreHeader("nblks", nblks)
		}
	}
	if fsize < coreMinFrameSize || fsize > coreMaxFrameSize {
		return h, base.NewErrDtshdInvalidCoreHeader("fsize", fsize)
	}
	h.SamplingFrequency = coreSamplingFrequencyTable[sfreq]
	if h.SamplingFrequency == 0 {
		return h, base.NewErrDtshdInvalidCoreHeader("sfreq", sfreq)
	}

	h.Blocks = int(nblks) + 1
	h.SampleCount = h.Blocks * coreSamplesPerBlock
	h.Length = int(fsize) + 1
	if is14Bit {
		// FSIZE是按16比特打包计算的，14比特打包时实际占用的字节数更多
		h.Length = h.Length * 16 / 14
	}
	return h, nil
}

// 14比特打包格式解析头部时需要解开的16比特字个数
const core14UnpackWords = 16

// unpack14 每个大端16比特字的低14比特依次拼接
//
func unpack14(b []byte) []byte {
	words := len(b) / 2
	if words > core14UnpackWords {
		words = core14UnpackWords
	}
	out := make([]byte, (words*14+7)/8)
	bw := nazabits.NewBitWriter(out)
	for i := 0; i < words; i++ {
		bw.WriteBits16(14, bele.BeUint16(b[i*2:])&0x3FFF)
	}
	return out
}

// ----- extension substream -------------------------------------------------------------------------------------------

// <ETSI TS 102 114, 7.4 Extension substream header>
// -------------------------------------------------
// SYNCEXTSSH        [32b]
// UserDefinedBits   [8b]
// nExtSSIndex       [2b]
// bHeaderSizeType   [1b]
// nuExtSSHeaderSize [8b / 12b] - 1
// nuExtSSFsize      [16b / 20b] - 1
// bStaticFieldsPresent [1b]
// ...
// nCRC16ExtSSHeader [16b] 头部最后两个字节
func parseSubstreamHeader(b []byte, mode ParseMode) (SubFrameHeader, error) {
	h := SubFrameHeader{
		Type: SubFrameTypeExtension,
	}

	r := bitstream.NewReader(b)
	r.Skip(32 + 8)
	h.SubStreamId = int(r.Read(2))
	headerBits, fsizeBits := uint(8), uint(16)
	if r.ReadFlag() {
		headerBits, fsizeBits = 12, 20
	}
	h.HeaderSize = int(r.Read(headerBits)) + 1
	h.Length = int(r.Read(fsizeBits)) + 1
	if err := r.Err(); err != nil {
		return h, nazaerrors.Wrap(err)
	}

	// 头部至少要容纳上面这些字段加上CRC
	minHeaderSize := int((r.BitPos()+7)/8) + 2
	if h.HeaderSize < minHeaderSize || h.Length < h.HeaderSize {
		return h, base.ErrDtshdInvalidSubstream
	}

	if len(b) >= h.HeaderSize {
		expected := bele.BeUint16(b[h.HeaderSize-2:])
		actual := CalcCrc16(b[5 : h.HeaderSize-2])
		if expected != actual {
			return h, base.NewErrDtshdCrcMismatch(expected, actual)
		}
		h.CrcChecked = true
	}

	if mode == ParseModeForSynchro {
		return h, nil
	}
	if len(b) < h.HeaderSize {
		return h, base.NewErrShortBuffer(h.HeaderSize, len(b), "dtshd substream header")
	}

	if err := parseSubstreamBody(&h, r, b, fsizeBits); err != nil {
		return h, err
	}
	return h, nil
}

type substreamContext struct {
	fsizeBits           uint
	staticFieldsPresent bool
	mixMetadataEnabled  bool
	numMixOutCh         []int
}

// parseSubstreamBody static fields，asset大小，asset描述
//
func parseSubstreamBody(h *SubFrameHeader, r *bitstream.Reader, b []byte, fsizeBits uint) error {
	ctx := substreamContext{
		fsizeBits: fsizeBits,
	}

	h.NumPresentations = 1
	numAssets := 1
	ctx.staticFieldsPresent = r.ReadFlag()
	h.StaticFieldsPresent = ctx.staticFieldsPresent
	if ctx.staticFieldsPresent {
		h.ReferenceClock = referenceClockTable[r.Read(2)]
		h.FrameDuration = int(r.Read(3)+1) * 512
		if r.ReadFlag() {
			r.Skip(32 + 4) // timestamp
		}
		h.NumPresentations = int(r.Read(3)) + 1
		numAssets = int(r.Read(3)) + 1

		activeMasks := make([]uint32, h.NumPresentations)
		for i := range activeMasks {
			activeMasks[i] = r.Read(uint(h.SubStreamId) + 1)
		}
		for i := range activeMasks {
			for ss := 0; ss <= h.SubStreamId; ss++ {
				if (activeMasks[i]>>uint(ss))&1 == 1 {
					r.Skip(8) // nuActiveAssetMask
				}
			}
		}

		ctx.mixMetadataEnabled = r.ReadFlag()
		if ctx.mixMetadataEnabled {
			r.Skip(2) // nuMixMetadataAdjLevel
			maskBits := uint(r.Read(2)+1) << 2
			numConfigs := int(r.Read(2)) + 1
			for i := 0; i < numConfigs; i++ {
				ctx.numMixOutCh = append(ctx.numMixOutCh, numSpeakersOfMask(r.Read(maskBits)))
			}
		}
		if r.Err() == nil && h.ReferenceClock == 0 {
			return base.ErrDtshdInvalidSubstream
		}
	}

	sizes := make([]int, numAssets)
	for i := range sizes {
		sizes[i] = int(r.Read(fsizeBits)) + 1
	}
	if err := r.Err(); err != nil {
		return nazaerrors.Wrap(err)
	}

	offset := h.HeaderSize
	for i := 0; i < numAssets; i++ {
		a, err := parseAssetDescriptor(r, &ctx)
		if err != nil {
			return err
		}
		a.Offset = offset
		a.Size = sizes[i]
		offset += a.Size

		if h.StaticFieldsPresent && a.SamplingFrequency > 0 {
			a.SampleCount = h.FrameDuration * a.SamplingFrequency / h.ReferenceClock
		}
		// 没有static fields时，依次从内嵌core、LBR、XLL的头部获取
		if a.SampleCount == 0 && a.CoreSize > 0 && a.Offset+a.CoreSize <= len(b) {
			if core, err := parseCoreHeader(b[a.Offset:a.Offset+a.CoreSize], false); err == nil {
				if a.SamplingFrequency == 0 {
					a.SamplingFrequency = core.SamplingFrequency
				}
				a.SampleCount = core.SampleCount * a.SamplingFrequency / core.SamplingFrequency
			}
		}
		if a.SampleCount == 0 && a.LbrSize > 0 {
			lbrPos := a.Offset + a.CoreSize + a.XbrSize + a.XxchSize + a.X96Size
			if lbrPos < len(b) {
				if freq, n, ok := parseLbrHeader(b[lbrPos:]); ok {
					if a.SamplingFrequency == 0 {
						a.SamplingFrequency = freq
					}
					a.SampleCount = n
				}
			}
		}
		if a.SampleCount == 0 && a.XllSize > 0 {
			xllPos := a.Offset + a.CoreSize + a.XbrSize + a.XxchSize + a.X96Size + a.LbrSize + a.XllSyncPos
			if xllPos < len(b) {
				if n, ok := parseXllSampleCount(b[xllPos:]); ok {
					a.SampleCount = n
				}
			}
		}
		h.Assets = append(h.Assets, a)
	}
	if offset > h.Length {
		return base.ErrDtshdInvalidSubstream
	}

	// 第一个asset决定整个substream的采样率和采样数
	h.SamplingFrequency = h.Assets[0].SamplingFrequency
	h.SampleCount = h.Assets[0].SampleCount
	return nil
}

// nuCoreExtensionMask
const (
	ExtensionMaskCore      uint32 = 0x010
	ExtensionMaskXbr       uint32 = 0x020
	ExtensionMaskXxch      uint32 = 0x040
	ExtensionMaskX96       uint32 = 0x080
	ExtensionMaskLbr       uint32 = 0x100
	ExtensionMaskXll       uint32 = 0x200
	ExtensionMaskReserved1 uint32 = 0x400
	ExtensionMaskReserved2 uint32 = 0x800
)

// nuCodingMode
const (
	CodingModeComponents uint8 = 0
	CodingModeLossless   uint8 = 1
	CodingModeLbr        uint8 = 2
	CodingModeAux        uint8 = 3
)

// parseAssetDescriptor 读取结束后游标停在下一个asset描述的起始位置
//
func parseAssetDescriptor(r *bitstream.Reader, ctx *substreamContext) (Asset, error) {
	var a Asset
	start := r.BitPos()
	descriptBits := uint(r.Read(9)+1) * 8
	a.Index = int(r.Read(3))

	// ----- static -----
	var embeddedStereo, embeddedSix bool
	if ctx.staticFieldsPresent {
		if r.ReadFlag() {
			r.Skip(4) // nuAssetTypeDescriptor
		}
		if r.ReadFlag() {
			r.Skip(24) // LanguageDescriptor
		}
		if r.ReadFlag() {
			r.Skip(uint(r.Read(10)+1) * 8) // InfoTextString
		}
		a.BitResolution = int(r.Read(5)) + 1
		a.SamplingFrequency = assetSamplingFrequencyTable[r.Read(4)]
		a.TotalNumChs = int(r.Read(8)) + 1
		if r.ReadFlag() {
			if a.TotalNumChs > 2 {
				embeddedStereo = r.ReadFlag()
			}
			if a.TotalNumChs > 6 {
				embeddedSix = r.ReadFlag()
			}
			var maskBits uint
			if r.ReadFlag() {
				maskBits = uint(r.Read(2)+1) << 2
				r.Skip(maskBits) // nuSpkrActivityMask
			}
			numRemapSets := int(r.Read(3))
			layouts := make([]uint32, numRemapSets)
			for i := range layouts {
				layouts[i] = r.Read(maskBits)
			}
			for i := range layouts {
				numDecCh := uint(r.Read(5)) + 1
				for ch := 0; ch < numSpeakersOfMask(layouts[i]); ch++ {
					remapMask := r.Read(numDecCh)
					r.Skip(uint(popCount(remapMask)) * 5)
				}
			}
		} else {
			r.Skip(3) // nuRepresentationType
		}
	}

	// ----- dynamic -----
	drcPresent := r.ReadFlag()
	if drcPresent {
		r.Skip(8)
	}
	if r.ReadFlag() {
		r.Skip(5) // nuDialNormCode
	}
	if drcPresent && embeddedStereo {
		r.Skip(8)
	}
	if ctx.mixMetadataEnabled && r.ReadFlag() {
		r.Skip(1 + 6)
		if r.Read(2) < 3 {
			r.Skip(3)
		} else {
			r.Skip(8)
		}
		perChannel := r.ReadFlag()
		for _, n := range ctx.numMixOutCh {
			if perChannel {
				r.Skip(uint(n) * 6)
			} else {
				r.Skip(6)
			}
		}
		decCh := []int{a.TotalNumChs}
		if embeddedSix {
			decCh = append(decCh, 6)
		}
		if embeddedStereo {
			decCh = append(decCh, 2)
		}
		for _, n := range ctx.numMixOutCh {
			for _, dc := range decCh {
				for ch := 0; ch < dc; ch++ {
					mixMask := r.Read(uint(n))
					r.Skip(uint(popCount(mixMask)) * 6)
				}
			}
		}
	}

	// ----- decoder navigation -----
	a.CodingMode = uint8(r.Read(2))
	switch a.CodingMode {
	case CodingModeComponents:
		a.CodingComponentMask = r.Read(12)
		if r.Err() == nil && a.CodingComponentMask == 0 {
			return a, base.ErrDtshdUnknownCodingMask
		}
		if a.CodingComponentMask&ExtensionMaskCore != 0 {
			a.CoreSize = int(r.Read(14)) + 1
			if r.ReadFlag() {
				r.Skip(2) // nuExSSCoreSyncDistance
			}
		}
		if a.CodingComponentMask&ExtensionMaskXbr != 0 {
			a.XbrSize = int(r.Read(14)) + 1
		}
		if a.CodingComponentMask&ExtensionMaskXxch != 0 {
			a.XxchSize = int(r.Read(14)) + 1
		}
		if a.CodingComponentMask&ExtensionMaskX96 != 0 {
			a.X96Size = int(r.Read(12)) + 1
		}
		if a.CodingComponentMask&ExtensionMaskLbr != 0 {
			readLbrParams(r, &a)
		}
		if a.CodingComponentMask&ExtensionMaskXll != 0 {
			readXllParams(r, &a, ctx.fsizeBits)
		}
		if a.CodingComponentMask&ExtensionMaskReserved1 != 0 {
			r.Skip(16)
		}
		if a.CodingComponentMask&ExtensionMaskReserved2 != 0 {
			r.Skip(16)
		}
	case CodingModeLossless:
		a.CodingComponentMask = ExtensionMaskXll
		readXllParams(r, &a, ctx.fsizeBits)
	case CodingModeLbr:
		a.CodingComponentMask = ExtensionMaskLbr
		readLbrParams(r, &a)
	case CodingModeAux:
		a.AuxSize = int(r.Read(14)) + 1
		a.AuxCodecId = uint8(r.Read(8))
		if r.ReadFlag() {
			r.Skip(3) // nuExSSAuxSyncDistance
		}
	}
	if err := r.Err(); err != nil {
		return a, nazaerrors.Wrap(err)
	}

	// 剩余的字段不关心，按nuAssetDescriptFsize跳到下一个asset描述
	end := start + descriptBits
	if r.BitPos() > end {
		return a, base.ErrDtshdInvalidSubstream
	}
	if err := r.SetBitPos(end); err != nil {
		return a, err
	}
	return a, nil
}

func readLbrParams(r *bitstream.Reader, a *Asset) {
	a.LbrSize = int(r.Read(14)) + 1
	if r.ReadFlag() {
		r.Skip(2) // nuExSSLBRSyncDistance
	}
}

func readXllParams(r *bitstream.Reader, a *Asset, fsizeBits uint) {
	a.XllSize = int(r.Read(fsizeBits)) + 1
	if r.ReadFlag() {
		r.Skip(4) // nuPeakBRCntrlBuffSzkB
		delayBits := uint(r.Read(5)) + 1
		r.Skip(delayBits) // nuInitLLDecDlyFrames
		a.XllSyncPos = int(r.Read(fsizeBits))
	}
}

// <XLL common header>
// -------------------
// SYNCXLL            [32b]
// nVersion           [4b]
// nHeaderSize        [8b]
// nBits4FrameFsize   [5b]
// nLLFrameSize       [nBits4FrameFsize+1]
// nNumChSetsInFrame  [4b]
// nSegmentsInFrame   [4b] log2
// nSmplInSeg         [4b] log2
//
func parseXllSampleCount(b []byte) (int, bool) {
	if len(b) < 4 || bele.BeUint32(b) != syncXll {
		return 0, false
	}
	r := bitstream.NewReader(b[4:])
	r.Skip(4 + 8)
	r.Skip(uint(r.Read(5)) + 1)
	r.Skip(4)
	segments := 1 << r.Read(4)
	samplesPerSegment := 1 << r.Read(4)
	if r.Err() != nil {
		return 0, false
	}
	return segments * samplesPerSegment, true
}

const (
	lbrHeaderTypeSyncOnly    = 1
	lbrHeaderTypeDecoderInit = 2
)

// <LBR header>
// ------------
// SYNCLBR            [32b]
// ucFmtInfoCode      [8b]  1 只有同步字 2 后面跟着解码器初始化参数
// ucSampleRateCode   [8b]  与nuMaxSampleRate使用同一张表
// ...
//
// 只有解码器初始化头才带采样率，没有时返回false
//
func parseLbrHeader(b []byte) (freq int, sampleCount int, ok bool) {
	if len(b) < 6 || bele.BeUint32(b) != syncLbr {
		return 0, 0, false
	}
	if b[4] != lbrHeaderTypeDecoderInit {
		return 0, 0, false
	}
	code := b[5]
	if int(code) >= len(assetSamplingFrequencyTable) {
		return 0, 0, false
	}
	return assetSamplingFrequencyTable[code], 1024 << lbrFrequencyRangeTable[code], true
}
