// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package dtshd

import (
	"errors"

	"github.com/q191201771/lalcollator/pkg/base"
	"github.com/q191201771/lalcollator/pkg/collator"
)

type FrameInfo struct {
	SubFrames         []SubFrameHeader
	Length            int // 所有子帧长度之和
	SampleCount       int
	SamplingFrequency int

	// Core 逻辑帧中向后兼容的core，nil表示不存在
	Core *collator.CoreSubstream

	// SkippedAt 大于0表示该位置开始的数据无法识别，已经被忽略
	SkippedAt int
}

// ParseFrameHeader 依次解析逻辑帧中的每个子帧，汇总采样数、采样率、core的位置
//
// @param frame:          完整的逻辑帧。函数调用结束后，内部不持有该内存块
// @param givenFrameSize: 逻辑帧的长度，子帧长度之和必须与之相等
// @param coreSizeHint:   collator通过同步字扫描得到的core子帧大小，大于0时替代core头部中的FSIZE
//
func ParseFrameHeader(frame []byte, givenFrameSize int, coreSizeHint int) (FrameInfo, error) {
	var info FrameInfo
	if givenFrameSize > len(frame) {
		return info, base.NewErrShortBuffer(givenFrameSize, len(frame), "dtshd frame")
	}

	coreIdx, extIdx := -1, -1
	offset := 0
	for offset < givenFrameSize {
		h, err := ParseSubFrameHeader(frame[offset:givenFrameSize], ParseModeExtended)
		if err != nil {
			// 帧内有无法识别的数据，比如只保留了部分substream
			if offset > 0 && errors.Is(err, base.ErrDtshdUnknownSyncWord) {
				info.SkippedAt = offset
				break
			}
			return info, err
		}

		length := h.Length
		switch h.Type {
		case SubFrameTypeCore:
			if offset == 0 && coreSizeHint > 0 {
				length = coreSizeHint
			}
			if coreIdx == -1 {
				info.Core = &collator.CoreSubstream{
					Offset: offset,
					Size:   length,
				}
			}
		case SubFrameTypeExtension:
			if info.Core == nil {
				for _, a := range h.Assets {
					if a.CoreSize > 0 {
						info.Core = &collator.CoreSubstream{
							Offset:          offset + a.Offset,
							Size:            a.CoreSize,
							IsSubStreamCore: true,
						}
						break
					}
				}
			}
		}

		if h.Type == SubFrameTypeCore && coreIdx == -1 {
			coreIdx = len(info.SubFrames)
		}
		if h.Type == SubFrameTypeExtension && extIdx == -1 {
			extIdx = len(info.SubFrames)
		}
		info.SubFrames = append(info.SubFrames, h)
		offset += length
	}

	info.Length = offset
	if info.SkippedAt == 0 && offset != givenFrameSize {
		return info, base.NewErrDtshdLengthMismatch(givenFrameSize, offset)
	}

	// core的采样数按extension与core的采样率之比换算，比如48k core + 96k XLL
	switch {
	case coreIdx != -1 && extIdx != -1 && info.SubFrames[extIdx].SamplingFrequency > 0:
		core, ext := info.SubFrames[coreIdx], info.SubFrames[extIdx]
		info.SamplingFrequency = ext.SamplingFrequency
		info.SampleCount = core.SampleCount * ext.SamplingFrequency / core.SamplingFrequency
	case coreIdx != -1:
		info.SamplingFrequency = info.SubFrames[coreIdx].SamplingFrequency
		info.SampleCount = info.SubFrames[coreIdx].SampleCount
	case extIdx != -1:
		info.SamplingFrequency = info.SubFrames[extIdx].SamplingFrequency
		info.SampleCount = info.SubFrames[extIdx].SampleCount
	}
	return info, nil
}
