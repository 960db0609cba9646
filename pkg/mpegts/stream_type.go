// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package mpegts

import "github.com/q191201771/lalcollator/pkg/base"

// PMT / program stream map 中的stream_type
//
// 0x80以上是用户私有的取值，下面是ATSC和Blu-ray中实际使用的
const (
	StreamTypePrivateData    uint8 = 0x06 // DVB，具体格式由descriptor决定
	StreamTypeAc3            uint8 = 0x81
	StreamTypeDts            uint8 = 0x82
	StreamTypeTrueHd         uint8 = 0x83
	StreamTypeEac3Bluray     uint8 = 0x84
	StreamTypeDtshdHra       uint8 = 0x85
	StreamTypeDtshdMa        uint8 = 0x86
	StreamTypeEac3           uint8 = 0x87
	StreamTypeEac3Secondary  uint8 = 0xA1
	StreamTypeDtshdSecondary uint8 = 0xA2
	DescriptorTagAc3         uint8 = 0x6A
	DescriptorTagEnhancedAc3 uint8 = 0x7A
	DescriptorTagDts         uint8 = 0x7B
)

// AudioCodecOfStreamType 根据stream_type以及ES的descriptor判断collator的类型
//
// @param descriptorTags: elementary stream info中所有descriptor的tag，stream_type为0x06时使用
//
func AudioCodecOfStreamType(streamType uint8, descriptorTags []uint8) base.AudioCodec {
	switch streamType {
	case StreamTypeAc3, StreamTypeEac3, StreamTypeEac3Bluray, StreamTypeEac3Secondary:
		return base.AudioCodecEac3
	case StreamTypeDts, StreamTypeDtshdHra, StreamTypeDtshdMa, StreamTypeDtshdSecondary:
		return base.AudioCodecDtshd
	case StreamTypePrivateData:
		for _, tag := range descriptorTags {
			switch tag {
			case DescriptorTagAc3, DescriptorTagEnhancedAc3:
				return base.AudioCodecEac3
			case DescriptorTagDts:
				return base.AudioCodecDtshd
			}
		}
	}
	return base.AudioCodecUnknown
}

// AudioCodecOfDvdSubStreamId DVD private_stream_1 私有数据区的sub_stream_id
//
// 0x80~0x87 AC3，0x88~0x8F DTS，其他(LPCM、字幕等)不处理
//
func AudioCodecOfDvdSubStreamId(id uint8) base.AudioCodec {
	switch id & 0xF8 {
	case 0x80:
		return base.AudioCodecEac3
	case 0x88:
		return base.AudioCodecDtshd
	}
	return base.AudioCodecUnknown
}
