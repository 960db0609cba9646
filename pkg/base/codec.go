// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

// AudioCodec collator所处理的压缩音频格式
type AudioCodec int

const (
	AudioCodecUnknown AudioCodec = -1
	AudioCodecDtshd   AudioCodec = 1 // DTS core、DTS-HD(core+extension或者纯extension)
	AudioCodecEac3    AudioCodec = 2 // AC3、E-AC3(DD+)
)

func (a AudioCodec) ReadableString() string {
	switch a {
	case AudioCodecUnknown:
		return "unknown"
	case AudioCodecDtshd:
		return "dtshd"
	case AudioCodecEac3:
		return "eac3"
	}
	return ""
}

// ParseAudioCodec 配置文件、命令行中的格式名转换为 AudioCodec
func ParseAudioCodec(s string) AudioCodec {
	switch s {
	case "dts", "dtshd", "DTS", "DTSHD", "DTS-HD":
		return AudioCodecDtshd
	case "ac3", "eac3", "AC3", "EAC3", "E-AC3", "ddplus":
		return AudioCodecEac3
	}
	return AudioCodecUnknown
}
