// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package collator

import (
	"github.com/q191201771/lalcollator/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
)

// PesPrivateDataLength DVD音频私有数据区长度
const PesPrivateDataLength = 4

const (
	MaxNumberOfFrameHeaders     = 127
	MaxFirstAccessUnitPointer   = 2034
	firstAccessUnitPointerDelta = 3 // first_access_unit_pointer从它自己的最后一个字节开始计数
)

// <DVD-Video Book, audio pack private data area>
// ------------------------------------------------
// sub_stream_id             [8b]
// number_of_frame_headers   [8b]
// first_access_unit_pointer [16b]
type PesPrivateData struct {
	SubStreamId            uint8
	NumberOfFrameHeaders   uint8
	FirstAccessUnitPointer uint16
}

// ParsePesPrivateData
//
// @param b: 函数调用结束后，内部不持有该内存块
//
func ParsePesPrivateData(b []byte) (PesPrivateData, error) {
	var pd PesPrivateData
	if len(b) < PesPrivateDataLength {
		return pd, base.NewErrShortBuffer(PesPrivateDataLength, len(b), "pes private data")
	}
	pd.SubStreamId = b[0]
	pd.NumberOfFrameHeaders = b[1]
	pd.FirstAccessUnitPointer = bele.BeUint16(b[2:])
	return pd, nil
}

// PredictedSyncOffset first_access_unit_pointer对应的，相对私有数据区起始位置的同步字偏移
//
// @param zeroAsOne: 为true时，first_access_unit_pointer为0按1处理
//
func (pd PesPrivateData) PredictedSyncOffset(zeroAsOne bool) int {
	p := int(pd.FirstAccessUnitPointer)
	if p == 0 && zeroAsOne {
		p = 1
	}
	return p + firstAccessUnitPointerDelta
}
