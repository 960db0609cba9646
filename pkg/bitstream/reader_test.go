// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package bitstream_test

import (
	"testing"

	"github.com/q191201771/lalcollator/pkg/bitstream"
	"github.com/q191201771/naza/pkg/assert"
)

func TestReader(t *testing.T) {
	r := bitstream.NewReader([]byte{0x7F, 0xFE, 0x80, 0x01, 0xA5, 0xF0})

	v, err := r.Show(32)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint32(0x7FFE8001), v)
	assert.Equal(t, uint(0), r.BitPos())

	v, err = r.Get(32)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint32(0x7FFE8001), v)

	flag, err := r.GetFlag()
	assert.Equal(t, nil, err)
	assert.Equal(t, true, flag)

	v, _ = r.Get(3)
	assert.Equal(t, uint32(0x2), v)
	bytePos, bitInByte := r.Position()
	assert.Equal(t, 4, bytePos)
	assert.Equal(t, uint(4), bitInByte)

	assert.Equal(t, nil, r.AlignByte())
	v, _ = r.Peek(4)
	assert.Equal(t, uint32(0xF), v)
	assert.Equal(t, uint(8), r.BitsLeft())

	// 读越界
	_, err = r.Get(9)
	assert.IsNotNil(t, err)
	assert.Equal(t, uint(40), r.BitPos())

	// 回退
	assert.Equal(t, nil, r.SetBitPos(12))
	v, _ = r.Get(8)
	assert.Equal(t, uint32(0xE8), v)
	assert.IsNotNil(t, r.SetBitPos(49))
}

func TestReaderTooManyBits(t *testing.T) {
	r := bitstream.NewReader(make([]byte, 16))
	_, err := r.Get(33)
	assert.IsNotNil(t, err)
	_, err = r.Show(0)
	assert.IsNotNil(t, err)
	assert.Equal(t, uint(0), r.BitPos())

	assert.Equal(t, nil, r.Flush(100))
	assert.Equal(t, uint(100), r.BitPos())
	assert.IsNotNil(t, r.Flush(29))
}

func TestSetPointer(t *testing.T) {
	r := bitstream.NewReader([]byte{0x0B, 0x77})
	_, _ = r.Get(5)
	r.SetPointer([]byte{0x64, 0x58, 0x20, 0x25})
	assert.Equal(t, uint(0), r.BitPos())
	v, err := r.Get(32)
	assert.Equal(t, nil, err)
	assert.Equal(t, uint32(0x64582025), v)
}

func TestReaderSticky(t *testing.T) {
	r := bitstream.NewReader([]byte{0x0B, 0x77, 0xC4})
	assert.Equal(t, uint32(0x0B77), r.Read(16))
	assert.Equal(t, true, r.ReadFlag())
	r.Skip(3)
	assert.Equal(t, uint32(0x4), r.Read(4))
	assert.Equal(t, nil, r.Err())

	assert.Equal(t, uint32(0), r.Read(1))
	assert.IsNotNil(t, r.Err())
	// 出错之后一直返回0
	r.SetPointer([]byte{0xFF})
	assert.Equal(t, nil, r.Err())
	assert.Equal(t, uint32(0xFF), r.Read(8))
}
