// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

// Package bitstream 大端比特流读取，在 nazabits.BitReader 之上增加 show/flush 以及游标定位
package bitstream

import (
	"github.com/q191201771/lalcollator/pkg/base"
	"github.com/q191201771/naza/pkg/nazabits"
	"github.com/q191201771/naza/pkg/nazaerrors"
)

// MaxBitsPerRead 单次 Get / Show 最多读取的比特数
const MaxBitsPerRead = 32

// Reader 不持有数据，只是一个视图：借用的字节切片加上比特游标
//
// Get / Show / Flush 每次调用都返回错误；
// Read / ReadFlag / Skip 把第一个错误记录下来，读取长串字段时只在最后检查一次 Err 。
//
type Reader struct {
	core []byte
	br   nazabits.BitReader
	pos  uint // 已经消费的比特数
	err  error
}

func NewReader(b []byte) *Reader {
	r := &Reader{}
	r.SetPointer(b)
	return r
}

// SetPointer 将游标重置到新切片的第0个比特
//
// @param b: 函数调用结束后，内部继续持有该内存块，直到下一次 SetPointer
//
func (r *Reader) SetPointer(b []byte) {
	r.core = b
	r.br = nazabits.NewBitReader(b)
	r.pos = 0
	r.err = nil
}

// Get 读取`n`个比特，1 <= n <= 32，游标前移
//
func (r *Reader) Get(n uint) (uint32, error) {
	if err := r.check(n); err != nil {
		return 0, err
	}
	v, err := r.br.ReadBits32(n)
	if err != nil {
		return 0, nazaerrors.Wrap(base.ErrBitstreamShortBuffer)
	}
	r.pos += n
	return v, nil
}

// GetFlag 读取1个比特，返回是否为1
//
func (r *Reader) GetFlag() (bool, error) {
	v, err := r.Get(1)
	return v == 1, err
}

// Show 读取`n`个比特，游标不动
//
func (r *Reader) Show(n uint) (uint32, error) {
	if err := r.check(n); err != nil {
		return 0, err
	}
	peek := r.br
	v, err := peek.ReadBits32(n)
	if err != nil {
		return 0, nazaerrors.Wrap(base.ErrBitstreamShortBuffer)
	}
	return v, nil
}

// Peek 同 Show
//
func (r *Reader) Peek(n uint) (uint32, error) {
	return r.Show(n)
}

// Flush 跳过`n`个比特，`n`没有32的限制
//
func (r *Reader) Flush(n uint) error {
	if r.pos+n > r.BitLen() {
		return nazaerrors.Wrap(base.ErrBitstreamShortBuffer)
	}
	if n == 0 {
		return nil
	}
	if err := r.br.SkipBits(n); err != nil {
		return nazaerrors.Wrap(base.ErrBitstreamShortBuffer)
	}
	r.pos += n
	return nil
}

// Position
//
// @return bytePos:   当前所在字节在切片中的下标
// @return bitInByte: 当前字节中已经消费的比特数
//
func (r *Reader) Position() (bytePos int, bitInByte uint) {
	return int(r.pos / 8), r.pos % 8
}

// BitPos 已经消费的比特数
func (r *Reader) BitPos() uint {
	return r.pos
}

// SetBitPos 将游标移动到切片中第`bitPos`个比特，可前可后
//
func (r *Reader) SetBitPos(bitPos uint) error {
	if bitPos > r.BitLen() {
		return nazaerrors.Wrap(base.ErrBitstreamInvalidCursor)
	}
	r.br = nazabits.NewBitReader(r.core[bitPos/8:])
	r.pos = bitPos - bitPos%8
	return r.Flush(bitPos % 8)
}

// AlignByte 游标前移到下一个字节边界
func (r *Reader) AlignByte() error {
	if rem := r.pos % 8; rem != 0 {
		return r.Flush(8 - rem)
	}
	return nil
}

// Read 同 Get ，出错时返回0并记录错误，之后的 Read 都返回0
//
// 注意，和 Get 不同，`n`为0时返回0，用于读取宽度由前面字段决定、可能为0的字段
//
func (r *Reader) Read(n uint) uint32 {
	if r.err != nil || n == 0 {
		return 0
	}
	v, err := r.Get(n)
	if err != nil {
		r.err = err
	}
	return v
}

func (r *Reader) ReadFlag() bool {
	return r.Read(1) == 1
}

// Skip 同 Flush ，出错时记录错误
//
func (r *Reader) Skip(n uint) {
	if r.err != nil {
		return
	}
	if err := r.Flush(n); err != nil {
		r.err = err
	}
}

// Err Read / ReadFlag / Skip 过程中遇到的第一个错误
func (r *Reader) Err() error {
	return r.err
}

// BitLen 切片总比特数
func (r *Reader) BitLen() uint {
	return uint(len(r.core)) * 8
}

// BitsLeft 还没有消费的比特数
func (r *Reader) BitsLeft() uint {
	return r.BitLen() - r.pos
}

func (r *Reader) check(n uint) error {
	if n == 0 || n > MaxBitsPerRead {
		return nazaerrors.Wrap(base.ErrBitstreamTooManyBits)
	}
	if r.pos+n > r.BitLen() {
		return nazaerrors.Wrap(base.ErrBitstreamShortBuffer)
	}
	return nil
}
