// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "io"

// BufWriter 聚合小块写入，用于把逻辑帧写入文件
//
// 与bufio.Writer表现不同的地方：
// 数据超过缓存剩余空间时，先填满缓存并写出，剩余部分如果不小于缓存容量则直接写出，不再切分
//
// 第一次写失败后，后续的Write和Flush都直接返回该错误
//
type BufWriter struct {
	w   io.Writer
	buf []byte
	n   int // 当前已缓存大小
	err error
}

var _ io.Writer = &BufWriter{}

// NewBufWriter
//
// @param size: <=0时不缓存，每次Write都直接写出
//
func NewBufWriter(w io.Writer, size int) *BufWriter {
	if size < 0 {
		size = 0
	}
	return &BufWriter{
		w:   w,
		buf: make([]byte, size),
	}
}

func (b *BufWriter) Write(p []byte) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	total := len(p)

	if avail := b.available(); len(p) > avail {
		if b.n != 0 {
			// 填满当前缓存块并写出
			b.append(p[:avail])
			p = p[avail:]
			if err := b.Flush(); err != nil {
				return total - len(p), err
			}
		}
		if len(p) >= len(b.buf) {
			// 剩余数据较大，直接写出
			if err := b.writeThrough(p); err != nil {
				return total - len(p), err
			}
			return total, nil
		}
	}

	b.append(p)
	return total, nil
}

func (b *BufWriter) Flush() error {
	if b.err != nil {
		return b.err
	}
	if b.n == 0 {
		return nil
	}
	err := b.writeThrough(b.buf[:b.n])
	b.n = 0
	return err
}

// Buffered 当前缓存中还没有写出的字节数
func (b *BufWriter) Buffered() int {
	return b.n
}

func (b *BufWriter) available() int {
	return len(b.buf) - b.n
}

func (b *BufWriter) append(p []byte) {
	copy(b.buf[b.n:], p)
	b.n += len(p)
}

func (b *BufWriter) writeThrough(p []byte) error {
	if _, err := b.w.Write(p); err != nil {
		b.err = err
	}
	return b.err
}
