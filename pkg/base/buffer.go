// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"fmt"
)

const growRoundThreshold = 1048576 // 1MB

// Buffer 先进先出可扩容流式buffer，collator用它保存还没有消费的elementary stream数据
//
// 写入：Write 追加新到达的数据
// 读取：Bytes / Peek 查看数据（不拷贝），Skip 标记消费，Append 将数据移动到另一个切片末尾
//
type Buffer struct {
	core []byte
	rpos int
	wpos int
}

func NewBuffer(initCap int) *Buffer {
	return &Buffer{
		core: make([]byte, initCap),
	}
}

// Bytes Buffer中所有未读数据，不拷贝
//
func (b *Buffer) Bytes() []byte {
	if b.rpos == b.wpos {
		return nil
	}
	return b.core[b.rpos:b.wpos]
}

// Peek 查看前`n`未读数据，不拷贝，不修改读取偏移位置
//
// 注意，如果未读数据不足`n`，返回所有未读数据
//
func (b *Buffer) Peek(n int) []byte {
	if b.Len() < n {
		return b.Bytes()
	}
	return b.core[b.rpos : b.rpos+n]
}

// Skip 将前`n`未读数据标记为已读
//
// @return 实际跳过的字节数
//
func (b *Buffer) Skip(n int) int {
	if n > b.Len() {
		Log.Warnf("[%p] Buffer::Skip too large. n=%d, %s", b, n, b.DebugString())
		n = b.Len()
	}
	b.rpos += n
	b.resetIfEmpty()
	return n
}

// Append 将前`n`未读数据追加到`dst`末尾并标记为已读
//
func (b *Buffer) Append(dst []byte, n int) []byte {
	dst = append(dst, b.Peek(n)...)
	b.Skip(n)
	return dst
}

// Write 拷贝`p`到Buffer末尾，实现 io.Writer
//
func (b *Buffer) Write(p []byte) (n int, err error) {
	b.Grow(len(p))
	copy(b.core[b.wpos:], p)
	b.wpos += len(p)
	return len(p), nil
}

// Grow 确保Buffer中至少有`n`大小的空间可写
//
func (b *Buffer) Grow(n int) {
	tail := len(b.core) - b.wpos
	if tail >= n {
		return
	}

	if b.rpos+tail >= n {
		// 头部加上尾部空闲空间足够，将可读数据移动到头部
		copy(b.core, b.core[b.rpos:b.wpos])
		b.wpos -= b.rpos
		b.rpos = 0
		return
	}

	needed := b.Len() + n
	if needed < growRoundThreshold {
		needed = roundUpPowerOfTwo(needed)
	}

	core := make([]byte, needed)
	copy(core, b.core[b.rpos:b.wpos])
	b.core = core
	b.wpos -= b.rpos
	b.rpos = 0
}

// Reset 重置，并不会释放内存块
//
func (b *Buffer) Reset() {
	b.rpos = 0
	b.wpos = 0
}

// Len Buffer中还没有读的数据的长度
//
func (b *Buffer) Len() int {
	return b.wpos - b.rpos
}

func (b *Buffer) Cap() int {
	return cap(b.core)
}

func (b *Buffer) DebugString() string {
	return fmt.Sprintf("len(core)=%d, rpos=%d, wpos=%d", len(b.core), b.rpos, b.wpos)
}

func (b *Buffer) resetIfEmpty() {
	if b.rpos == b.wpos {
		b.Reset()
	}
}

func roundUpPowerOfTwo(n int) int {
	if n <= 2 {
		return 2
	}

	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	n++
	return n
}
