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
	"github.com/q191201771/naza/pkg/circularqueue"
)

// DefaultFrameQueueCapacity 按16K的输入块计算，能容纳最小的DTS core帧(96字节)的个数
const DefaultFrameQueueCapacity = 16 * 1024 / 96

// FrameQueue 已经完成、等待 Poll 的帧
//
// 队列满时容量翻倍，不丢帧。
//
type FrameQueue struct {
	capacity  int
	q         *circularqueue.CircularQueue
	growCount uint64
}

func NewFrameQueue(capacity int) *FrameQueue {
	return &FrameQueue{
		capacity: capacity,
		q:        circularqueue.New(capacity),
	}
}

func (fq *FrameQueue) Push(f Frame) {
	if fq.q.Full() {
		fq.grow()
	}
	_ = fq.q.PushBack(f)
}

func (fq *FrameQueue) Poll() (Frame, bool) {
	v, err := fq.q.PopFront()
	if err != nil {
		return Frame{}, false
	}
	return v.(Frame), true
}

func (fq *FrameQueue) Len() int {
	return fq.q.Size()
}

func (fq *FrameQueue) Capacity() int {
	return fq.capacity
}

// GrowCount 队列满后扩容的次数
func (fq *FrameQueue) GrowCount() uint64 {
	return fq.growCount
}

// Reset 清空队列，容量不变
func (fq *FrameQueue) Reset() {
	fq.q = circularqueue.New(fq.capacity)
	fq.growCount = 0
}

func (fq *FrameQueue) grow() {
	nq := circularqueue.New(fq.capacity * 2)
	for !fq.q.Empty() {
		v, _ := fq.q.PopFront()
		_ = nq.PushBack(v)
	}
	base.Log.Debugf("frame queue full, grow. capacity=%d->%d", fq.capacity, fq.capacity*2)
	fq.capacity *= 2
	fq.q = nq
	fq.growCount++
}

// PtsLatch PES的pts作用于它之后开始的第一个帧
type PtsLatch struct {
	pts uint64
	has bool
}

func (l *PtsLatch) Set(pts uint64) {
	l.pts = pts
	l.has = true
}

// Take 取出pts，取出后清空
func (l *PtsLatch) Take() (uint64, bool) {
	if !l.has {
		return 0, false
	}
	l.has = false
	return l.pts, true
}

func (l *PtsLatch) Reset() {
	l.has = false
	l.pts = 0
}
