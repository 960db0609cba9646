// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"bytes"
	"errors"
	"testing"

	"github.com/q191201771/naza/pkg/assert"
)

func TestBufWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewBufWriter(&buf, 4096)

	// 超过缓存容量，直接写出
	n, err := w.Write(bytes.Repeat([]byte{0x1}, 5000))
	assert.Equal(t, nil, err)
	assert.Equal(t, 5000, n)
	assert.Equal(t, 4096, w.available())
	assert.Equal(t, bytes.Repeat([]byte{0x1}, 5000), buf.Bytes())
	buf.Reset()

	_, _ = w.Write(bytes.Repeat([]byte{0x2}, 1024))
	assert.Equal(t, 4096-1024, w.available())
	assert.Equal(t, 0, buf.Len())
	_, _ = w.Write(bytes.Repeat([]byte{0x3}, 1024))
	assert.Equal(t, 2048, w.Buffered())
	assert.Equal(t, 0, buf.Len())

	// 填满缓存写出，剩余的2048字节留在缓存中
	_, _ = w.Write(bytes.Repeat([]byte{0x4}, 4096))
	assert.Equal(t, 4096-2048, w.available())
	assert.Equal(t, 4096, buf.Len())
	assert.Equal(t, bytes.Repeat([]byte{0x2}, 1024), buf.Bytes()[:1024])
	assert.Equal(t, bytes.Repeat([]byte{0x3}, 1024), buf.Bytes()[1024:2048])
	assert.Equal(t, bytes.Repeat([]byte{0x4}, 2048), buf.Bytes()[2048:])
	buf.Reset()

	// 填满缓存写出后，剩余数据仍然不小于缓存容量，直接写出
	_, _ = w.Write(bytes.Repeat([]byte{0x5}, 8192))
	assert.Equal(t, 4096, w.available())
	assert.Equal(t, 2048+8192, buf.Len())
	assert.Equal(t, bytes.Repeat([]byte{0x4}, 2048), buf.Bytes()[:2048])
	assert.Equal(t, bytes.Repeat([]byte{0x5}, 8192), buf.Bytes()[2048:])
	buf.Reset()

	assert.Equal(t, nil, w.Flush())
	assert.Equal(t, 0, buf.Len())

	_, _ = w.Write(bytes.Repeat([]byte{0x6}, 1024))
	assert.Equal(t, 0, buf.Len())
	assert.Equal(t, nil, w.Flush())
	assert.Equal(t, 4096, w.available())
	assert.Equal(t, bytes.Repeat([]byte{0x6}, 1024), buf.Bytes())
}

type failWriter struct{}

var errFailWriter = errors.New("write failed")

func (failWriter) Write(p []byte) (int, error) {
	return 0, errFailWriter
}

func TestBufWriterStickyError(t *testing.T) {
	w := NewBufWriter(failWriter{}, 16)
	_, err := w.Write([]byte{1, 2, 3})
	assert.Equal(t, nil, err)
	assert.Equal(t, errFailWriter, w.Flush())
	_, err = w.Write([]byte{1})
	assert.Equal(t, errFailWriter, err)

	// 不缓存
	w = NewBufWriter(failWriter{}, 0)
	_, err = w.Write([]byte{1})
	assert.Equal(t, errFailWriter, err)
}
