// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/haivision/srtgo"
	"github.com/q191201771/lalcollator/pkg/base"
)

// SrtInput 监听srt地址，接受第一个推流的连接，把它作为ts输入
//
type SrtInput struct {
	listener *srtgo.SrtSocket
	done     chan struct{}

	mu     sync.Mutex
	conn   *srtgo.SrtSocket
	closed bool
}

// ListenSrt 阻塞直到有对端连接上来，或者ctx被取消
//
func ListenSrt(ctx context.Context, urlCtx base.InputUrlContext) (*SrtInput, error) {
	listener := srtgo.NewSrtSocket(urlCtx.Host, uint16(urlCtx.Port), urlCtx.Options)
	if listener == nil {
		return nil, fmt.Errorf("create srt socket failed. addr=%s", urlCtx.HostWithPort)
	}
	if err := listener.Listen(1); err != nil {
		listener.Close()
		return nil, err
	}
	base.Log.Infof("start srt listen. addr=%s, options=%+v", urlCtx.HostWithPort, urlCtx.Options)

	in := &SrtInput{
		listener: listener,
		done:     make(chan struct{}),
	}
	go func() {
		select {
		case <-ctx.Done():
			// 关闭socket使阻塞中的Accept和Read返回
			_ = in.Close()
		case <-in.done:
		}
	}()

	conn, addr, err := listener.Accept()
	if err != nil {
		_ = in.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	base.Log.Infof("srt accept. remote=%s", addr.String())

	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		conn.Close()
		return nil, context.Canceled
	}
	in.conn = conn
	return in, nil
}

func (in *SrtInput) Read(b []byte) (int, error) {
	n, err := in.conn.Read(b)
	if err != nil && errors.Is(err, srtgo.EConnLost) {
		base.Log.Infof("srt connection lost.")
		return n, io.EOF
	}
	return n, err
}

func (in *SrtInput) Close() error {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return nil
	}
	in.closed = true
	close(in.done)
	if in.conn != nil {
		in.conn.Close()
	}
	in.listener.Close()
	return nil
}
