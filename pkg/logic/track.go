// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"github.com/q191201771/lalcollator/pkg/base"
	"github.com/q191201771/lalcollator/pkg/collator"
	"github.com/q191201771/lalcollator/pkg/dtshd"
	"github.com/q191201771/lalcollator/pkg/eac3"
)

// Track 一路音频elementary stream，持有一个collator和一个输出
type Track struct {
	name  string
	codec base.AudioCodec
	c     collator.Collator
	sink  Sink
	stat  *base.StreamerStat

	pushErrCount uint64
	sinkErr      error
}

// NewCollator 根据编码格式创建collator
//
// @return 编码格式不支持时返回nil
//
func NewCollator(codec base.AudioCodec, config *Config) collator.Collator {
	switch codec {
	case base.AudioCodecDtshd:
		return dtshd.NewCollator(func(cfg *dtshd.Config) {
			cfg.MaxFalseLockReplays = config.DtshdConfig.MaxFalseLockReplays
		})
	case base.AudioCodecEac3:
		profile, _ := parseEac3Profile(config.Eac3Config.Profile)
		return eac3.NewCollator(func(cfg *eac3.Config) {
			cfg.ProgrammeId = config.Eac3Config.ProgrammeId
			cfg.Profile = profile
			cfg.DropOversizedFrames = config.Eac3Config.DropOversizedFrames
		})
	}
	return nil
}

func NewTrack(name string, codec base.AudioCodec, config *Config, stat *base.StreamerStat) (*Track, error) {
	c := NewCollator(codec, config)
	if c == nil {
		return nil, nil
	}
	sink, err := NewSink(config.OutputConfig, name, codec)
	if err != nil {
		return nil, err
	}
	base.Log.Infof("add track. name=%s, codec=%s", name, codec.ReadableString())
	return &Track{
		name:  name,
		codec: codec,
		c:     c,
		sink:  sink,
		stat:  stat,
	}, nil
}

func (t *Track) Push(b []byte) {
	t.onPushResult(t.c.Push(b))
	t.drain()
}

func (t *Track) PushPes(pes collator.PesPayload) {
	t.onPushResult(t.c.PushPes(pes))
	t.drain()
}

// Flush 输入不连续，或者输入结束
func (t *Track) Flush() {
	t.c.Flush()
	t.drain()
}

// Dispose 吐出剩余的帧，并关闭输出
func (t *Track) Dispose() error {
	t.Flush()
	stat := t.c.Stat()
	base.Log.Infof("track done. name=%s, codec=%s, frames=%d, skipped=%d, resync=%d, error=%d",
		t.name, t.codec.ReadableString(), stat.FrameCount, stat.SkippedBytes, stat.ResyncCount, stat.ErrorCount)
	err := t.sink.Close()
	if t.sinkErr != nil {
		return t.sinkErr
	}
	return err
}

func (t *Track) Stat() collator.Stat {
	return t.c.Stat()
}

func (t *Track) onPushResult(err error) {
	if err == nil {
		return
	}
	// collator内部已经重新同步，继续输入即可
	t.pushErrCount++
	base.Log.Warnf("collate failed. track=%s, err=%+v", t.name, err)
}

func (t *Track) drain() {
	for {
		f, ok := t.c.Poll()
		if !ok {
			return
		}
		base.Log.Debugf("frame. track=%s, %s", t.name, f.DebugString())
		t.stat.AddFrame()
		if t.sinkErr != nil {
			continue
		}
		n, err := t.sink.Write(f)
		if err != nil {
			base.Log.Errorf("write frame failed. track=%s, err=%+v", t.name, err)
			t.sinkErr = err
			continue
		}
		t.stat.AddWriteBytes(n)
	}
}
