// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/asticode/go-astits"
	"github.com/q191201771/lalcollator/pkg/base"
	"github.com/q191201771/lalcollator/pkg/mpegts"
)

const (
	defaultReadChunkSize = 16 * 1024

	// 连续多少次解析ts出错后放弃
	maxTsConsecutiveErrCount = 64
)

// Input 一个已经打开的输入源
type Input struct {
	R     io.Reader
	Type  string          // InputTypeTs, InputTypePs, InputTypeEs
	Codec base.AudioCodec // 只有es输入需要

	// CheckIdle 是否在输入长时间没有数据时退出，用于网络输入
	CheckIdle bool
}

// Streamer 读取一个输入源，按track拆分后交给各自的collator
//
// 除了统计协程以外，所有方法都在调用 Run 的协程中执行
//
type Streamer struct {
	uniqueKey string
	config    *Config
	stat      *base.StreamerStat

	tracks   map[string]*Track
	tsTracks map[uint16]*Track
	ignored  map[string]struct{}

	tsConsecutiveErrCount int
}

func NewStreamer(config *Config, inputUrl string) *Streamer {
	uk := base.GenUkStreamer()
	s := &Streamer{
		uniqueKey: uk,
		config:    config,
		stat:      base.NewStreamerStat(uk, inputUrl),
		tracks:    make(map[string]*Track),
		tsTracks:  make(map[uint16]*Track),
		ignored:   make(map[string]struct{}),
	}
	base.Log.Infof("[%s] lifecycle new streamer. url=%s", uk, inputUrl)
	return s
}

// Run 阻塞直到输入结束、出错，或者ctx被取消
//
// 返回前会吐出所有track中累积的帧，并关闭所有输出
//
func (s *Streamer) Run(ctx context.Context, in Input) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.runStatLoop(ctx, cancel, in.CheckIdle)
	}()

	r := &countingReader{r: in.R, stat: s.stat}
	var err error
	switch in.Type {
	case InputTypeTs:
		err = s.runTs(ctx, r)
	case InputTypePs:
		err = s.runPs(ctx, r)
	case InputTypeEs:
		err = s.runEs(ctx, r, in.Codec)
	default:
		err = fmt.Errorf("invalid input type. type=%s", in.Type)
	}

	if derr := s.disposeTracks(); err == nil {
		err = derr
	}
	cancel()
	wg.Wait()

	stat := s.stat.GetStat()
	b, _ := json.Marshal(stat)
	base.Log.Infof("[%s] lifecycle streamer done. stat=%s, err=%+v", s.uniqueKey, string(b), err)
	return err
}

// Tracks 按名字排序
func (s *Streamer) Tracks() []*Track {
	names := make([]string, 0, len(s.tracks))
	for name := range s.tracks {
		names = append(names, name)
	}
	sort.Strings(names)
	ret := make([]*Track, 0, len(names))
	for _, name := range names {
		ret = append(ret, s.tracks[name])
	}
	return ret
}

func (s *Streamer) Stat() base.StatStreamer {
	return s.stat.GetStat()
}

func (s *Streamer) UniqueKey() string {
	return s.uniqueKey
}

// ----- es ------------------------------------------------------------------------------------------------------------

func (s *Streamer) runEs(ctx context.Context, r io.Reader, codec base.AudioCodec) error {
	track, err := s.getOrAddTrack("es", codec)
	if err != nil {
		return err
	}
	if track == nil {
		return fmt.Errorf("unsupported es codec. codec=%s", codec.ReadableString())
	}
	return s.readLoop(ctx, r, track.Push)
}

// ----- ps ------------------------------------------------------------------------------------------------------------

func (s *Streamer) runPs(ctx context.Context, r io.Reader) error {
	var innerErr error
	u := mpegts.NewPsUnpacker()
	u.WithCallbackFunc(func(pes mpegts.Pes, payload []byte) {
		if innerErr != nil {
			return
		}
		name, codec := psTrackInfo(u, pes.StreamId, payload)
		track, err := s.getOrAddTrack(name, codec)
		if err != nil {
			innerErr = err
			return
		}
		if track == nil {
			return
		}
		track.PushPes(pes.ToCollatorPayload(payload))
	})
	err := s.readLoop(ctx, r, func(b []byte) {
		u.Feed(b)
	})
	if innerErr != nil {
		return innerErr
	}
	if u.SkippedBytes() != 0 {
		base.Log.Infof("[%s] ps unpacker skipped bytes. n=%d", s.uniqueKey, u.SkippedBytes())
	}
	return err
}

// psTrackInfo
//
// private_stream_1中可能有多路DVD风格的子流，用sub_stream_id区分
//
func psTrackInfo(u *mpegts.PsUnpacker, sid uint8, payload []byte) (string, base.AudioCodec) {
	if sid == mpegts.StreamIdPrivateStream1 && len(payload) > 0 {
		if codec := mpegts.AudioCodecOfDvdSubStreamId(payload[0]); codec != base.AudioCodecUnknown {
			return fmt.Sprintf("ps-%02x-%02x", sid, payload[0]), codec
		}
	}
	name := fmt.Sprintf("ps-%02x", sid)
	if st, ok := u.StreamType(sid); ok {
		return name, mpegts.AudioCodecOfStreamType(st, nil)
	}
	return name, base.AudioCodecUnknown
}

// ----- ts ------------------------------------------------------------------------------------------------------------

func (s *Streamer) runTs(ctx context.Context, r io.Reader) error {
	dmx := astits.NewDemuxer(ctx, bufio.NewReaderSize(r, s.config.InputConfig.ReadChunkSize))
	for {
		d, err := dmx.NextData()
		if err != nil {
			if err == astits.ErrNoMorePackets || ctx.Err() != nil {
				return nil
			}
			s.tsConsecutiveErrCount++
			base.Log.Warnf("[%s] demux ts failed. err=%+v", s.uniqueKey, err)
			if s.tsConsecutiveErrCount >= maxTsConsecutiveErrCount {
				return err
			}
			continue
		}
		s.tsConsecutiveErrCount = 0

		if d.PMT != nil {
			if err := s.onPmt(d.PMT); err != nil {
				return err
			}
			continue
		}
		if d.PES != nil {
			s.onTsPes(d)
		}
	}
}

func (s *Streamer) onPmt(pmt *astits.PMTData) error {
	for _, es := range pmt.ElementaryStreams {
		if _, ok := s.tsTracks[es.ElementaryPID]; ok {
			continue
		}
		var tags []uint8
		for _, desc := range es.ElementaryStreamDescriptors {
			tags = append(tags, desc.Tag)
		}
		codec := mpegts.AudioCodecOfStreamType(uint8(es.StreamType), tags)
		track, err := s.getOrAddTrack(fmt.Sprintf("ts-%d", es.ElementaryPID), codec)
		if err != nil {
			return err
		}
		if track != nil {
			s.tsTracks[es.ElementaryPID] = track
		}
	}
	return nil
}

func (s *Streamer) onTsPes(d *astits.DemuxerData) {
	track, ok := s.tsTracks[d.PID]
	if !ok {
		return
	}
	if d.AdaptationField != nil && d.AdaptationField.DiscontinuityIndicator {
		base.Log.Infof("[%s] ts discontinuity. pid=%d", s.uniqueKey, d.PID)
		track.Flush()
	}

	pes := mpegts.Pes{
		StreamId: d.PES.Header.StreamID,
	}
	if oh := d.PES.Header.OptionalHeader; oh != nil && oh.PTS != nil {
		pes.HasPts = true
		pes.Pts = uint64(oh.PTS.Base)
	}
	track.PushPes(pes.ToCollatorPayload(d.PES.Data))
}

// ----- private -------------------------------------------------------------------------------------------------------

// getOrAddTrack
//
// @return track: 编码格式不支持时返回nil
//
func (s *Streamer) getOrAddTrack(name string, codec base.AudioCodec) (*Track, error) {
	if t, ok := s.tracks[name]; ok {
		return t, nil
	}
	if _, ok := s.ignored[name]; ok {
		return nil, nil
	}
	t, err := NewTrack(name, codec, s.config, s.stat)
	if err != nil {
		return nil, err
	}
	if t == nil {
		base.Log.Infof("[%s] ignore track. name=%s", s.uniqueKey, name)
		s.ignored[name] = struct{}{}
		return nil, nil
	}
	s.tracks[name] = t
	return t, nil
}

func (s *Streamer) readLoop(ctx context.Context, r io.Reader, onData func(b []byte)) error {
	buf := make([]byte, s.config.InputConfig.ReadChunkSize)
	for {
		if ctx.Err() != nil {
			return nil
		}
		n, err := r.Read(buf)
		if n > 0 {
			onData(buf[:n])
		}
		if err != nil {
			if err == io.EOF || ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (s *Streamer) disposeTracks() error {
	var err error
	for _, t := range s.Tracks() {
		if derr := t.Dispose(); derr != nil && err == nil {
			err = derr
		}
	}
	return err
}

func (s *Streamer) runStatLoop(ctx context.Context, cancel context.CancelFunc, checkIdle bool) {
	interval := s.config.StatConfig.IntervalSec
	if interval == 0 {
		<-ctx.Done()
		return
	}
	idleTimeout := uint32(s.config.InputConfig.IdleTimeoutSec)
	var idleSec uint32

	t := time.NewTicker(time.Duration(interval) * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.stat.UpdateStat(interval)
			stat := s.stat.GetStat()
			base.Log.Infof("[%s] stat. read=%d(%dkbit/s), wrote=%d(%dkbit/s), frames=%d", s.uniqueKey,
				stat.ReadBytesSum, stat.ReadBitrateKbits, stat.WroteBytesSum, stat.WriteBitrateKbits, stat.FrameCount)

			if !checkIdle || idleTimeout == 0 {
				continue
			}
			if s.stat.IsReadAlive() {
				idleSec = 0
				continue
			}
			idleSec += interval
			if idleSec >= idleTimeout {
				base.Log.Warnf("[%s] input idle timeout. timeout=%ds", s.uniqueKey, idleTimeout)
				cancel()
				return
			}
		}
	}
}

type countingReader struct {
	r    io.Reader
	stat *base.StreamerStat
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.stat.AddReadBytes(n)
	return n, err
}
