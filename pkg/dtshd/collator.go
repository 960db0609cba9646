// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package dtshd

import (
	"github.com/q191201771/lalcollator/pkg/base"
	"github.com/q191201771/lalcollator/pkg/collator"
)

type Config struct {
	// MaxFalseLockReplays 同步在extension上、随后发现core时，丢弃已累积数据重新开始的最大连续次数
	MaxFalseLockReplays int
}

var DefaultConfig = Config{
	MaxFalseLockReplays: 4,
}

type ModConfigFn func(cfg *Config)

// Collator 将DTS / DTS-HD elementary stream切分成逻辑帧
//
// 逻辑帧的边界：
// - 以core开始的流，下一个core的同步字就是当前帧的结束
// - 只有extension的流，下一个与第一个extension substream id相同的extension就是当前帧的结束
//
// core头部的FSIZE并不总是可靠，所以core的大小由到下一个同步字的距离决定。
//
type Collator struct {
	uniqueKey string
	config    Config

	state     collator.State
	buf       *base.Buffer
	frame     []byte
	predictor *collator.SyncPredictor
	queue     *collator.FrameQueue
	ptsLatch  collator.PtsLatch
	dump      base.LogDump

	framePts    uint64
	frameHasPts bool
	syncHeader  SubFrameHeader // 同步时的第一个子帧头，决定逻辑帧的边界规则
	remaining   int            // ReadSubFrame / SkipSubFrame 剩余字节数
	falseLocks  int

	gotCoreFrameSize bool
	coreFrameSize    int
	skipHead         bool // 扫描下一个同步字时跳过当前位置的同步字

	lastSampleCount       int
	lastSamplingFrequency int

	stat collator.Stat
}

var _ collator.Collator = &Collator{}

func NewCollator(modOptions ...ModConfigFn) *Collator {
	config := DefaultConfig
	for _, fn := range modOptions {
		fn(&config)
	}
	c := &Collator{
		uniqueKey: base.GenUkDtshdCollator(),
		config:    config,
		buf:       base.NewBuffer(FrameHeaderSize * 256),
		predictor: collator.NewSyncPredictor(),
		queue:     collator.NewFrameQueue(collator.DefaultFrameQueueCapacity),
		dump:      base.NewLogDump(base.Log, base.CollatorDumpDebugMaxNum),
	}
	base.Log.Debugf("[%s] lifecycle new dtshd collator. config=%+v", c.uniqueKey, c.config)
	return c
}

func (c *Collator) UniqueKey() string {
	return c.uniqueKey
}

func (c *Collator) Reset() {
	c.buf.Reset()
	c.predictor.Reset()
	c.queue.Reset()
	c.ptsLatch.Reset()
	c.dump.ResetCount()
	c.resetFrame()
	c.state = collator.StateSeekingSyncWord
	c.syncHeader = SubFrameHeader{}
	c.lastSampleCount = 0
	c.lastSamplingFrequency = 0
	c.stat = collator.Stat{}
}

func (c *Collator) Push(b []byte) error {
	_, _ = c.buf.Write(b)
	return c.process()
}

func (c *Collator) PushPes(pes collator.PesPayload) error {
	if pes.HasPts {
		c.ptsLatch.Set(pes.Pts)
	}
	if len(pes.PrivateData) > 0 {
		if c.state == collator.StateSeekingSyncWord {
			c.HandlePesPrivateData(pes.PrivateData)
		}
		if c.predictor.PassPesPrivateDataToElementaryStreamHandler() {
			_, _ = c.buf.Write(pes.PrivateData)
		} else {
			c.predictor.AdjustAfterConsuming(len(pes.PrivateData))
		}
	}
	return c.Push(pes.Payload)
}

// HandlePesPrivateData 检查DVD私有数据区，根据first_access_unit_pointer预测同步字位置
//
// 预测的位置以缓存的当前读取位置为基准，私有数据区会被放在缓存中已有数据的后面。
//
func (c *Collator) HandlePesPrivateData(b []byte) {
	pd, err := collator.ParsePesPrivateData(b)
	if err != nil ||
		pd.SubStreamId&0xF8 != 0x88 ||
		pd.NumberOfFrameHeaders > collator.MaxNumberOfFrameHeaders ||
		pd.FirstAccessUnitPointer > collator.MaxFirstAccessUnitPointer {
		c.predictor.MakePrediction(collator.PredictionInvalid)
		return
	}
	c.predictor.MakePrediction(c.buf.Len() + pd.PredictedSyncOffset(true))
}

// Flush 把缓存中剩余的数据当作当前帧的结尾
//
func (c *Collator) Flush() {
	switch c.state {
	case collator.StateGotSynchronized, collator.StateSeekingFrameEnd:
		if !c.gotCoreFrameSize {
			// 还没有找到下一个同步字，剩余数据都属于当前子帧
			n := c.buf.Len()
			c.takeFramePts()
			c.frame = c.buf.Append(c.frame, n)
			c.coreFrameSize += n
		}
		if len(c.frame) > 0 {
			if err := c.emit(); err != nil {
				c.onError(err)
			}
		}
	}
	if n := c.buf.Len(); n > 0 {
		c.stat.SkippedBytes += uint64(n)
	}
	c.buf.Reset()
	c.resetFrame()
	c.state = collator.StateSeekingSyncWord
}

func (c *Collator) Poll() (collator.Frame, bool) {
	return c.queue.Poll()
}

func (c *Collator) Stat() collator.Stat {
	stat := c.stat
	stat.QueueGrowCount = c.queue.GrowCount()
	return stat
}

// ---------------------------------------------------------------------------------------------------------------------

func (c *Collator) process() error {
	for {
		switch c.state {
		case collator.StateSeekingSyncWord:
			if !c.FindNextSyncWord() {
				return nil
			}
		case collator.StateGotSynchronized, collator.StateSeekingFrameEnd:
			length, next, ok, err := c.DecideCollatorNextStateAndGetLength()
			if err != nil {
				c.onError(err)
				c.resync(true)
				return err
			}
			if !ok {
				return nil
			}
			c.remaining = length
			c.state = next
		case collator.StateReadSubFrame:
			if c.buf.Len() < c.remaining {
				return nil
			}
			c.takeFramePts()
			c.frame = c.buf.Append(c.frame, c.remaining)
			c.remaining = 0
			c.state = collator.StateSeekingFrameEnd
		case collator.StateSkipSubFrame:
			n := c.buf.Skip(c.remaining)
			c.stat.SkippedBytes += uint64(n)
			c.remaining -= n
			if c.remaining > 0 {
				return nil
			}
			c.state = collator.StateSeekingFrameEnd
		case collator.StateGotCompleteFrame:
			if err := c.emit(); err != nil {
				c.onError(err)
				// 缓存头部是下一帧的同步字，不需要丢弃
				c.resync(false)
				return err
			}
			c.state = collator.StateGotSynchronized
		default:
			c.state = collator.StateSeekingSyncWord
		}
	}
}

// FindNextSyncWord 在缓存中查找一个头部合法的同步字，找到后缓存头部就是同步字
//
// @return 是否找到
//
func (c *Collator) FindNextSyncWord() bool {
	b := c.buf.Bytes()
	stop := len(b) - (SyncWordWindow - 1)
	if stop < 0 {
		stop = 0
	}
	for i := 0; i < stop; i++ {
		if MatchSyncWord(b[i:]) == SyncKindNone {
			continue
		}
		if len(b)-i < FrameHeaderSize {
			// 等更多的数据再判断
			stop = i
			break
		}
		h, err := ParseSubFrameHeader(b[i:], ParseModeForSynchro)
		if err != nil {
			c.dump.DumpRejected(c.uniqueKey, err, b[i:])
			continue
		}

		c.predictor.Verify(i)
		c.discard(i)
		c.resetFrame()
		c.syncHeader = h
		c.gotCoreFrameSize = h.Type == SubFrameTypeExtension
		c.state = collator.StateGotSynchronized
		base.Log.Debugf("[%s] synchronized. skipped=%d, header=%s", c.uniqueKey, i, h.DebugString())
		return true
	}
	c.discard(stop)
	return false
}

// FindAnyNextSyncWord 查找任意同步字，不检查头部
//
// @param skipHead: 为true时不匹配`b`起始位置的同步字
//
// @return 同步字在`b`中的位置，-1表示没有找到
//
func FindAnyNextSyncWord(b []byte, skipHead bool) int {
	i := 0
	if skipHead {
		i = 1
	}
	for ; i+SyncWordWindow <= len(b); i++ {
		if MatchSyncWord(b[i:]) != SyncKindNone {
			return i
		}
	}
	return -1
}

// DecideCollatorNextStateAndGetLength 根据缓存头部，决定下一个状态，以及该状态需要处理的字节数
//
// @return ok: false表示需要更多数据
//
func (c *Collator) DecideCollatorNextStateAndGetLength() (length int, next collator.State, ok bool, err error) {
	b := c.buf.Bytes()

	if !c.gotCoreFrameSize {
		// core的大小由到下一个同步字的距离决定
		if pos := FindAnyNextSyncWord(b, c.skipHead); pos != -1 {
			c.coreFrameSize += pos
			c.gotCoreFrameSize = true
			c.skipHead = false
			return pos, collator.StateReadSubFrame, true, nil
		}
		n := len(b) - (SyncWordWindow - 1)
		if n <= 0 {
			return 0, c.state, false, nil
		}
		if c.coreFrameSize+n > MaxFrameSize {
			return 0, c.state, false, base.ErrDtshdFrameTooLarge
		}
		c.coreFrameSize += n
		c.skipHead = false
		return n, collator.StateReadSubFrame, true, nil
	}

	if len(b) < FrameHeaderSize {
		return 0, c.state, false, nil
	}
	h, err := ParseSubFrameHeader(b, ParseModeForSynchro)
	if err != nil {
		c.dump.DumpRejected(c.uniqueKey, err, b)
		return 0, c.state, false, err
	}

	switch {
	case h.Type == SubFrameTypeCore && c.syncHeader.Type == SubFrameTypeExtension:
		// 同步在了extension上，实际上是core+extension的流
		c.falseLocks++
		if c.falseLocks > c.config.MaxFalseLockReplays {
			return 0, c.state, false, base.ErrDtshdUnrecoverableDesync
		}
		base.Log.Debugf("[%s] core after extension, restart frame from core. dropped=%d", c.uniqueKey, len(c.frame))
		c.stat.SkippedBytes += uint64(len(c.frame))
		c.frame = nil
		c.frameHasPts = false
		c.syncHeader = h
		c.gotCoreFrameSize = false
		c.coreFrameSize = 0
		c.skipHead = true
		return 0, collator.StateGotSynchronized, true, nil
	case h.Type == SubFrameTypeCore && c.syncHeader.Type == SubFrameTypeCore && c.state != collator.StateGotSynchronized:
		return 0, collator.StateGotCompleteFrame, true, nil
	case h.Type == SubFrameTypeExtension && c.syncHeader.Type == SubFrameTypeExtension &&
		h.SubStreamId == c.syncHeader.SubStreamId && c.state != collator.StateGotSynchronized:
		return 0, collator.StateGotCompleteFrame, true, nil
	}

	if len(c.frame)+h.Length > MaxFrameSize {
		return 0, c.state, false, base.ErrDtshdFrameTooLarge
	}
	return h.Length, collator.StateReadSubFrame, true, nil
}

// ---------------------------------------------------------------------------------------------------------------------

func (c *Collator) emit() error {
	info, err := ParseFrameHeader(c.frame, len(c.frame), c.coreFrameSize)
	if err != nil {
		return err
	}
	if info.SkippedAt > 0 {
		base.Log.Debugf("[%s] unknown data in frame. pos=%d, len=%d", c.uniqueKey, info.SkippedAt, len(c.frame))
	}

	// 没有static fields的extension只有长度信息，沿用之前的采样率和采样数
	if info.SampleCount == 0 {
		info.SampleCount = c.lastSampleCount
	}
	if info.SamplingFrequency == 0 {
		info.SamplingFrequency = c.lastSamplingFrequency
	}
	c.lastSampleCount = info.SampleCount
	c.lastSamplingFrequency = info.SamplingFrequency

	f := collator.Frame{
		Codec:             base.AudioCodecDtshd,
		Payload:           c.frame,
		SampleCount:       info.SampleCount,
		SamplingFrequency: info.SamplingFrequency,
		DataSpecificFlags: c.coreFrameSize,
		Core:              info.Core,
		Pts:               c.framePts,
		HasPts:            c.frameHasPts,
	}
	c.queue.Push(f)
	c.stat.FrameCount++
	base.Log.Tracef("[%s] frame. %s", c.uniqueKey, f.DebugString())

	c.predictor.ResetHeuristics()
	c.falseLocks = 0
	c.frame = nil
	c.frameHasPts = false
	c.coreFrameSize = 0
	c.gotCoreFrameSize = c.syncHeader.Type == SubFrameTypeExtension
	c.skipHead = true
	return nil
}

func (c *Collator) takeFramePts() {
	if len(c.frame) == 0 {
		c.framePts, c.frameHasPts = c.ptsLatch.Take()
	}
}

func (c *Collator) onError(err error) {
	c.stat.ErrorCount++
	base.Log.Warnf("[%s] collate failed. state=%s, frame=%d, err=%+v", c.uniqueKey, c.state.ReadableString(), len(c.frame), err)
}

// resync 放弃当前帧，回到查找同步字的状态
//
// @param dropHead: 为true时丢弃缓存头部一个字节，避免在同一个位置反复失败
//
func (c *Collator) resync(dropHead bool) {
	c.stat.ResyncCount++
	c.stat.SkippedBytes += uint64(len(c.frame))
	c.resetFrame()
	if dropHead {
		c.discard(1)
	}
	c.state = collator.StateSeekingSyncWord
}

func (c *Collator) discard(n int) {
	n = c.buf.Skip(n)
	c.predictor.AdjustAfterConsuming(n)
	c.stat.SkippedBytes += uint64(n)
}

func (c *Collator) resetFrame() {
	c.frame = nil
	c.frameHasPts = false
	c.remaining = 0
	c.falseLocks = 0
	c.gotCoreFrameSize = false
	c.coreFrameSize = 0
	c.skipHead = true
}
