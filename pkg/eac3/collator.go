// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package eac3

import (
	"github.com/q191201771/lalcollator/pkg/base"
	"github.com/q191201771/lalcollator/pkg/collator"
	"github.com/q191201771/naza/pkg/bele"
)

// headerPeekSize 确定帧类型和帧长度需要的字节数，AC3帧头的lfeon最远在第58个比特
const headerPeekSize = 8

type Profile int

const (
	// ProfileDefault 只累积目标节目的independent帧以及跟在它后面的dependent帧
	ProfileDefault Profile = iota

	// ProfileMsxx 所有子流都放入逻辑帧，由下游选择，采样数仍然只统计目标节目
	ProfileMsxx
)

func (p Profile) ReadableString() string {
	if p == ProfileMsxx {
		return "msxx"
	}
	return "default"
}

type Config struct {
	ProgrammeId int // 目标节目的independent substream id
	Profile     Profile

	// DropOversizedFrames 累积的采样数将超过1536时，丢弃已累积的数据而不是返回错误
	DropOversizedFrames bool
}

var DefaultConfig = Config{
	ProgrammeId:         0,
	Profile:             ProfileDefault,
	DropOversizedFrames: false,
}

type ModConfigFn func(cfg *Config)

// Collator 将AC3 / E-AC3 elementary stream切分成1536个采样的逻辑帧
//
// 逻辑帧的边界：
// - AC3帧或bsid非法的帧，本身就是一个逻辑帧(后面可以跟dependent帧)
// - 目标节目的independent帧累积到1536个采样，或者遇到convsync置位的independent帧
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
	remaining   int // ReadSubFrame / SkipSubFrame 剩余字节数

	accumulatedSamples int
	samplingFrequency  int  // 逻辑帧中第一个子帧的采样率
	targetBytes        int  // 逻辑帧中属于目标节目的字节数
	inTarget           bool // 最近的independent帧属于目标节目，后面的dependent帧也属于目标节目
	readingTarget      bool // 当前ReadSubFrame读取的子帧属于目标节目

	stat collator.Stat
}

var _ collator.Collator = &Collator{}

func NewCollator(modOptions ...ModConfigFn) *Collator {
	config := DefaultConfig
	for _, fn := range modOptions {
		fn(&config)
	}
	c := &Collator{
		uniqueKey: base.GenUkEac3Collator(),
		config:    config,
		buf:       base.NewBuffer(MaxFrameBytes),
		predictor: collator.NewSyncPredictor(),
		queue:     collator.NewFrameQueue(collator.DefaultFrameQueueCapacity),
		dump:      base.NewLogDump(base.Log, base.CollatorDumpDebugMaxNum),
	}
	base.Log.Debugf("[%s] lifecycle new eac3 collator. config=%+v", c.uniqueKey, c.config)
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
// first_access_unit_pointer为0时认为私有数据区不合法
//
func (c *Collator) HandlePesPrivateData(b []byte) {
	pd, err := collator.ParsePesPrivateData(b)
	if err != nil ||
		pd.SubStreamId&0xB8 != 0x80 ||
		pd.NumberOfFrameHeaders > collator.MaxNumberOfFrameHeaders ||
		pd.FirstAccessUnitPointer == 0 ||
		pd.FirstAccessUnitPointer > collator.MaxFirstAccessUnitPointer {
		c.predictor.MakePrediction(collator.PredictionInvalid)
		return
	}
	c.predictor.MakePrediction(c.buf.Len() + pd.PredictedSyncOffset(false))
}

// Flush 处理缓存中剩余的完整子帧，然后把已累积的数据作为最后一帧吐出
//
func (c *Collator) Flush() {
	if err := c.process(); err != nil {
		base.Log.Debugf("[%s] process failed while flushing. err=%+v", c.uniqueKey, err)
	}
	switch c.state {
	case collator.StateGotSynchronized, collator.StateSeekingFrameEnd:
		if len(c.frame) > 0 {
			c.emit()
		}
	}
	if n := c.buf.Len(); n > 0 {
		c.stat.SkippedBytes += uint64(n)
	}
	c.stat.SkippedBytes += uint64(len(c.frame))
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
				c.validateFrame()
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
			if c.readingTarget {
				c.targetBytes += c.remaining
			}
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
		case collator.StateValidateFrame:
			c.validateFrame()
		case collator.StateGotCompleteFrame:
			c.emit()
			c.state = collator.StateGotSynchronized
		default:
			c.state = collator.StateSeekingSyncWord
		}
	}
}

// FindNextSyncWord 在缓存中查找可以作为逻辑帧起始的同步字，找到后缓存头部就是同步字
//
// 可以作为起始的帧：AC3帧，bsid非法的帧，目标节目中1536个采样或者convsync置位的independent帧
//
// @return 是否找到
//
func (c *Collator) FindNextSyncWord() bool {
	b := c.buf.Bytes()
	stop := len(b) - (MinHeaderSize - 1)
	if stop < 0 {
		stop = 0
	}
	for i := 0; i < stop; i++ {
		if bele.BeUint16(b[i:]) != SyncWord {
			continue
		}
		h, ok, err := c.peekHeader(b[i:])
		if err != nil {
			c.dump.DumpRejected(c.uniqueKey, err, b[i:])
			continue
		}
		if !ok {
			stop = i
			break
		}
		if !c.isFrameStart(h) {
			continue
		}

		c.predictor.Verify(i)
		c.discard(i)
		c.resetFrame()
		c.state = collator.StateGotSynchronized
		base.Log.Debugf("[%s] synchronized. skipped=%d, header=%s", c.uniqueKey, i, h.DebugString())
		return true
	}
	c.discard(stop)
	return false
}

func (c *Collator) isFrameStart(h FrameHeader) bool {
	switch h.Type {
	case FrameTypeAc3:
		return true
	case FrameTypeInvalidBsid:
		return h.Length > 0
	case FrameTypeIndependent:
		return h.SubStreamId == c.config.ProgrammeId && (h.SampleCount == SamplesPerFrame || h.ConvSync)
	}
	return false
}

// peekHeader 解析`b`头部的帧头，数据足够时才遍历BSI
//
// @return ok: false表示需要更多数据
//
func (c *Collator) peekHeader(b []byte) (h FrameHeader, ok bool, err error) {
	if len(b) < headerPeekSize {
		return h, false, nil
	}
	h, err = ParseHeader(b[:headerPeekSize], false)
	if err != nil {
		return h, false, err
	}
	// BSI不会超出帧本身
	need := h.Length
	if need > MaxHeaderSize {
		need = MaxHeaderSize
	}
	if need < MinHeaderSize {
		need = MinHeaderSize
	}
	if len(b) < need {
		return h, false, nil
	}
	h, err = ParseHeader(b[:need], true)
	return h, err == nil, err
}

// DecideCollatorNextStateAndGetLength 根据缓存头部的帧头，决定下一个状态，以及该状态需要处理的字节数
//
// @return ok: false表示需要更多数据
//
func (c *Collator) DecideCollatorNextStateAndGetLength() (length int, next collator.State, ok bool, err error) {
	b := c.buf.Bytes()
	h, ok, err := c.peekHeader(b)
	if err != nil {
		c.dump.DumpRejected(c.uniqueKey, err, b)
		return 0, c.state, false, err
	}
	if !ok {
		return 0, c.state, false, nil
	}

	c.readingTarget = false
	switch h.Type {
	case FrameTypeAc3, FrameTypeInvalidBsid:
		if len(c.frame) > 0 {
			return 0, collator.StateGotCompleteFrame, true, nil
		}
		if h.Length == 0 {
			base.Log.Debugf("[%s] invalid bsid without length. bsid=%d", c.uniqueKey, h.Bsid)
			return 0, collator.StateValidateFrame, true, nil
		}
		c.accumulatedSamples = SamplesPerFrame
		c.samplingFrequency = h.SamplingFrequency
		c.inTarget = true
		c.readingTarget = true
		return h.Length, collator.StateReadSubFrame, true, nil

	case FrameTypeIndependent:
		if h.SubStreamId != c.config.ProgrammeId {
			c.inTarget = false
			if c.config.Profile == ProfileMsxx {
				return c.readOrSkip(h)
			}
			return h.Length, collator.StateSkipSubFrame, true, nil
		}

		if c.accumulatedSamples > 0 && (h.ConvSync || c.accumulatedSamples >= SamplesPerFrame) {
			return 0, collator.StateGotCompleteFrame, true, nil
		}
		if c.accumulatedSamples+h.SampleCount > SamplesPerFrame {
			if !c.config.DropOversizedFrames {
				return 0, c.state, false, base.NewErrEac3AccumulatedTooManySamples(c.accumulatedSamples, h.SampleCount)
			}
			base.Log.Debugf("[%s] drop oversized frame. accumulated=%d, incoming=%d", c.uniqueKey, c.accumulatedSamples, h.SampleCount)
			c.stat.SkippedBytes += uint64(len(c.frame))
			c.resetFrame()
		}
		if c.accumulatedSamples == 0 {
			c.samplingFrequency = h.SamplingFrequency
		}
		c.accumulatedSamples += h.SampleCount
		c.inTarget = true
		c.readingTarget = true
		return c.readOrSkip(h)

	case FrameTypeDependent:
		if c.inTarget {
			c.readingTarget = true
			return c.readOrSkip(h)
		}
		if c.config.Profile == ProfileMsxx {
			return c.readOrSkip(h)
		}
		return h.Length, collator.StateSkipSubFrame, true, nil
	}

	return h.Length, collator.StateSkipSubFrame, true, nil
}

// readOrSkip 累积的字节数超过上限时跳过该子帧
func (c *Collator) readOrSkip(h FrameHeader) (int, collator.State, bool, error) {
	if len(c.frame)+h.Length > MaxFrameBytes+MaxHeaderSize {
		base.Log.Debugf("[%s] frame too large, skip sub frame. accumulated=%d, header=%s", c.uniqueKey, len(c.frame), h.DebugString())
		c.readingTarget = false
		return h.Length, collator.StateSkipSubFrame, true, nil
	}
	return h.Length, collator.StateReadSubFrame, true, nil
}

// ---------------------------------------------------------------------------------------------------------------------

func (c *Collator) emit() {
	f := collator.Frame{
		Codec:             base.AudioCodecEac3,
		Payload:           c.frame,
		SampleCount:       c.accumulatedSamples,
		SamplingFrequency: c.samplingFrequency,
		DataSpecificFlags: c.targetBytes,
		Pts:               c.framePts,
		HasPts:            c.frameHasPts,
	}
	c.queue.Push(f)
	c.stat.FrameCount++
	base.Log.Tracef("[%s] frame. %s", c.uniqueKey, f.DebugString())

	c.predictor.ResetHeuristics()
	c.resetFrame()
}

// validateFrame 当前子帧不可用时，检查已累积的数据，够一个逻辑帧就吐出，否则丢弃，然后重新查找同步字
//
func (c *Collator) validateFrame() {
	if len(c.frame) > 0 && c.accumulatedSamples >= SamplesPerFrame {
		c.emit()
	}
	c.resync()
}

func (c *Collator) takeFramePts() {
	if len(c.frame) == 0 {
		c.framePts, c.frameHasPts = c.ptsLatch.Take()
	}
}

func (c *Collator) onError(err error) {
	c.stat.ErrorCount++
	base.Log.Warnf("[%s] collate failed. state=%s, frame=%d, samples=%d, err=%+v",
		c.uniqueKey, c.state.ReadableString(), len(c.frame), c.accumulatedSamples, err)
}

// resync 放弃当前帧，丢弃缓存头部一个字节，回到查找同步字的状态
//
func (c *Collator) resync() {
	c.stat.ResyncCount++
	c.stat.SkippedBytes += uint64(len(c.frame))
	c.resetFrame()
	c.discard(1)
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
	c.accumulatedSamples = 0
	c.samplingFrequency = 0
	c.targetBytes = 0
	c.inTarget = false
	c.readingTarget = false
}
