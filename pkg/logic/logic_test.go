// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/asticode/go-astits"
	"github.com/q191201771/lalcollator/pkg/base"
	"github.com/q191201771/lalcollator/pkg/collator"
	"github.com/q191201771/lalcollator/pkg/logic"
	"github.com/q191201771/lalcollator/pkg/mpegts"
	"github.com/q191201771/naza/pkg/assert"
	"github.com/q191201771/naza/pkg/nazalog"
)

// ac3Frame 48kHz，64kbit/s，256字节，bsid为8，acmod为2
func ac3Frame(fill byte) []byte {
	b := bytes.Repeat([]byte{fill}, 256)
	copy(b, []byte{0x0B, 0x77, 0x00, 0x00, 0x08, 0x40, 0x40, 0x00})
	return b
}

func newTestConfig(t *testing.T, format string) *logic.Config {
	config, err := logic.LoadConf([]byte(`{"stat": {"interval_sec": 0}}`))
	assert.Equal(t, nil, err)
	config.OutputConfig.Format = format
	config.OutputConfig.OutPath = t.TempDir()
	return config
}

func readDump(t *testing.T, filename string) []collator.Frame {
	df := collator.NewDumpFile()
	assert.Equal(t, nil, df.OpenToRead(filename))
	defer df.Close()
	var frames []collator.Frame
	for {
		f, err := df.ReadOneFrame()
		if err == io.EOF {
			return frames
		}
		assert.Equal(t, nil, err)
		frames = append(frames, f)
	}
}

func TestLoadConf(t *testing.T) {
	config, err := logic.LoadConf([]byte(`{}`))
	assert.Equal(t, nil, err)
	assert.Equal(t, logic.InputTypeAuto, config.InputConfig.Type)
	assert.Equal(t, 16*1024, config.InputConfig.ReadChunkSize)
	assert.Equal(t, logic.OutputFormatDump, config.OutputConfig.Format)
	assert.Equal(t, 4, config.DtshdConfig.MaxFalseLockReplays)
	assert.Equal(t, "default", config.Eac3Config.Profile)
	assert.Equal(t, uint32(5), config.StatConfig.IntervalSec)
	assert.Equal(t, nazalog.LevelInfo, config.LogConfig.Level)
	assert.Equal(t, true, config.LogConfig.IsToStdout)

	config, err = logic.LoadConf([]byte(`{
		"input": {"url": "a.vob", "type": "ps", "read_chunk_size": 188},
		"output": {"format": "none"},
		"dtshd": {"max_false_lock_replays": 0},
		"eac3": {"programme_id": 2, "profile": "msxx", "drop_oversized_frames": true},
		"log": {"level": 1, "is_to_stdout": false}
	}`))
	assert.Equal(t, nil, err)
	assert.Equal(t, "a.vob", config.InputConfig.Url)
	assert.Equal(t, logic.InputTypePs, config.InputConfig.Type)
	assert.Equal(t, 188, config.InputConfig.ReadChunkSize)
	assert.Equal(t, logic.OutputFormatNone, config.OutputConfig.Format)
	assert.Equal(t, 0, config.DtshdConfig.MaxFalseLockReplays)
	assert.Equal(t, 2, config.Eac3Config.ProgrammeId)
	assert.Equal(t, "msxx", config.Eac3Config.Profile)
	assert.Equal(t, true, config.Eac3Config.DropOversizedFrames)
	assert.Equal(t, nazalog.LevelDebug, config.LogConfig.Level)
	assert.Equal(t, false, config.LogConfig.IsToStdout)

	for _, raw := range []string{
		`{"input": {"type": "mp4"}}`,
		`{"output": {"format": "flv"}}`,
		`{"input": {"read_chunk_size": 0}}`,
		`{"eac3": {"profile": "unknown"}}`,
		`{"input": {"codec": "aac"}}`,
	} {
		_, err = logic.LoadConf([]byte(raw))
		assert.IsNotNil(t, err, raw)
	}
	_, err = logic.LoadConf([]byte(`{`))
	assert.IsNotNil(t, err)
}

func TestDetectInput(t *testing.T) {
	golden := []struct {
		url       string
		config    logic.InputConfig
		inputType string
		codec     base.AudioCodec
	}{
		{"/a/b.m2ts", logic.InputConfig{Type: logic.InputTypeAuto}, logic.InputTypeTs, base.AudioCodecUnknown},
		{"/a/VTS_01_1.VOB", logic.InputConfig{Type: logic.InputTypeAuto}, logic.InputTypePs, base.AudioCodecUnknown},
		{"/a/b.eac3", logic.InputConfig{Type: logic.InputTypeAuto}, logic.InputTypeEs, base.AudioCodecEac3},
		{"/a/b.dts", logic.InputConfig{Type: logic.InputTypeAuto}, logic.InputTypeEs, base.AudioCodecDtshd},
		{"/a/b.bin", logic.InputConfig{Type: logic.InputTypeEs, Codec: "dtshd"}, logic.InputTypeEs, base.AudioCodecDtshd},
		{"/a/b.bin", logic.InputConfig{Type: logic.InputTypeTs}, logic.InputTypeTs, base.AudioCodecUnknown},
		{"-", logic.InputConfig{Type: logic.InputTypeAuto}, logic.InputTypeTs, base.AudioCodecUnknown},
		{"srt://:9000", logic.InputConfig{Type: logic.InputTypeAuto}, logic.InputTypeTs, base.AudioCodecUnknown},
	}
	for _, item := range golden {
		urlCtx, err := base.ParseInputUrl(item.url, false)
		assert.Equal(t, nil, err)
		inputType, codec, err := logic.DetectInput(urlCtx, item.config)
		assert.Equal(t, nil, err, item.url)
		assert.Equal(t, item.inputType, inputType, item.url)
		assert.Equal(t, item.codec, codec, item.url)
	}

	urlCtx, _ := base.ParseInputUrl("/a/b.bin", false)
	_, _, err := logic.DetectInput(urlCtx, logic.InputConfig{Type: logic.InputTypeAuto})
	assert.IsNotNil(t, err)
	_, _, err = logic.DetectInput(urlCtx, logic.InputConfig{Type: logic.InputTypeEs})
	assert.IsNotNil(t, err)
}

func TestStreamerEs(t *testing.T) {
	stream := append(append(ac3Frame(0x11), ac3Frame(0x22)...), ac3Frame(0x33)...)

	config := newTestConfig(t, logic.OutputFormatEs)
	config.InputConfig.ReadChunkSize = 100
	s := logic.NewStreamer(config, "test.eac3")
	err := s.Run(context.Background(), logic.Input{
		R:     bytes.NewReader(stream),
		Type:  logic.InputTypeEs,
		Codec: base.AudioCodecEac3,
	})
	assert.Equal(t, nil, err)

	out, err := os.ReadFile(filepath.Join(config.OutputConfig.OutPath, "es.eac3"))
	assert.Equal(t, nil, err)
	assert.Equal(t, stream, out)

	stat := s.Stat()
	assert.Equal(t, uint64(len(stream)), stat.ReadBytesSum)
	assert.Equal(t, uint64(len(stream)), stat.WroteBytesSum)
	assert.Equal(t, uint64(3), stat.FrameCount)

	tracks := s.Tracks()
	assert.Equal(t, 1, len(tracks))
	assert.Equal(t, uint64(3), tracks[0].Stat().FrameCount)

	// 不支持的编码格式
	s = logic.NewStreamer(config, "test.aac")
	err = s.Run(context.Background(), logic.Input{
		R:     bytes.NewReader(stream),
		Type:  logic.InputTypeEs,
		Codec: base.AudioCodecUnknown,
	})
	assert.IsNotNil(t, err)
}

func TestStreamerPs(t *testing.T) {
	f1 := ac3Frame(0x11)
	f2 := ac3Frame(0x22)
	packHeader := []byte{0, 0, 1, 0xBA, 0x44, 0, 4, 0, 4, 1, 0x01, 0x89, 0xC3, 0xF8}

	var stream []byte
	stream = append(stream, packHeader...)
	stream = append(stream, mpegts.PackPes(mpegts.StreamIdPrivateStream1, append([]byte{0x80, 0x01, 0x00, 0x01}, f1...), 9000, true)...)
	stream = append(stream, packHeader...)
	stream = append(stream, mpegts.PackPes(mpegts.StreamIdPrivateStream1, append([]byte{0x80, 0x01, 0x00, 0x01}, f2...), 11880, true)...)
	// 没有声明stream_type的mpeg audio，忽略
	stream = append(stream, mpegts.PackPes(0xC0, []byte{0xFF, 0xFB, 0x90, 0x00}, 9000, true)...)
	stream = append(stream, 0, 0, 1, 0xB9)

	config := newTestConfig(t, logic.OutputFormatDump)
	config.InputConfig.ReadChunkSize = 7
	s := logic.NewStreamer(config, "test.vob")
	err := s.Run(context.Background(), logic.Input{
		R:    bytes.NewReader(stream),
		Type: logic.InputTypePs,
	})
	assert.Equal(t, nil, err)

	tracks := s.Tracks()
	assert.Equal(t, 1, len(tracks))

	frames := readDump(t, filepath.Join(config.OutputConfig.OutPath, "ps-bd-80.lcdump"))
	assert.Equal(t, 2, len(frames))
	assert.Equal(t, f1, frames[0].Payload)
	assert.Equal(t, uint64(9000), frames[0].Pts)
	assert.Equal(t, true, frames[0].HasPts)
	assert.Equal(t, f2, frames[1].Payload)
	assert.Equal(t, uint64(11880), frames[1].Pts)
	assert.Equal(t, base.AudioCodecEac3, frames[1].Codec)
	assert.Equal(t, 1536, frames[1].SampleCount)
}

func TestStreamerTs(t *testing.T) {
	const pid = 0x1100
	frames := [][]byte{ac3Frame(0x11), ac3Frame(0x22), ac3Frame(0x33)}

	var buf bytes.Buffer
	mx := astits.NewMuxer(context.Background(), &buf)
	assert.Equal(t, nil, mx.AddElementaryStream(astits.PMTElementaryStream{
		ElementaryPID: pid,
		StreamType:    astits.StreamType(mpegts.StreamTypeEac3),
	}))
	mx.SetPCRPID(pid)
	_, err := mx.WriteTables()
	assert.Equal(t, nil, err)
	for i, f := range frames {
		_, err = mx.WriteData(&astits.MuxerData{
			PID: pid,
			PES: &astits.PESData{
				Header: &astits.PESHeader{
					StreamID: mpegts.StreamIdPrivateStream1,
					OptionalHeader: &astits.PESOptionalHeader{
						MarkerBits:      2,
						PTSDTSIndicator: astits.PTSDTSIndicatorOnlyPTS,
						PTS:             &astits.ClockReference{Base: int64(9000 + i*2880)},
					},
				},
				Data: f,
			},
		})
		assert.Equal(t, nil, err)
	}

	config := newTestConfig(t, logic.OutputFormatPes)
	s := logic.NewStreamer(config, "test.ts")
	err = s.Run(context.Background(), logic.Input{
		R:    bytes.NewReader(buf.Bytes()),
		Type: logic.InputTypeTs,
	})
	assert.Equal(t, nil, err)
	assert.Equal(t, uint64(3), s.Stat().FrameCount)

	// 输出的PES流可以再作为ps输入
	out, err := os.ReadFile(filepath.Join(config.OutputConfig.OutPath, "ts-4352.pes"))
	assert.Equal(t, nil, err)
	var got [][]byte
	var pts []uint64
	u := mpegts.NewPsUnpacker().WithCallbackFunc(func(pes mpegts.Pes, payload []byte) {
		got = append(got, append([]byte(nil), payload...))
		pts = append(pts, pes.Pts)
	})
	u.Feed(out)
	assert.Equal(t, frames, got)
	assert.Equal(t, []uint64{9000, 11880, 14760}, pts)
}

func TestRunInputFileNotExist(t *testing.T) {
	config := newTestConfig(t, logic.OutputFormatNone)
	config.InputConfig.Url = filepath.Join(t.TempDir(), "not_exist.ts")
	err := logic.RunInput(context.Background(), config)
	assert.IsNotNil(t, err)
}

func TestRunInputFile(t *testing.T) {
	stream := append(ac3Frame(0x11), ac3Frame(0x22)...)
	filename := filepath.Join(t.TempDir(), "a.ac3")
	assert.Equal(t, nil, os.WriteFile(filename, stream, 0644))

	config := newTestConfig(t, logic.OutputFormatEs)
	config.InputConfig.Url = filename
	assert.Equal(t, nil, logic.RunInput(context.Background(), config))

	out, err := os.ReadFile(filepath.Join(config.OutputConfig.OutPath, "es.eac3"))
	assert.Equal(t, nil, err)
	assert.Equal(t, stream, out)
}
