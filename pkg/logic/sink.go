// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/q191201771/lalcollator/pkg/base"
	"github.com/q191201771/lalcollator/pkg/collator"
	"github.com/q191201771/lalcollator/pkg/mpegts"
)

const sinkBufSize = 64 * 1024

// Sink 逻辑帧的输出目标，一个track对应一个Sink
type Sink interface {
	Write(f collator.Frame) (int, error)
	Close() error
}

// NewSink
//
// @param trackName: 用于生成输出文件名
//
func NewSink(config OutputConfig, trackName string, codec base.AudioCodec) (Sink, error) {
	if config.Format == OutputFormatNone {
		return nullSink{}, nil
	}

	filename := filepath.Join(config.OutPath, fmt.Sprintf("%s.%s", trackName, sinkFileExt(config.Format, codec)))
	base.Log.Infof("open sink. format=%s, filename=%s", config.Format, filename)

	if config.Format == OutputFormatDump {
		df := collator.NewDumpFile()
		if err := df.OpenToWrite(filename); err != nil {
			return nil, err
		}
		return &dumpSink{df: df}, nil
	}

	if err := os.MkdirAll(config.OutPath, 0755); err != nil {
		return nil, err
	}
	fp, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	w := &fileSink{
		fp: fp,
		w:  base.NewBufWriter(fp, sinkBufSize),
	}
	if config.Format == OutputFormatPes {
		w.pack = func(f collator.Frame) []byte {
			return mpegts.PackPes(mpegts.StreamIdPrivateStream1, f.Payload, f.Pts, f.HasPts)
		}
	}
	return w, nil
}

func sinkFileExt(format string, codec base.AudioCodec) string {
	switch format {
	case OutputFormatDump:
		return "lcdump"
	case OutputFormatPes:
		return "pes"
	}
	switch codec {
	case base.AudioCodecDtshd:
		return "dtshd"
	case base.AudioCodecEac3:
		return "eac3"
	}
	return "es"
}

// ----- dump ----------------------------------------------------------------------------------------------------------

type dumpSink struct {
	df *collator.DumpFile
}

func (s *dumpSink) Write(f collator.Frame) (int, error) {
	if err := s.df.Write(f); err != nil {
		return 0, err
	}
	return len(f.Payload), nil
}

func (s *dumpSink) Close() error {
	return s.df.Close()
}

// ----- es / pes ------------------------------------------------------------------------------------------------------

type fileSink struct {
	fp   *os.File
	w    *base.BufWriter
	pack func(f collator.Frame) []byte // 为nil时直接写payload
}

func (s *fileSink) Write(f collator.Frame) (int, error) {
	b := f.Payload
	if s.pack != nil {
		b = s.pack(f)
	}
	return s.w.Write(b)
}

func (s *fileSink) Close() error {
	err := s.w.Flush()
	if cerr := s.fp.Close(); err == nil {
		err = cerr
	}
	return err
}

// ----- none ----------------------------------------------------------------------------------------------------------

type nullSink struct{}

func (nullSink) Write(f collator.Frame) (int, error) {
	return 0, nil
}

func (nullSink) Close() error {
	return nil
}
