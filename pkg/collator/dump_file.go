// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package collator

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/q191201771/lalcollator/pkg/base"
	"github.com/q191201771/naza/pkg/bele"
	"github.com/q191201771/naza/pkg/nazabytes"
)

// DumpFile 把collator吐出的逻辑帧连同元信息一起保存到文件，用于离线比对
//
// <message>
// ver                [32b] 当前为1
// codec              [32b]
// len                [32b] payload长度
// sample_count       [32b]
// sampling_frequency [32b]
// data_specific      [32b]
// flags              [32b] bit0 HasPts, bit1 有Core, bit2 IsSubStreamCore
// core_offset        [32b]
// core_size          [32b]
// pts                [64b]
// payload
//
type DumpFile struct {
	file *os.File
	w    *base.BufWriter // 只在写模式下有效
}

const (
	dumpFileVersion    = 1
	dumpFileHeaderSize = 44
	dumpFileBufSize    = 64 * 1024

	dumpFlagHasPts          = 1
	dumpFlagHasCore         = 2
	dumpFlagIsSubStreamCore = 4
)

func NewDumpFile() *DumpFile {
	return &DumpFile{}
}

func (d *DumpFile) OpenToWrite(filename string) (err error) {
	dir := filepath.Dir(filename)
	if err = os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if d.file, err = os.Create(filename); err != nil {
		return err
	}
	d.w = base.NewBufWriter(d.file, dumpFileBufSize)
	return nil
}

func (d *DumpFile) OpenToRead(filename string) (err error) {
	d.file, err = os.Open(filename)
	return
}

func (d *DumpFile) Write(f Frame) error {
	_, err := d.w.Write(d.pack(f))
	return err
}

// ReadOneFrame
//
// @return err: 文件结束时返回io.EOF
//
func (d *DumpFile) ReadOneFrame() (f Frame, err error) {
	header := make([]byte, dumpFileHeaderSize)
	if _, err = io.ReadFull(d.file, header); err != nil {
		return
	}
	if ver := bele.BeUint32(header); ver != dumpFileVersion {
		return f, fmt.Errorf("%w. ver=%d", base.ErrCollatorDumpFileVersion, ver)
	}
	f.Codec = base.AudioCodec(int32(bele.BeUint32(header[4:])))
	f.Payload = make([]byte, bele.BeUint32(header[8:]))
	f.SampleCount = int(bele.BeUint32(header[12:]))
	f.SamplingFrequency = int(bele.BeUint32(header[16:]))
	f.DataSpecificFlags = int(bele.BeUint32(header[20:]))
	flags := bele.BeUint32(header[24:])
	f.HasPts = flags&dumpFlagHasPts != 0
	if flags&dumpFlagHasCore != 0 {
		f.Core = &CoreSubstream{
			Offset:          int(bele.BeUint32(header[28:])),
			Size:            int(bele.BeUint32(header[32:])),
			IsSubStreamCore: flags&dumpFlagIsSubStreamCore != 0,
		}
	}
	f.Pts = bele.BeUint64(header[36:])
	if _, err = io.ReadFull(d.file, f.Payload); err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return
}

func (d *DumpFile) Close() error {
	if d.file == nil {
		return nil
	}
	var err error
	if d.w != nil {
		err = d.w.Flush()
	}
	if cerr := d.file.Close(); err == nil {
		err = cerr
	}
	return err
}

// DumpString 调试用，帧信息加上payload头部的hex
func DumpString(f Frame) string {
	return fmt.Sprintf("%s, hex: %s", f.DebugString(), hex.Dump(nazabytes.Prefix(f.Payload, 16)))
}

// ---------------------------------------------------------------------------------------------------------------------

func (d *DumpFile) pack(f Frame) []byte {
	ret := make([]byte, dumpFileHeaderSize+len(f.Payload))
	var flags uint32
	if f.HasPts {
		flags |= dumpFlagHasPts
	}
	bele.BePutUint32(ret, dumpFileVersion)
	bele.BePutUint32(ret[4:], uint32(f.Codec))
	bele.BePutUint32(ret[8:], uint32(len(f.Payload)))
	bele.BePutUint32(ret[12:], uint32(f.SampleCount))
	bele.BePutUint32(ret[16:], uint32(f.SamplingFrequency))
	bele.BePutUint32(ret[20:], uint32(f.DataSpecificFlags))
	if f.Core != nil {
		flags |= dumpFlagHasCore
		if f.Core.IsSubStreamCore {
			flags |= dumpFlagIsSubStreamCore
		}
		bele.BePutUint32(ret[28:], uint32(f.Core.Offset))
		bele.BePutUint32(ret[32:], uint32(f.Core.Size))
	}
	bele.BePutUint32(ret[24:], flags)
	bele.BePutUint64(ret[36:], f.Pts)
	copy(ret[dumpFileHeaderSize:], f.Payload)
	return ret
}
