// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"errors"
	"fmt"
)

// ----- 通用的 ---------------------------------------------------------------------------------------------------------

var (
	ErrShortBuffer  = errors.New("lalcollator: buffer too short")
	ErrFileNotExist = errors.New("lalcollator: file not exist")
	ErrInvalidUrl   = errors.New("lalcollator: invalid url")
)

func NewErrShortBuffer(need, actual int, msg string) error {
	return fmt.Errorf("%w. need=%d, actual=%d, msg=%s", ErrShortBuffer, need, actual, msg)
}

// ----- pkg/bitstream -------------------------------------------------------------------------------------------------

var (
	ErrBitstreamTooManyBits   = errors.New("lalcollator.bitstream: read more than 32 bits at once")
	ErrBitstreamShortBuffer   = errors.New("lalcollator.bitstream: read beyond end of buffer")
	ErrBitstreamInvalidCursor = errors.New("lalcollator.bitstream: invalid cursor position")
)

// ----- pkg/collator --------------------------------------------------------------------------------------------------

var ErrCollatorDumpFileVersion = errors.New("lalcollator.collator: unsupported dump file version")

// ----- pkg/dtshd -----------------------------------------------------------------------------------------------------

var (
	ErrDtshdUnknownSyncWord     = errors.New("lalcollator.dtshd: unknown sync word")
	ErrDtshdInvalidCoreHeader   = errors.New("lalcollator.dtshd: invalid core header")
	ErrDtshdCrcMismatch         = errors.New("lalcollator.dtshd: substream header crc mismatch")
	ErrDtshdInvalidSubstream    = errors.New("lalcollator.dtshd: invalid substream header")
	ErrDtshdUnknownCodingMask   = errors.New("lalcollator.dtshd: unknown coding component mask")
	ErrDtshdLengthMismatch      = errors.New("lalcollator.dtshd: accumulated length mismatch")
	ErrDtshdUnrecoverableDesync = errors.New("lalcollator.dtshd: too many false extension locks")
	ErrDtshdFrameTooLarge       = errors.New("lalcollator.dtshd: no sync word within max frame size")
)

func NewErrDtshdInvalidCoreHeader(field string, value uint32) error {
	return fmt.Errorf("%w. field=%s, value=%d", ErrDtshdInvalidCoreHeader, field, value)
}

func NewErrDtshdCrcMismatch(expected, actual uint16) error {
	return fmt.Errorf("%w. expected=0x%04x, actual=0x%04x", ErrDtshdCrcMismatch, expected, actual)
}

func NewErrDtshdLengthMismatch(given, accumulated int) error {
	return fmt.Errorf("%w. given=%d, accumulated=%d", ErrDtshdLengthMismatch, given, accumulated)
}

// ----- pkg/eac3 ------------------------------------------------------------------------------------------------------

var (
	ErrEac3SyncWord                  = errors.New("lalcollator.eac3: invalid sync word")
	ErrEac3InvalidFrequency          = errors.New("lalcollator.eac3: invalid frequency code")
	ErrEac3InvalidRateCode           = errors.New("lalcollator.eac3: invalid rate code")
	ErrEac3ReservedStreamType        = errors.New("lalcollator.eac3: reserved stream type")
	ErrEac3InvalidFrameSize          = errors.New("lalcollator.eac3: invalid frame size")
	ErrEac3AccumulatedTooManySamples = errors.New("lalcollator.eac3: accumulated too many samples")
)

func NewErrEac3AccumulatedTooManySamples(accumulated, incoming int) error {
	return fmt.Errorf("%w. accumulated=%d, incoming=%d", ErrEac3AccumulatedTooManySamples, accumulated, incoming)
}

// ----- pkg/mpegts ----------------------------------------------------------------------------------------------------

var (
	ErrMpegtsPesStartCode    = errors.New("lalcollator.mpegts: invalid pes start code")
	ErrMpegtsPesMarker       = errors.New("lalcollator.mpegts: pes optional header marker mismatch")
	ErrMpegtsPesHeaderLength = errors.New("lalcollator.mpegts: pes header data too short for pts/dts")
)

// ---------------------------------------------------------------------------------------------------------------------
