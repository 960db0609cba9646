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
	"fmt"
	"io"
	"os"

	"github.com/q191201771/lalcollator/pkg/base"
)

// DetectInput 根据配置以及输入地址确定输入类型，以及es输入的编码格式
//
func DetectInput(urlCtx base.InputUrlContext, config InputConfig) (inputType string, codec base.AudioCodec, err error) {
	inputType = config.Type
	codec = base.ParseAudioCodec(config.Codec)

	if inputType == InputTypeAuto {
		switch urlCtx.Scheme {
		case base.InputSchemeSrt, base.InputSchemeStdin:
			inputType = InputTypeTs
		default:
			inputType = inputTypeOfFileType(urlCtx.FileType())
		}
	}
	if inputType == InputTypeEs && codec == base.AudioCodecUnknown {
		codec = base.ParseAudioCodec(urlCtx.FileType())
	}

	switch {
	case inputType == InputTypeAuto:
		return inputType, codec, fmt.Errorf("cannot detect input type. url=%s", urlCtx.Url)
	case inputType == InputTypeEs && codec == base.AudioCodecUnknown:
		return inputType, codec, fmt.Errorf("cannot detect es codec. url=%s", urlCtx.Url)
	}
	return inputType, codec, nil
}

func inputTypeOfFileType(ft string) string {
	switch ft {
	case "ts", "m2ts", "mts", "trp":
		return InputTypeTs
	case "vob", "mpg", "mpeg", "ps", "pes", "evo":
		return InputTypePs
	case "dts", "dtshd", "cpt", "ac3", "eac3", "ec3":
		return InputTypeEs
	}
	return InputTypeAuto
}

// OpenInput 打开输入源，srt输入会阻塞直到有对端连接上来
//
func OpenInput(ctx context.Context, urlCtx base.InputUrlContext) (io.ReadCloser, error) {
	switch urlCtx.Scheme {
	case base.InputSchemeFile:
		return os.Open(urlCtx.Filename)
	case base.InputSchemeStdin:
		return io.NopCloser(os.Stdin), nil
	case base.InputSchemeSrt:
		in, err := ListenSrt(ctx, urlCtx)
		if err != nil {
			return nil, err
		}
		return in, nil
	}
	return nil, fmt.Errorf("%w. unsupported scheme. url=%s", base.ErrInvalidUrl, urlCtx.Url)
}
