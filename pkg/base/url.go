// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// 见单元测试

const (
	InputSchemeFile  = "file"
	InputSchemeStdin = "stdin"
	InputSchemeSrt   = "srt"
)

const DefaultSrtPort = 9000

// InputUrlContext 输入地址，支持以下几种形式：
//
// - 本地文件，比如`/data/movie.ts`，或者`file:///data/movie.ts`
// - 标准输入，`-`
// - srt监听地址，比如`srt://0.0.0.0:9000?latency=200ms&streamid=abc`
//
type InputUrlContext struct {
	Url string

	Scheme string

	// Filename Scheme为file时有效
	Filename string

	// 以下Scheme为srt时有效
	Host         string
	Port         int
	HostWithPort string
	Options      map[string]string // 透传给srt socket的选项，比如latency, streamid, passphrase
	Latency      time.Duration
}

// FileType 文件扩展名，不包含'.'，转为小写
func (u *InputUrlContext) FileType() string {
	index := strings.LastIndexByte(u.Filename, '.')
	if index == -1 || strings.ContainsAny(u.Filename[index:], "/\\") {
		return ""
	}
	return strings.ToLower(u.Filename[index+1:])
}

// ParseInputUrl
//
// @param checkFileExist: 是否检查本地文件是否存在
//
func ParseInputUrl(rawUrl string, checkFileExist bool) (ctx InputUrlContext, err error) {
	ctx.Url = rawUrl

	if rawUrl == "" {
		return ctx, fmt.Errorf("%w. url is empty", ErrInvalidUrl)
	}
	if rawUrl == "-" {
		ctx.Scheme = InputSchemeStdin
		return ctx, nil
	}

	// 不带scheme的都认为是本地文件路径，包括windows下的`C:\a.ts`
	index := strings.Index(rawUrl, "://")
	if index == -1 {
		ctx.Scheme = InputSchemeFile
		ctx.Filename = rawUrl
		return ctx, checkFile(ctx.Filename, checkFileExist)
	}

	stdUrl, err := url.Parse(rawUrl)
	if err != nil {
		return ctx, err
	}

	switch strings.ToLower(stdUrl.Scheme) {
	case InputSchemeFile:
		ctx.Scheme = InputSchemeFile
		ctx.Filename = stdUrl.Path
		if ctx.Filename == "" {
			return ctx, fmt.Errorf("%w. url=%s", ErrInvalidUrl, rawUrl)
		}
		return ctx, checkFile(ctx.Filename, checkFileExist)
	case InputSchemeSrt:
		ctx.Scheme = InputSchemeSrt
		return ctx, parseSrtUrl(stdUrl, &ctx)
	}
	return ctx, fmt.Errorf("%w. unsupported scheme. url=%s", ErrInvalidUrl, rawUrl)
}

// ----- private -------------------------------------------------------------------------------------------------------

func parseSrtUrl(stdUrl *url.URL, ctx *InputUrlContext) error {
	h, p, err := net.SplitHostPort(stdUrl.Host)
	if err != nil {
		// url中端口不存在
		ctx.Host = stdUrl.Host
		ctx.Port = DefaultSrtPort
	} else {
		ctx.Host = h
		if ctx.Port, err = strconv.Atoi(p); err != nil {
			return fmt.Errorf("%w. invalid port. url=%s", ErrInvalidUrl, ctx.Url)
		}
	}
	if ctx.Host == "" {
		// 监听所有地址
		ctx.Host = "0.0.0.0"
	}
	if ctx.Port <= 0 || ctx.Port > 65535 {
		return fmt.Errorf("%w. invalid port. url=%s", ErrInvalidUrl, ctx.Url)
	}
	ctx.HostWithPort = net.JoinHostPort(ctx.Host, strconv.Itoa(ctx.Port))

	ctx.Options = make(map[string]string)
	for k, v := range stdUrl.Query() {
		if len(v) == 0 {
			continue
		}
		ctx.Options[k] = v[0]
	}
	// 作为collator的输入源，只支持live模式
	if _, ok := ctx.Options["transtype"]; !ok {
		ctx.Options["transtype"] = "live"
	}
	if l, ok := ctx.Options["latency"]; ok {
		// 支持`200ms`和不带单位的毫秒数两种形式，libsrt本身只认毫秒数
		d, err := time.ParseDuration(l)
		if err != nil {
			ms, err2 := strconv.Atoi(l)
			if err2 != nil {
				return fmt.Errorf("%w. invalid latency. url=%s", ErrInvalidUrl, ctx.Url)
			}
			d = time.Duration(ms) * time.Millisecond
		}
		ctx.Latency = d
		ctx.Options["latency"] = strconv.FormatInt(d.Milliseconds(), 10)
	}
	return nil
}

func checkFile(filename string, check bool) error {
	if !check {
		return nil
	}
	fi, err := os.Stat(filename)
	if err != nil || fi.IsDir() {
		return fmt.Errorf("%w. filename=%s", ErrFileNotExist, filename)
	}
	return nil
}
