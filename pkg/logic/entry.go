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

	"github.com/q191201771/lalcollator/pkg/base"
)

var DefaultConfFilenameList = []string{
	"escollator.conf.json",
	"./conf/escollator.conf.json",
	"../escollator.conf.json",
	"../conf/escollator.conf.json",
}

var (
	config *Config
	cancel context.CancelFunc
)

// Init 读取配置，初始化日志
//
// @param modConfig: 命令行参数覆盖配置文件中的配置
//
func Init(confFile string, modConfig func(config *Config)) {
	config = LoadConfAndInitLog(confFile)
	if modConfig != nil {
		modConfig(config)
		if err := config.check(); err != nil {
			base.Log.Errorf("invalid config. err=%+v", err)
			base.OsExitAndWaitPressIfWindows(1)
		}
	}
	base.LogoutStartInfo()
	base.Log.Infof("config=%+v", *config)
}

// RunLoop 处理一个输入源，直到结束或者收到退出信号
//
func RunLoop() error {
	var ctx context.Context
	ctx, cancel = context.WithCancel(context.Background())
	defer cancel()

	go base.RunSignalHandler(func() {
		Dispose()
	})

	return RunInput(ctx, config)
}

func Dispose() {
	if cancel != nil {
		cancel()
	}
}

// RunInput 打开config中的输入源并处理
//
func RunInput(ctx context.Context, config *Config) error {
	urlCtx, err := base.ParseInputUrl(config.InputConfig.Url, true)
	if err != nil {
		return err
	}
	inputType, codec, err := DetectInput(urlCtx, config.InputConfig)
	if err != nil {
		return err
	}
	base.Log.Infof("open input. url=%s, type=%s, codec=%s", urlCtx.Url, inputType, codec.ReadableString())

	rc, err := OpenInput(ctx, urlCtx)
	if err != nil {
		return err
	}
	defer rc.Close()

	s := NewStreamer(config, urlCtx.Url)
	return s.Run(ctx, Input{
		R:         rc,
		Type:      inputType,
		Codec:     codec,
		CheckIdle: urlCtx.Scheme == base.InputSchemeSrt,
	})
}
