// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package logic

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/q191201771/lalcollator/pkg/base"
	"github.com/q191201771/lalcollator/pkg/dtshd"
	"github.com/q191201771/lalcollator/pkg/eac3"
	"github.com/q191201771/naza/pkg/nazajson"
	"github.com/q191201771/naza/pkg/nazalog"
)

const ConfVersion = "v0.1.0"

const (
	InputTypeAuto = "auto"
	InputTypeTs   = "ts"
	InputTypePs   = "ps" // program stream，或者首尾相接的PES包
	InputTypeEs   = "es"

	OutputFormatDump = "dump"
	OutputFormatPes  = "pes"
	OutputFormatEs   = "es"
	OutputFormatNone = "none" // 只打印日志
)

type Config struct {
	ConfVersion  string         `json:"conf_version"`
	InputConfig  InputConfig    `json:"input"`
	OutputConfig OutputConfig   `json:"output"`
	DtshdConfig  DtshdConfig    `json:"dtshd"`
	Eac3Config   Eac3Config     `json:"eac3"`
	StatConfig   StatConfig     `json:"stat"`
	LogConfig    nazalog.Option `json:"log"`
}

type InputConfig struct {
	Url            string `json:"url"`
	Type           string `json:"type"`
	Codec          string `json:"codec"` // 只有es输入需要
	ReadChunkSize  int    `json:"read_chunk_size"`
	IdleTimeoutSec int    `json:"idle_timeout_sec"` // 只对srt输入生效，0表示不检查
}

type OutputConfig struct {
	Format  string `json:"format"`
	OutPath string `json:"out_path"`
}

type DtshdConfig struct {
	MaxFalseLockReplays int `json:"max_false_lock_replays"`
}

type Eac3Config struct {
	ProgrammeId         int    `json:"programme_id"`
	Profile             string `json:"profile"`
	DropOversizedFrames bool   `json:"drop_oversized_frames"`
}

type StatConfig struct {
	IntervalSec uint32 `json:"interval_sec"`
}

// LoadConfAndInitLog 读取配置文件并初始化日志，失败时直接退出进程
//
// @param confFile: 为空并且默认路径下也没有配置文件时，所有配置项使用默认值
//
func LoadConfAndInitLog(confFile string) *Config {
	var rawContent []byte
	if confFile == "" && !anyFileExist(DefaultConfFilenameList) {
		base.Log.Warnf("config file did not specify and no default config file found, use default config.")
		rawContent = []byte("{}")
	} else {
		rawContent = base.WrapReadConfigFile(confFile, DefaultConfFilenameList, nil)
	}
	config, err := LoadConf(rawContent)
	if err != nil {
		base.Log.Errorf("load conf failed. file=%s, err=%+v", confFile, err)
		base.OsExitAndWaitPressIfWindows(1)
	}
	if err := initLog(config.LogConfig); err != nil {
		base.Log.Errorf("initial log failed. err=%+v", err)
		base.OsExitAndWaitPressIfWindows(1)
	}
	base.Log.Info("initial log succ.")

	if config.ConfVersion != "" && config.ConfVersion != ConfVersion {
		base.Log.Warnf("config version invalid. conf version of lalcollator=%s, conf version of config file=%s",
			ConfVersion, config.ConfVersion)
	}
	return config
}

// LoadConf 解析配置内容，并为不存在的配置项设置默认值
//
func LoadConf(rawContent []byte) (*Config, error) {
	var config Config
	if err := json.Unmarshal(rawContent, &config); err != nil {
		return nil, err
	}

	j, err := nazajson.New(rawContent)
	if err != nil {
		return nil, err
	}

	// 配置不存在时，设置默认值
	if !j.Exist("input.type") {
		config.InputConfig.Type = InputTypeAuto
	}
	if !j.Exist("input.read_chunk_size") {
		config.InputConfig.ReadChunkSize = defaultReadChunkSize
	}
	if !j.Exist("output.format") {
		config.OutputConfig.Format = OutputFormatDump
	}
	if !j.Exist("output.out_path") {
		config.OutputConfig.OutPath = "./out/"
	}
	if !j.Exist("dtshd.max_false_lock_replays") {
		config.DtshdConfig.MaxFalseLockReplays = dtshd.DefaultConfig.MaxFalseLockReplays
	}
	if !j.Exist("eac3.profile") {
		config.Eac3Config.Profile = eac3.ProfileDefault.ReadableString()
	}
	if !j.Exist("stat.interval_sec") {
		config.StatConfig.IntervalSec = 5
	}
	if !j.Exist("log.level") {
		config.LogConfig.Level = nazalog.LevelInfo
	}
	if !j.Exist("log.filename") {
		config.LogConfig.Filename = "./logs/escollator.log"
	}
	if !j.Exist("log.is_to_stdout") {
		config.LogConfig.IsToStdout = true
	}
	if !j.Exist("log.is_rotate_daily") {
		config.LogConfig.IsRotateDaily = true
	}
	if !j.Exist("log.short_file_flag") {
		config.LogConfig.ShortFileFlag = true
	}
	if !j.Exist("log.assert_behavior") {
		config.LogConfig.AssertBehavior = nazalog.AssertError
	}

	return &config, config.check()
}

func (c *Config) check() error {
	switch c.InputConfig.Type {
	case InputTypeAuto, InputTypeTs, InputTypePs, InputTypeEs:
	default:
		return fmt.Errorf("invalid input type. type=%s", c.InputConfig.Type)
	}
	switch c.OutputConfig.Format {
	case OutputFormatDump, OutputFormatPes, OutputFormatEs, OutputFormatNone:
	default:
		return fmt.Errorf("invalid output format. format=%s", c.OutputConfig.Format)
	}
	if c.InputConfig.ReadChunkSize <= 0 {
		return fmt.Errorf("invalid read chunk size. size=%d", c.InputConfig.ReadChunkSize)
	}
	if _, ok := parseEac3Profile(c.Eac3Config.Profile); !ok {
		return fmt.Errorf("invalid eac3 profile. profile=%s", c.Eac3Config.Profile)
	}
	if c.InputConfig.Codec != "" && base.ParseAudioCodec(c.InputConfig.Codec) == base.AudioCodecUnknown {
		return fmt.Errorf("invalid codec. codec=%s", c.InputConfig.Codec)
	}
	return nil
}

func parseEac3Profile(s string) (eac3.Profile, bool) {
	switch s {
	case eac3.ProfileDefault.ReadableString(), "":
		return eac3.ProfileDefault, true
	case eac3.ProfileMsxx.ReadableString():
		return eac3.ProfileMsxx, true
	}
	return eac3.ProfileDefault, false
}

func anyFileExist(filenames []string) bool {
	for _, fn := range filenames {
		if fi, err := os.Stat(fn); err == nil && !fi.IsDir() {
			return true
		}
	}
	return false
}

func initLog(opt nazalog.Option) error {
	return nazalog.Init(func(option *nazalog.Option) {
		option.Level = opt.Level
		option.Filename = opt.Filename
		option.IsToStdout = opt.IsToStdout
		option.IsRotateDaily = opt.IsRotateDaily
		option.ShortFileFlag = opt.ShortFileFlag
		option.AssertBehavior = opt.AssertBehavior
	})
}
