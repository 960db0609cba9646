// Copyright 2021, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "github.com/q191201771/naza/pkg/nazalog"

var Log = nazalog.GetGlobalLogger()

// ----- collator --------------------
var (
	// CollatorDumpDebugMaxNum 日志级别为debug时，每个collator最多hex dump多少次被丢弃的头部
	CollatorDumpDebugMaxNum = 16

	// CollatorDumpMaxBytes 每次hex dump最多打印多少字节
	CollatorDumpMaxBytes = 64
)
