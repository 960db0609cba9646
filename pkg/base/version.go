// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "strings"

// 版本信息相关
// 一部分版本信息使用了naza.bininfo
// 另外，我们也在本文件提供另外一些信息，打入可执行文件以及日志中

// 版本，该变量由外部脚本修改维护
const LalCollatorVersion = "v0.3.0"

var (
	LalCollatorLibraryName = "lalcollator"
	LalCollatorGithubRepo  = "github.com/q191201771/lalcollator"
	LalCollatorGithubSite  = "https://github.com/q191201771/lalcollator"

	// e.g. lalcollator v0.3.0 (github.com/q191201771/lalcollator)
	LalCollatorFullInfo = LalCollatorLibraryName + " " + LalCollatorVersion + " (" + LalCollatorGithubRepo + ")"

	// e.g. 0.3.0
	LalCollatorVersionDot string
)

func init() {
	LalCollatorVersionDot = strings.TrimPrefix(LalCollatorVersion, "v")
}
