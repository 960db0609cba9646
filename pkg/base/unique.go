// Copyright 2020, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package base

import "github.com/q191201771/naza/pkg/unique"

const (
	UkPreDtshdCollator = "DTSHDCOLLATOR"
	UkPreEac3Collator  = "EAC3COLLATOR"
	UkPreStreamer      = "STREAMER"
)

func GenUkDtshdCollator() string {
	return siUkDtshdCollator.GenUniqueKey()
}

func GenUkEac3Collator() string {
	return siUkEac3Collator.GenUniqueKey()
}

func GenUkStreamer() string {
	return siUkStreamer.GenUniqueKey()
}

var (
	siUkDtshdCollator *unique.SingleGenerator
	siUkEac3Collator  *unique.SingleGenerator
	siUkStreamer      *unique.SingleGenerator
)

func init() {
	siUkDtshdCollator = unique.NewSingleGenerator(UkPreDtshdCollator)
	siUkEac3Collator = unique.NewSingleGenerator(UkPreEac3Collator)
	siUkStreamer = unique.NewSingleGenerator(UkPreStreamer)
}
