// Copyright 2024, Chef.  All rights reserved.
// https://github.com/q191201771/lalcollator
//
// Use of this source code is governed by a MIT-style license
// that can be found in the License file.
//
// Author: Chef (191201771@qq.com)

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/q191201771/lalcollator/pkg/base"
	"github.com/q191201771/lalcollator/pkg/logic"
	"github.com/q191201771/naza/pkg/bininfo"
	"github.com/q191201771/naza/pkg/nazalog"
)

func main() {
	defer nazalog.Sync()

	confFile, modConfig := parseFlag()
	logic.Init(confFile, modConfig)
	if err := logic.RunLoop(); err != nil {
		base.Log.Errorf("run failed. err=%+v", err)
		base.OsExitAndWaitPressIfWindows(1)
	}
}

func parseFlag() (string, func(config *logic.Config)) {
	binInfoFlag := flag.Bool("v", false, "show bin info")
	cf := flag.String("c", "", "specify conf file")
	i := flag.String("i", "", "specify input, file path, `-` for stdin, or srt://host:port listen address")
	t := flag.String("t", "", "specify input type, auto|ts|ps|es")
	m := flag.String("m", "", "specify codec of es input, dtshd|eac3")
	f := flag.String("f", "", "specify output format, dump|pes|es|none")
	o := flag.String("o", "", "specify output dir")
	flag.Parse()

	if *binInfoFlag {
		_, _ = fmt.Fprint(os.Stderr, bininfo.StringifyMultiLine())
		_, _ = fmt.Fprintln(os.Stderr, base.LalCollatorFullInfo)
		os.Exit(0)
	}
	if *cf == "" && *i == "" {
		flag.Usage()
		_, _ = fmt.Fprintf(os.Stderr, `
Example:
  %s -c ./conf/escollator.conf.json
  %s -i ./movie.m2ts -f es -o ./out/
  %s -i ./track.eac3 -t es -m eac3 -f none
  %s -i srt://0.0.0.0:9000?latency=200ms -f pes
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
		base.OsExitAndWaitPressIfWindows(1)
	}

	return *cf, func(config *logic.Config) {
		if *i != "" {
			config.InputConfig.Url = *i
		}
		if *t != "" {
			config.InputConfig.Type = *t
		}
		if *m != "" {
			config.InputConfig.Codec = *m
		}
		if *f != "" {
			config.OutputConfig.Format = *f
		}
		if *o != "" {
			config.OutputConfig.OutPath = *o
		}
	}
}
