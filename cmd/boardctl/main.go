package main

import (
	"github.com/spf13/cobra"
)

// 版本信息
var Version = "1.0.0"

func main() {
	cobra.CheckErr(newRootCmd().Execute())
}
