package main

import (
	"github.com/alexytsu/NIARC-2018/internal/cmd"
)

func main() {
	cmd.Execute()
}
