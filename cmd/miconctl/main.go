package main

import (
	_ "github.com/robotalks/micon.go/pkg/cli/cmds/link"
	"github.com/robotalks/micon.go/pkg/cli/sh"
	"github.com/robotalks/micon.go/pkg/env"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
