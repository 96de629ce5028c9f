package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/micon.go/pkg/env"
	fx "github.com/robotalks/micon.go/pkg/framework"
	"github.com/robotalks/micon.go/pkg/micon/shutdown"
)

var trigger string

func init() {
	env.SetupFlags()
	flag.StringVar(&trigger, "trigger", trigger, "Run the power-off sequence once: down, halt or power-off")
}

// run as a systemd-shutdown hook the verb is the first argument.
func triggerReason() (shutdown.Reason, string, bool) {
	if trigger != "" {
		reason, err := shutdown.ParseReason(trigger)
		if err != nil {
			glog.Fatalf("trigger: %v", err)
		}
		return reason, trigger, true
	}
	if verb := flag.Arg(0); verb != "" {
		reason, ok := shutdown.ParseVerb(verb)
		if !ok {
			glog.Infof("%s: nothing to do", verb)
			glog.Flush()
			os.Exit(0)
		}
		return reason, verb, true
	}
	return 0, "", false
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf, err := env.NewConfig()
	if err != nil {
		glog.Fatalf("config: %v", err)
	}
	e := conf.MustNewEnv()
	defer e.Close()

	if reason, arg, ok := triggerReason(); ok {
		if e.Sequencer.Notify(reason, arg) == shutdown.NotHandled {
			glog.Warningf("%v not handled", reason)
			return
		}
		if r := e.Sequencer.LastReport(); r != nil {
			glog.Info(r.String())
		}
		return
	}

	runners := e.Runners()
	if len(runners) == 0 {
		glog.Fatalln("nothing to run: specify -trigger, -mqtt or -bridge-listen")
	}
	if err := fx.NewRunner().HandleSignals().Go(runners...).Wait(); err != nil {
		glog.Errorf("%v", err)
	}
}
