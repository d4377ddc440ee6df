package main

import (
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"
)

// stopProfile flushes the CPU profile started by -pgo, nil when none runs.
var stopProfile func()

func init() {
	for _, arg := range os.Args {
		if arg == "-pgo" || arg == "--pgo" {
			// collect profile data into the default.pgo file
			f, err := os.Create("default.pgo")
			if err != nil {
				return
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				f.Close()
				return
			}
			stopProfile = func() {
				pprof.StopCPUProfile()
				f.Close()
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			go func() {
				<-sigChan
				stopProfile()
				os.Exit(130)
			}()
			return
		}
	}
}
