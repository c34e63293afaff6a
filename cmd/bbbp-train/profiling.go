package main

import (
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/janpfeifer/must"
	"k8s.io/klog/v2"
)

var (
	flagProfiler   = flag.Int("prof", -1, "If set, serves the HTTP profiler at the given localhost port.")
	flagCPUProfile = flag.String("cpu_profile", "", "write cpu profile to `file`")
)

// setupProfiling starts the profilers selected by flags and returns the
// function to defer in main. On exit it stops the CPU profile and, when the
// HTTP profiler is serving, drops the model, garbage collects and keeps the
// process alive until interrupted, so heap profiles of whatever leaked remain
// readable.
func setupProfiling() (onExit func()) {
	if *flagCPUProfile != "" {
		f := must.M1(os.Create(*flagCPUProfile))
		must.M(pprof.StartCPUProfile(f))
	}
	var addr string
	if *flagProfiler >= 0 {
		addr = fmt.Sprintf("localhost:%d", *flagProfiler)
		fmt.Printf("Profiler on http://%s/debug/pprof — read it with: $ go tool pprof %s/debug/pprof/heap\n", addr, addr)
		go func() {
			klog.Fatal(http.ListenAndServe(addr, nil))
		}()
	}

	return func() {
		if *flagCPUProfile != "" {
			pprof.StopCPUProfile()
		}
		if addr == "" {
			return
		}
		// Don't hold the process on a panic, and don't hold it twice on Ctrl+C.
		if err := recover(); err != nil {
			panic(err)
		}
		if globalCtx.Err() != nil {
			return
		}
		predictor = nil
		for range 10 {
			runtime.GC()
		}
		fmt.Printf("Finished: kept alive with the profiler at http://%s/debug/pprof, interrupt (Ctrl+C) to exit\n", addr)
		<-globalCtx.Done()
	}
}
