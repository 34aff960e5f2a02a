package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"FxPipe/internal/di"
	"FxPipe/internal/handler/api"
	"FxPipe/pkg/config"
	xhttp "FxPipe/pkg/http"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	name := flag.String("name", "", "job to run")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	rt, cleanup, err := di.InitializeRuntime(cfg)
	if err != nil {
		log.Fatalf("runtime initialization failed: %v", err)
	}
	defer cleanup()

	job, ok := rt.Jobs.Get(*name)
	if !ok {
		cleanup()
		log.Fatalf("unknown job %q (available: %s)", *name, strings.Join(rt.Jobs.Names(), ", "))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, runErr := rt.Runner.Run(ctx, job)
	body := api.JobResponseFrom(res)
	if runErr != nil {
		body = xhttp.JobResponse{OK: false, Error: runErr.Error()}
	}
	out, _ := json.Marshal(body)
	fmt.Println(string(out))

	if runErr != nil {
		stop()
		cleanup()
		os.Exit(1)
	}
}
