package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"github.com/bvkay/LEMI-423-Reader"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, results, closeResults := lemi423.NewChannelSink("fanout", 4)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for res := range results {
			var peak float64
			for _, s := range res.Samples {
				peak = max(peak, s.Bz, -s.Bz)
			}
			fmt.Printf("[fanout] %s peak |Bz|=%.3f mV\n", res.Job.Path, peak)
		}
	}()

	report, err := lemi423.Run(ctx, "../../data/config.yaml", lemi423.WithSink(sink))
	closeResults()
	wg.Wait()
	if err != nil && report == nil {
		log.Fatalf("run: %v", err)
	}
	for _, o := range report.Failures() {
		fmt.Printf("%s %s: %s\n", o.Status, o.Path, o.Message)
	}
}
