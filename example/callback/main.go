package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bvkay/LEMI-423-Reader"
)

func main() {
	callback := func(res *lemi423.FileResult) error {
		fmt.Printf("%s serial=%s samples=%d rate=%dHz %s..%s gaps=%d\n",
			res.Job.Path,
			res.Header.Serial,
			len(res.Samples),
			res.SampleRate,
			res.Start.Format(time.RFC3339),
			res.End.Format(time.RFC3339),
			len(res.Discontinuities),
		)
		return nil
	}

	report, err := lemi423.Run(context.Background(), "../../data/config.yaml",
		lemi423.WithSink(lemi423.NewCallbackSink("stdout", callback)))
	if err != nil {
		log.Fatalf("run: %v", err)
	}
	fmt.Printf("succeeded=%d failed=%d skipped=%d\n", report.Succeeded, report.Failed, report.Skipped)
}
