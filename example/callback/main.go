package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/zhuoqizheng/rovio/pkg/roviohealth"
)

func main() {
	flow, err := roviohealth.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	callback := func(batch []roviohealth.Decision) error {
		for _, d := range batch {
			fmt.Printf("%s seq=%d reset=%v median=%.3f speed=%.3f streak=%d\n",
				d.Timestamp.Format(time.RFC3339Nano),
				d.Seq,
				d.Reset,
				d.QualityMedian,
				d.Speed,
				d.UnhealthyStreak,
			)
		}
		return nil
	}

	if err := flow.Run(ctx, roviohealth.StreamOutCallback("stdout", callback)); err != nil && err != context.Canceled {
		log.Fatalf("runtime error: %v", err)
	}
}
