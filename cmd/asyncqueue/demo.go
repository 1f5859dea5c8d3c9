package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kubev2v/asyncqueue/pkg/asyncqueue"
)

type demoItem struct {
	Key  int
	Name string
}

func newDemoCmd(v *viper.Viper) *cobra.Command {
	var (
		keys        []int
		parallelism int
		latency     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Submit a fixed sequence of keys and print every outcome",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, flush, err := loadConfig(v)
			if err != nil {
				return err
			}
			defer flush()

			_, err = demo(cmd.Context(), keys, parallelism, latency)
			return err
		},
	}
	cmd.Flags().IntSliceVar(&keys, "keys", []int{1, 2, 3, 1, 4, 5}, "Keys to submit, in order")
	cmd.Flags().IntVar(&parallelism, "demo-parallelism", 2, "Queue parallelism for the demo")
	cmd.Flags().DurationVar(&latency, "demo-latency", 200*time.Millisecond, "Time each task takes")

	return cmd
}

// demo submits keys in order and returns the keys the processor actually ran,
// in dispatch order.
func demo(ctx context.Context, keys []int, parallelism int, latency time.Duration) ([]int, error) {
	var (
		mu      sync.Mutex
		started []int
	)

	q, err := asyncqueue.New(asyncqueue.Options[demoItem, int, string]{
		Name:        "demo",
		Parallelism: parallelism,
		Context:     ctx,
		GetKey:      func(it demoItem) int { return it.Key },
		Processor: asyncqueue.ProcessFunc(func(ctx context.Context, it demoItem) (string, error) {
			mu.Lock()
			started = append(started, it.Key)
			mu.Unlock()
			color.Cyan("  processing %s", it.Name)

			select {
			case <-time.After(latency):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			return fmt.Sprintf("%s done at %s", it.Name, time.Now().Format("15:04:05.000")), nil
		}),
	})
	if err != nil {
		return nil, err
	}

	var wg sync.WaitGroup
	for i, k := range keys {
		wg.Add(1)
		label := fmt.Sprintf("Task%d", i+1)
		q.Add(demoItem{Key: k, Name: fmt.Sprintf("item%d", k)}, func(result string, err error) {
			defer wg.Done()
			if err != nil {
				color.Red("%s (key %d): %v", label, k, err)
				return
			}
			color.Green("%s (key %d): %s", label, k, result)
		})
	}
	wg.Wait()
	q.Close()

	color.Yellow("%d submissions, %d processor runs: %s", len(keys), len(started), joinInts(started))
	zap.S().Named("demo").Debugw("demo finished", "stats", q.Stats())

	mu.Lock()
	defer mu.Unlock()
	return append([]int(nil), started...), nil
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, ",")
}
