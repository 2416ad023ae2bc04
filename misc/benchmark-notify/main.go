package main

// load generator for the notify endpoint. Every event carries a unique id so
// lost deliveries show up in the status summary.
//
// usage: go run main.go -baseurl http://localhost:8080 -key orders.created -requests 1000 -par 5

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/sjson"
)

func main() {
	var (
		baseurl         string
		key             string
		totalRequests   int
		parallelization int
	)

	flag.StringVar(&baseurl, "baseurl", "http://localhost:8080", "base URL of the meltdown server")
	flag.StringVar(&key, "key", "", "event key to notify")
	flag.IntVar(&totalRequests, "requests", 1, "total number of events to send")
	flag.IntVar(&parallelization, "par", 1, "maximum number of concurrent requests")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).With().Timestamp().Logger()

	if key == "" {
		fmt.Println("Error: -key is required.")
		flag.Usage()
		os.Exit(1)
	}
	if totalRequests <= 0 || parallelization <= 0 {
		fmt.Println("Error: -requests and -par must be greater than 0.")
		os.Exit(1)
	}

	client := &http.Client{Timeout: 30 * time.Second}
	url := fmt.Sprintf("%s/events/%s", baseurl, key)

	statusCounts := make(map[int]int) // -1 counts client side errors
	var mu sync.Mutex

	requests := make(chan int, 10)
	go func() {
		for i := 0; i < totalRequests; i++ {
			requests <- i + 1
		}
		close(requests)
	}()

	record := func(code int) {
		mu.Lock()
		statusCounts[code]++
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for i := 0; i < parallelization; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for reqID := range requests {
				payload, _ := sjson.Set(`{"headers":{"source":"benchmark"}}`, "id", uuid.NewString())
				payload, _ = sjson.Set(payload, "data.seq", reqID)

				resp, err := client.Post(url, "application/json", bytes.NewReader([]byte(payload)))
				if err != nil {
					logger.Error().Err(err).Int("worker", workerID).Int("req", reqID).Msg("request failed")
					record(-1)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				record(resp.StatusCode)
			}
		}(i + 1)
	}

	done := make(chan struct{})
	tickerDone := make(chan struct{})
	startTime := time.Now()
	go func() {
		defer close(tickerDone)
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				mu.Lock()
				completed := 0
				for _, cnt := range statusCounts {
					completed += cnt
				}
				mu.Unlock()
				fmt.Printf("Duration: %v, Completed: %d%% events\n", time.Since(startTime), completed*100/totalRequests)
			case <-done:
				return
			}
		}
	}()

	wg.Wait()
	close(done)
	<-tickerDone

	elapsed := time.Since(startTime)
	fmt.Printf("\n=== %d events in %v (%.0f/s) ===\n", totalRequests, elapsed, float64(totalRequests)/elapsed.Seconds())

	mu.Lock()
	defer mu.Unlock()
	codes := make([]int, 0, len(statusCounts))
	for code := range statusCounts {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		if code == -1 {
			fmt.Printf("client side errors: %d\n", statusCounts[code])
		} else {
			fmt.Printf("%d : %d\n", code, statusCounts[code])
		}
	}
}
