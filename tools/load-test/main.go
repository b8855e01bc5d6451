package main

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

func main() {
	// Configuration
	url := "http://localhost:8090/api/v1/submit"

	totalRequests := 200
	concurrency := 10 // The station serializes submissions, so most of these hit the in-flight guard

	fmt.Printf("Starting load test: %d submissions to %s with concurrency %d\n", totalRequests, url, concurrency)

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency) // Semaphore to limit concurrency

	var successCount int64
	var rejectedCount int64
	var failCount int64

	startTime := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		sem <- struct{}{} // Acquire token

		go func() {
			defer wg.Done()
			defer func() { <-sem }() // Release token

			resp, err := http.Post(url, "application/json", nil)
			if err != nil {
				atomic.AddInt64(&failCount, 1)
				return
			}

			switch {
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				atomic.AddInt64(&successCount, 1)
			case resp.StatusCode == http.StatusConflict:
				atomic.AddInt64(&rejectedCount, 1)
			default:
				atomic.AddInt64(&failCount, 1)
			}
			resp.Body.Close()
		}()
	}

	wg.Wait()
	duration := time.Since(startTime)

	fmt.Println("\n--- Load Test Results ---")
	fmt.Printf("Total Duration: %v\n", duration)
	fmt.Printf("Total Requests: %d\n", totalRequests)
	fmt.Printf("Successful:     %d\n", successCount)
	fmt.Printf("In-flight 409:  %d\n", rejectedCount)
	fmt.Printf("Failed:         %d\n", failCount)
	fmt.Printf("Requests/Sec:   %.2f\n", float64(totalRequests)/duration.Seconds())
}
