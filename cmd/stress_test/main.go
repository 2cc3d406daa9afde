package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

type product struct {
	ID        string `json:"id"`
	Available int    `json:"available"`
}

type addLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Runs concurrent buyers against a live server. Each buyer puts one unit of
// the product in its cart and checks out. Seed the product with the migrate
// tool first.
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	productID := flag.String("product", "flash-sale-item", "product to buy")
	buyers := flag.Int("buyers", 50, "number of concurrent buyers")
	flag.Parse()

	client := resty.New().
		SetBaseURL(*baseURL).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json")

	before, err := fetchProduct(client, *productID)
	if err != nil {
		log.Fatalf("failed to read product: %v", err)
	}

	var created, rejected, failed atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *buyers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := fmt.Sprintf("stress-user-%d", n)

			resp, err := client.R().
				SetHeader("X-User-ID", user).
				SetBody(addLine{ProductID: *productID, Quantity: 1}).
				Post("/api/cart/items")
			if err != nil {
				failed.Add(1)
				return
			}
			// Losing the advisory check at add time is an expected rejection.
			if resp.StatusCode() == http.StatusConflict {
				rejected.Add(1)
				return
			}

			resp, err = client.R().
				SetHeader("X-User-ID", user).
				SetHeader("Idempotency-Key", uuid.NewString()).
				Post("/api/checkout")
			switch {
			case err != nil:
				failed.Add(1)
			case resp.StatusCode() == http.StatusCreated:
				created.Add(1)
			case resp.StatusCode() == http.StatusConflict:
				rejected.Add(1)
			default:
				failed.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	after, err := fetchProduct(client, *productID)
	if err != nil {
		log.Fatalf("failed to read product: %v", err)
	}

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", before.Available)
	fmt.Printf("Buyers:           %d\n", *buyers)
	fmt.Printf("Orders Created:   %d\n", created.Load())
	fmt.Printf("Rejected:         %d\n", rejected.Load())
	fmt.Printf("Errors:           %d\n", failed.Load())
	fmt.Printf("Final Stock:      %d\n", after.Available)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	ok := true
	if int(created.Load()) > before.Available {
		fmt.Printf("FAIL: oversold, %d orders for %d units\n", created.Load(), before.Available)
		ok = false
	}
	if after.Available != before.Available-int(created.Load()) {
		fmt.Printf("FAIL: stock drifted, expected %d got %d\n", before.Available-int(created.Load()), after.Available)
		ok = false
	}
	if !ok {
		os.Exit(1)
	}
	fmt.Println("PASS: stock matches committed orders")
}

func fetchProduct(client *resty.Client, id string) (*product, error) {
	var p product
	resp, err := client.R().SetResult(&p).Get("/api/products/" + id)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String())
	}
	return &p, nil
}
