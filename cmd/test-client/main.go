// Package main provides a standalone CLI tool that posts booking submissions
// to the api-server concurrently. Most submissions share one email address,
// so a run checks that they all resolve to a single customer.
//
// Usage:
//
//	test-client --url http://localhost:8080/api/v1/booking --count 50 --concurrency 10
//	test-client --email jane@example.com --unique 5 --date 2030-01-15
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sungwon/move-booking/internal/httpclient"
)

type config struct {
	url         string
	count       int
	concurrency int
	email       string
	unique      int
	name        string
	date        string
	address     string
	timeout     time.Duration
}

type submission struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	MoveDate      string `json:"moveDate"`
	MovingAddress string `json:"movingAddress"`
}

type created struct {
	BookingID  int64  `json:"booking_id"`
	CustomerID int64  `json:"customer_id"`
	CreatedAt  string `json:"created_at"`
}

type result struct {
	seq      int
	email    string
	status   int
	created  created
	err      error
	duration time.Duration
}

func main() {
	cfg := parseFlags()

	if cfg.count <= 0 || cfg.concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "error: --count and --concurrency must be positive")
		flag.Usage()
		os.Exit(2)
	}

	fmt.Printf("Booking Test Client\n")
	fmt.Printf("  URL:          %s\n", cfg.url)
	fmt.Printf("  Count:        %d\n", cfg.count)
	fmt.Printf("  Concurrency:  %d\n", cfg.concurrency)
	fmt.Printf("  Shared email: %s\n", cfg.email)
	fmt.Println()

	client := httpclient.New(cfg.timeout)
	results := make([]result, cfg.count)

	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(cfg.concurrency)

	var mu sync.Mutex
	start := time.Now()
	for i := range cfg.count {
		g.Go(func() error {
			res := post(ctx, client, cfg, i)
			results[i] = res

			mu.Lock()
			defer mu.Unlock()
			if res.err != nil {
				fmt.Printf("  [%d/%d] FAIL (%s): %v\n", res.seq, cfg.count, res.duration, res.err)
			} else {
				fmt.Printf("  [%d/%d] %d   (%s) booking=%d customer=%d\n",
					res.seq, cfg.count, res.status, res.duration, res.created.BookingID, res.created.CustomerID)
			}
			return nil
		})
	}
	_ = g.Wait()

	s := summarize(results)
	fmt.Println()
	fmt.Printf("Results: %d created, %d failed, total time %s\n", s.created, s.failed, time.Since(start))
	for _, email := range s.emails() {
		ids := s.customers[email]
		fmt.Printf("  %s -> customer ids %v\n", email, ids)
	}

	if s.failed > 0 || len(s.duplicated()) > 0 {
		for _, email := range s.duplicated() {
			fmt.Printf("DUPLICATE CUSTOMER: %s mapped to %v\n", email, s.customers[email])
		}
		os.Exit(1)
	}
}

func parseFlags() config {
	var cfg config

	flag.StringVar(&cfg.url, "url", "http://localhost:8080/api/v1/booking", "Submission endpoint")
	flag.IntVar(&cfg.count, "count", 20, "Number of submissions to post")
	flag.IntVar(&cfg.concurrency, "concurrency", 10, "Maximum submissions in flight")
	flag.StringVar(&cfg.email, "email", "load-test@example.com", "Email shared by most submissions")
	flag.IntVar(&cfg.unique, "unique", 0, "Number of submissions that use their own email")
	flag.StringVar(&cfg.name, "name", "Load Test", "Customer name")
	flag.StringVar(&cfg.date, "date", "", "Move date (YYYY-MM-DD); defaults to 30 days from now")
	flag.StringVar(&cfg.address, "address", "Lisbon, Portugal", "Moving address")
	flag.DurationVar(&cfg.timeout, "timeout", 30*time.Second, "Per-request timeout")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: test-client [options]\n\n")
		fmt.Fprintf(os.Stderr, "Posts concurrent booking submissions and checks customer deduplication.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()
	if cfg.date == "" {
		cfg.date = time.Now().AddDate(0, 0, 30).Format("2006-01-02")
	}
	return cfg
}

// submissionFor builds the i-th payload. The first cfg.unique submissions get
// their own address; the rest share cfg.email.
func submissionFor(cfg config, i int) submission {
	email := cfg.email
	if i < cfg.unique {
		local, domain, ok := strings.Cut(cfg.email, "@")
		if !ok {
			domain = "example.com"
		}
		email = fmt.Sprintf("%s+%d@%s", local, i+1, domain)
	}
	return submission{
		Name:          cfg.name,
		Email:         email,
		MoveDate:      cfg.date,
		MovingAddress: cfg.address,
	}
}

func post(ctx context.Context, client httpclient.Doer, cfg config, i int) result {
	sub := submissionFor(cfg, i)
	res := result{seq: i + 1, email: sub.Email}

	body, err := json.Marshal(sub)
	if err != nil {
		res.err = err
		return res
	}

	start := time.Now()
	resp, err := client.Do(ctx, &httpclient.Request{
		Method:  "POST",
		URL:     cfg.url,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	})
	res.duration = time.Since(start)
	if err != nil {
		res.err = err
		return res
	}

	res.status = resp.StatusCode
	if resp.StatusCode != 201 {
		res.err = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(resp.Body)))
		return res
	}
	if err := json.Unmarshal(resp.Body, &res.created); err != nil {
		res.err = fmt.Errorf("decode response: %w", err)
	}
	return res
}

type summary struct {
	created   int
	failed    int
	customers map[string][]int64
}

func summarize(results []result) summary {
	s := summary{customers: make(map[string][]int64)}
	for _, r := range results {
		if r.err != nil {
			s.failed++
			continue
		}
		s.created++
		ids := s.customers[r.email]
		found := false
		for _, id := range ids {
			if id == r.created.CustomerID {
				found = true
				break
			}
		}
		if !found {
			s.customers[r.email] = append(ids, r.created.CustomerID)
		}
	}
	return s
}

func (s summary) emails() []string {
	out := make([]string, 0, len(s.customers))
	for email := range s.customers {
		out = append(out, email)
	}
	sort.Strings(out)
	return out
}

// duplicated lists emails that resolved to more than one customer id.
func (s summary) duplicated() []string {
	var out []string
	for _, email := range s.emails() {
		if len(s.customers[email]) > 1 {
			out = append(out, email)
		}
	}
	return out
}
