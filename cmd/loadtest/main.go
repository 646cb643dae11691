package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"attendly/internal/shared/config"
	"attendly/internal/shared/middleware"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

type RegistrationResult struct {
	StatusCode   int
	Decision     string
	Reason       string
	Position     int
	ResponseTime time.Duration
	Error        string
}

type LoadTestSuite struct {
	BaseURL string
	Secret  string
	client  *http.Client

	mu      sync.Mutex
	Results []RegistrationResult
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	baseURL := flag.String("base-url", "http://localhost:"+cfg.Port+cfg.GetAPIBasePath(), "API base URL")
	registrants := flag.Int("registrants", 200, "number of concurrent registrants")
	concurrency := flag.Int("concurrency", 50, "maximum requests in flight")
	capacity := flag.Int("capacity", 50, "event capacity")
	waitlist := flag.Int("waitlist", 25, "maximum waitlist size")
	flag.Parse()

	suite := &LoadTestSuite{
		BaseURL: *baseURL,
		Secret:  cfg.JWT.Secret,
		client:  &http.Client{Timeout: 30 * time.Second},
	}

	fmt.Println("🧪 Starting admission load test...")
	fmt.Println("===================================")

	ctx := context.Background()
	eventID, err := suite.createEvent(ctx, *capacity, *waitlist)
	if err != nil {
		log.Fatalf("❌ Failed to create event: %v", err)
	}
	fmt.Printf("✅ Created event %s (capacity %d, waitlist %d)\n", eventID, *capacity, *waitlist)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*concurrency)
	for i := range *registrants {
		g.Go(func() error {
			suite.record(suite.register(gctx, eventID, i))
			return nil
		})
	}
	_ = g.Wait()
	fmt.Printf("⏱  %d registrations in %v\n", *registrants, time.Since(start))

	suite.generateReport()

	if err := suite.checkInvariants(ctx, eventID, *capacity, *waitlist); err != nil {
		log.Fatalf("❌ %v", err)
	}
	fmt.Println("\n🎉 Capacity and waitlist invariants held")
}

func (s *LoadTestSuite) token(userID, role string) (string, error) {
	return middleware.IssueAccessToken(s.Secret, userID, userID+"@loadtest.local", "Load Test", role, time.Hour)
}

func (s *LoadTestSuite) do(ctx context.Context, method, path, token string, body interface{}) (int, json.RawMessage, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, s.BaseURL+path, &buf)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return resp.StatusCode, nil, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, env.Data, nil
}

func (s *LoadTestSuite) createEvent(ctx context.Context, capacity, waitlist int) (string, error) {
	token, err := s.token(uuid.NewString(), middleware.RoleAdmin)
	if err != nil {
		return "", err
	}
	status, data, err := s.do(ctx, http.MethodPost, "/admin/events", token, map[string]interface{}{
		"name":                  fmt.Sprintf("Load test %s", time.Now().Format(time.RFC3339)),
		"starts_at":             time.Now().Add(24 * time.Hour),
		"capacity":              capacity,
		"waitlist_enabled":      waitlist > 0,
		"waitlist_max_size":     waitlist,
		"waitlist_auto_promote": true,
	})
	if err != nil {
		return "", err
	}
	if status != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d", status)
	}
	var event struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &event); err != nil {
		return "", err
	}
	return event.ID, nil
}

func (s *LoadTestSuite) register(ctx context.Context, eventID string, n int) RegistrationResult {
	userID := uuid.NewString()
	token, err := s.token(userID, middleware.RoleUser)
	if err != nil {
		return RegistrationResult{Error: err.Error()}
	}

	start := time.Now()
	status, data, err := s.do(ctx, http.MethodPost, "/events/"+eventID+"/registrations", token, map[string]string{
		"email": fmt.Sprintf("user%04d@loadtest.local", n),
		"name":  fmt.Sprintf("User %04d", n),
	})
	result := RegistrationResult{StatusCode: status, ResponseTime: time.Since(start)}
	if err != nil {
		result.Error = err.Error()
		return result
	}

	var decision struct {
		Status   string `json:"status"`
		Reason   string `json:"reason"`
		Position int    `json:"position"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &decision); err != nil {
			result.Error = err.Error()
			return result
		}
	}
	result.Decision = decision.Status
	result.Reason = decision.Reason
	result.Position = decision.Position
	return result
}

func (s *LoadTestSuite) record(r RegistrationResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Results = append(s.Results, r)
}

func (s *LoadTestSuite) generateReport() {
	byDecision := map[string]int{}
	byStatus := map[int]int{}
	var latencies []time.Duration
	for _, r := range s.Results {
		byStatus[r.StatusCode]++
		if r.Error != "" {
			byDecision["error"]++
			continue
		}
		byDecision[r.Decision]++
		latencies = append(latencies, r.ResponseTime)
	}

	fmt.Println("\n📊 Load Test Report")
	fmt.Println("===================")
	for _, d := range []string{"confirmed", "waitlisted", "rejected", "error"} {
		fmt.Printf("  %-11s %d\n", d+":", byDecision[d])
	}
	for code, n := range byStatus {
		fmt.Printf("  HTTP %d: %d\n", code, n)
	}
	if len(latencies) == 0 {
		return
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	fmt.Printf("  p50: %v  p95: %v  max: %v\n",
		latencies[len(latencies)/2],
		latencies[len(latencies)*95/100],
		latencies[len(latencies)-1])
}

func (s *LoadTestSuite) checkInvariants(ctx context.Context, eventID string, capacity, waitlist int) error {
	token, err := s.token(uuid.NewString(), middleware.RoleAdmin)
	if err != nil {
		return err
	}

	_, data, err := s.do(ctx, http.MethodGet, "/events/"+eventID+"/capacity", token, nil)
	if err != nil {
		return err
	}
	var summary struct {
		Confirmed  int `json:"confirmed"`
		Waitlisted int `json:"waitlisted"`
	}
	if err := json.Unmarshal(data, &summary); err != nil {
		return err
	}
	fmt.Printf("\n  confirmed %d/%d, waitlisted %d/%d\n", summary.Confirmed, capacity, summary.Waitlisted, waitlist)
	if summary.Confirmed > capacity {
		return fmt.Errorf("overbooked: %d confirmed for %d seats", summary.Confirmed, capacity)
	}
	if summary.Waitlisted > waitlist {
		return fmt.Errorf("waitlist overflow: %d waiting for %d slots", summary.Waitlisted, waitlist)
	}

	_, data, err = s.do(ctx, http.MethodGet, "/admin/events/"+eventID+"/waitlist/verify", token, nil)
	if err != nil {
		return err
	}
	var report struct {
		Consistent bool   `json:"consistent"`
		Problem    string `json:"problem"`
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return err
	}
	if !report.Consistent {
		return fmt.Errorf("waitlist inconsistent: %s", report.Problem)
	}
	return nil
}
