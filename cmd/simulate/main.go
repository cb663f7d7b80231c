package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/medcore/clinic-scheduling/internal/config"
	"github.com/medcore/clinic-scheduling/internal/db"
	"github.com/medcore/clinic-scheduling/internal/schedule"
)

// Booking-race simulator: many workers race to book the same local hour and
// the run verifies the capacity ceiling holds. With the bucket lock enabled
// the final booked count must never exceed the bucket's capacity.

type simMetrics struct {
	Booked   int64
	Full     int64
	Retry    int64
	Rejected int64
	Errors   int64
}

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	baseURL := getenv("SIM_API_URL", "http://127.0.0.1:"+cfg.HTTPPort)
	workers := 32
	attempts := 20

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	patients, err := loadPatientIDs(ctx, pool, 500)
	if err != nil {
		logger.Fatal().Err(err).Msg("load patients")
	}
	if len(patients) == 0 {
		logger.Fatal().Msg("no patients found, run cmd/seed first")
	}

	// Target the first working hour at least 2 local days out.
	clinic := schedule.ResolveClinicTime(cfg.ClinicZones)
	var target time.Time
	for bucket := range clinic.WorkingHourBuckets(clinic.ToLocal(time.Now().AddDate(0, 0, 2)), 3) {
		target = bucket
		break
	}
	logger.Info().Time("bucket", target).Int("workers", workers).Msg("racing for one bucket")

	var m simMetrics
	client := &http.Client{Timeout: 10 * time.Second}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < attempts; i++ {
				patient := patients[rand.Intn(len(patients))]
				book(ctx, client, baseURL, patient, target, &m)
			}
		}()
	}
	wg.Wait()

	load, err := bucketLoad(ctx, client, baseURL, target)
	if err != nil {
		logger.Fatal().Err(err).Msg("read bucket load")
	}

	fmt.Printf("\n=== booking race results ===\n")
	fmt.Printf("booked:      %d\n", m.Booked)
	fmt.Printf("bucket_full: %d\n", m.Full)
	fmt.Printf("lock_retry:  %d\n", m.Retry)
	fmt.Printf("rejected:    %d\n", m.Rejected)
	fmt.Printf("errors:      %d\n", m.Errors)
	fmt.Printf("final bucket: capacity=%d booked=%d remaining=%d\n", load.Capacity, load.Booked, load.Remaining)

	if load.Booked > load.Capacity {
		fmt.Println("FAIL: bucket over capacity")
		os.Exit(1)
	}
	fmt.Println("OK: capacity ceiling held")
}

func book(ctx context.Context, client *http.Client, baseURL string, patient uuid.UUID, at time.Time, m *simMetrics) {
	body, _ := json.Marshal(map[string]string{
		"patient_id":   patient.String(),
		"scheduled_at": at.Format(time.RFC3339),
		"type":         "lab_panel",
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		atomic.AddInt64(&m.Errors, 1)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-ID", uuid.NewString())

	resp, err := client.Do(req)
	if err != nil {
		atomic.AddInt64(&m.Errors, 1)
		return
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusCreated:
		atomic.AddInt64(&m.Booked, 1)
	case http.StatusConflict:
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(payload, &e)
		switch e.Error {
		case "bucket_full":
			atomic.AddInt64(&m.Full, 1)
		case "bucket_being_booked":
			atomic.AddInt64(&m.Retry, 1)
		default:
			atomic.AddInt64(&m.Rejected, 1)
		}
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		atomic.AddInt64(&m.Rejected, 1)
	default:
		atomic.AddInt64(&m.Errors, 1)
	}
}

type loadResponse struct {
	Capacity  int `json:"capacity"`
	Booked    int `json:"booked"`
	Remaining int `json:"remaining"`
}

func bucketLoad(ctx context.Context, client *http.Client, baseURL string, at time.Time) (loadResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/buckets?at="+at.Format("2006-01-02T15:04:05Z07:00"), nil)
	if err != nil {
		return loadResponse{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return loadResponse{}, err
	}
	defer resp.Body.Close()

	var out loadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return loadResponse{}, err
	}
	return out, nil
}

func loadPatientIDs(ctx context.Context, pool *pgxpool.Pool, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
