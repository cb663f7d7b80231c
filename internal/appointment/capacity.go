package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medcore/clinic-scheduling/internal/schedule"
)

// DefaultMaxPerHour applies when the settings row is absent or holds a
// non-positive value.
const DefaultMaxPerHour = 10

// BucketLoad is the capacity picture of one local-hour bucket.
type BucketLoad struct {
	BucketStart time.Time
	BucketEnd   time.Time
	Capacity    int
	Booked      int
	Remaining   int
	Overridden  bool
}

// CapacityResolver computes effective capacity and occupancy for hour
// buckets. It holds no state of its own; every answer comes from the store
// at call time.
type CapacityResolver struct {
	repo   Repository
	clinic *schedule.ClinicTime
}

func NewCapacityResolver(repo Repository, clinic *schedule.ClinicTime) *CapacityResolver {
	return &CapacityResolver{repo: repo, clinic: clinic}
}

// DefaultCapacity reads the singleton settings, creating it on first use.
func (c *CapacityResolver) DefaultCapacity(ctx context.Context) (int, error) {
	settings, err := c.repo.EnsureSettings(ctx, DefaultMaxPerHour)
	if err != nil {
		return 0, fmt.Errorf("load scheduling settings: %w", err)
	}
	if settings.MaxPatientsPerHour <= 0 {
		return DefaultMaxPerHour, nil
	}
	return settings.MaxPatientsPerHour, nil
}

// Load resolves the bucket containing t and reports its effective capacity,
// current occupancy and remaining room. An explicit override wins over the
// default; an override of 0 closes the bucket outright.
func (c *CapacityResolver) Load(ctx context.Context, t time.Time) (BucketLoad, error) {
	start, end := c.clinic.LocalHourBucketRange(t)

	load := BucketLoad{BucketStart: start, BucketEnd: end}

	override, err := c.repo.GetAvailabilityByBucket(ctx, start)
	switch {
	case err == nil:
		load.Capacity = override.Capacity
		load.Overridden = true
	case errors.Is(err, ErrAvailabilityNotFound):
		load.Capacity, err = c.DefaultCapacity(ctx)
		if err != nil {
			return BucketLoad{}, err
		}
	default:
		return BucketLoad{}, fmt.Errorf("load availability override: %w", err)
	}

	booked, err := c.repo.CountBlockingInRange(ctx, start, end)
	if err != nil {
		return BucketLoad{}, fmt.Errorf("count booked in bucket: %w", err)
	}
	load.Booked = booked

	load.Remaining = load.Capacity - load.Booked
	if load.Remaining < 0 {
		load.Remaining = 0
	}
	return load, nil
}

// EnsureGenericAvailability idempotently materializes a default-capacity
// override row for a bucket, so a pre-seeded calendar is visible to admins.
// A no-op when any row already exists for the bucket.
func (c *CapacityResolver) EnsureGenericAvailability(ctx context.Context, bucketStart time.Time, capacity int, actorID *uuid.UUID) error {
	local := c.clinic.ToLocal(bucketStart)
	slot := &AvailabilitySlot{
		ID:          uuid.New(),
		BucketStart: schedule.NormalizeToUTC(bucketStart),
		LocalDay:    local.Weekday().String(),
		LocalTime:   local.Format("15:04"),
		Capacity:    capacity,
		UpdatedBy:   actorID,
	}
	if _, err := c.repo.InsertAvailabilityIfAbsent(ctx, slot); err != nil {
		return fmt.Errorf("ensure generic availability: %w", err)
	}
	return nil
}
