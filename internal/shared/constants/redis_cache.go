package constants

import "time"

// Redis key layout: attendly:{module}:{operation}:{identifier}

// Highly Dynamic (Micro TTL: real-time sensitive)
const (
	TTL_REALTIME_MEDIUM = 1 * time.Minute  // 1 minute - for waitlist snapshots
	TTL_REALTIME_SHORT  = 30 * time.Second // 30 seconds - for live capacity counts
)

const (
	CACHE_PREFIX = "attendly"
)

// Admission Cache Keys
const (
	CACHE_KEY_WAITLIST_SNAPSHOT = CACHE_PREFIX + ":waitlist:snapshot:event:" // + event-id
	CACHE_KEY_CAPACITY_SUMMARY  = CACHE_PREFIX + ":capacity:summary:event:"  // + event-id
)

// Admission Cache TTLs
const (
	TTL_WAITLIST_SNAPSHOT = TTL_REALTIME_MEDIUM
	TTL_CAPACITY_SUMMARY  = TTL_REALTIME_SHORT
)

const (
	RATE_LIMIT_PREFIX = CACHE_PREFIX + ":ratelimit:" // + type:ip
)

func BuildWaitlistSnapshotKey(eventID string) string {
	return CACHE_KEY_WAITLIST_SNAPSHOT + eventID
}

func BuildCapacitySummaryKey(eventID string) string {
	return CACHE_KEY_CAPACITY_SUMMARY + eventID
}

// BuildAdmissionCacheKeys returns every cached view derived from one event's attendance.
func BuildAdmissionCacheKeys(eventID string) []string {
	return []string{
		BuildWaitlistSnapshotKey(eventID),
		BuildCapacitySummaryKey(eventID),
	}
}
