package metrics

// Operation names shared by the components that record metrics
const (
	OpEstimate           = "estimate"
	OpModelLoad          = "model_load"
	OpRefresh            = "refresh"
	OpReminderRun        = "reminder_run"
	OpReminderInline     = "reminder_inline"
	OpNotificationCreate = "notification_create"
	OpNotificationExists = "notification_exists"
	OpDbQuery            = "db_query"
	OpDbInsert           = "db_insert"
	OpDbUpdate           = "db_update"
	OpTransaction        = "transaction"
)

// Status label values
const (
	StatusSuccess         = "success"
	StatusError           = "error"
	StatusSent            = "sent"
	StatusAlreadyNotified = "already_notified"
	StatusSkipped         = "skipped"
	StatusFailed          = "failed"
	StatusDryRun          = "dry_run"
	StatusDuplicate       = "duplicate"
	StatusRateLimited     = "rate_limited"
	StatusCacheHit        = "cache_hit"
	StatusCacheMiss       = "cache_miss"
)

// Histogram bucket configuration
const (
	// BucketStart100us is the starting bucket for 0.1ms histograms
	BucketStart100us = 0.0001
	// BucketStart1ms is the starting bucket for 1ms histograms
	BucketStart1ms = 0.001
	// BucketFactor2 is the common exponential growth factor
	BucketFactor2 = 2
	// BucketCount12 defines 12 exponential buckets
	BucketCount12 = 12
	// BucketCount15 defines 15 exponential buckets
	BucketCount15 = 15
)
