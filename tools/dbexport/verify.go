package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gorm.io/gorm"

	"github.com/orchidlab/labpredict/internal/datastore"
)

// sampleSize is how many random rows per table are compared field by field
const sampleSize = 5

// Verifier performs post-export verification.
type Verifier struct {
	sourceDB *gorm.DB
	targetDB *gorm.DB
	out      io.Writer
}

// NewVerifier creates a new Verifier.
func NewVerifier(sourceDB, targetDB *gorm.DB, out io.Writer) *Verifier {
	return &Verifier{
		sourceDB: sourceDB,
		targetDB: targetDB,
		out:      out,
	}
}

// Verify compares row counts and then a random sample of each table.
func (v *Verifier) Verify(ctx context.Context) error {
	if err := v.verifyCounts(ctx); err != nil {
		return fmt.Errorf("count verification failed: %w", err)
	}
	if err := v.verifySamples(ctx); err != nil {
		return fmt.Errorf("sample verification failed: %w", err)
	}
	return nil
}

func (v *Verifier) verifyCounts(ctx context.Context) error {
	fmt.Fprintln(v.out, "\nVerifying record counts...")

	tables := []struct {
		name  string
		model any
	}{
		{tableGerminations, &datastore.Germination{}},
		{tablePollinations, &datastore.Pollination{}},
		{tableNotifications, &datastore.NotificationRecord{}},
	}

	allMatch := true
	fmt.Fprintf(v.out, "%-25s %12s %12s %8s\n", "Table", "Source", "Target", "Match")
	fmt.Fprintln(v.out, strings.Repeat("-", 60))

	for _, t := range tables {
		var sourceCount, targetCount int64
		if err := v.sourceDB.WithContext(ctx).Model(t.model).Count(&sourceCount).Error; err != nil {
			return fmt.Errorf("failed to count source %s: %w", t.name, err)
		}
		if err := v.targetDB.WithContext(ctx).Model(t.model).Count(&targetCount).Error; err != nil {
			return fmt.Errorf("failed to count target %s: %w", t.name, err)
		}

		match := "✓"
		if sourceCount != targetCount {
			match = "✗"
			allMatch = false
		}
		fmt.Fprintf(v.out, "%-25s %12d %12d %8s\n", t.name, sourceCount, targetCount, match)
	}

	if !allMatch {
		return fmt.Errorf("record counts do not match")
	}
	fmt.Fprintln(v.out, "\nAll counts match!")
	return nil
}

func (v *Verifier) verifySamples(ctx context.Context) error {
	fmt.Fprintln(v.out, "\nVerifying sample records...")

	if err := v.sampleGerminations(ctx, sampleSize); err != nil {
		return fmt.Errorf("germinations sampling failed: %w", err)
	}
	if err := v.samplePollinations(ctx, sampleSize); err != nil {
		return fmt.Errorf("pollinations sampling failed: %w", err)
	}
	if err := v.sampleNotifications(ctx, sampleSize); err != nil {
		return fmt.Errorf("notifications sampling failed: %w", err)
	}

	fmt.Fprintln(v.out, "Sample verification passed!")
	return nil
}

// sampleGerminations checks the fields reminders depend on
func (v *Verifier) sampleGerminations(ctx context.Context, count int) error {
	var source []datastore.Germination
	if err := v.sourceDB.WithContext(ctx).Order("RANDOM()").Limit(count).Find(&source).Error; err != nil {
		return fmt.Errorf("failed to fetch source samples: %w", err)
	}
	if len(source) == 0 {
		fmt.Fprintln(v.out, "  Germinations: no records to sample")
		return nil
	}

	for i := range source {
		src := &source[i]
		var target datastore.Germination
		if err := v.targetDB.WithContext(ctx).First(&target, src.ID).Error; err != nil {
			return fmt.Errorf("germination ID %d not found in target: %w", src.ID, err)
		}
		if src.Code != target.Code {
			return fmt.Errorf("germination ID %d: Code mismatch (%s vs %s)", src.ID, src.Code, target.Code)
		}
		if !src.BaselineDate.Equal(target.BaselineDate) {
			return fmt.Errorf("germination ID %d: BaselineDate mismatch (%s vs %s)",
				src.ID, src.BaselineDate, target.BaselineDate)
		}
		if src.ReminderBaselineSent != target.ReminderBaselineSent ||
			src.ReminderPredictionSent != target.ReminderPredictionSent {
			return fmt.Errorf("germination ID %d: reminder flags mismatch", src.ID)
		}
	}

	fmt.Fprintf(v.out, "  Germinations: %d samples verified\n", len(source))
	return nil
}

func (v *Verifier) samplePollinations(ctx context.Context, count int) error {
	var source []datastore.Pollination
	if err := v.sourceDB.WithContext(ctx).Order("RANDOM()").Limit(count).Find(&source).Error; err != nil {
		return fmt.Errorf("failed to fetch source samples: %w", err)
	}
	if len(source) == 0 {
		fmt.Fprintln(v.out, "  Pollinations: no records to sample")
		return nil
	}

	for i := range source {
		src := &source[i]
		var target datastore.Pollination
		if err := v.targetDB.WithContext(ctx).First(&target, src.ID).Error; err != nil {
			return fmt.Errorf("pollination ID %d not found in target: %w", src.ID, err)
		}
		if src.Code != target.Code || src.PollinationType != target.PollinationType {
			return fmt.Errorf("pollination ID %d: Code/Type mismatch (%s/%s vs %s/%s)",
				src.ID, src.Code, src.PollinationType, target.Code, target.PollinationType)
		}
		if !src.BaselineDate.Equal(target.BaselineDate) {
			return fmt.Errorf("pollination ID %d: BaselineDate mismatch (%s vs %s)",
				src.ID, src.BaselineDate, target.BaselineDate)
		}
		if src.ReminderBaselineSent != target.ReminderBaselineSent ||
			src.ReminderPredictionSent != target.ReminderPredictionSent {
			return fmt.Errorf("pollination ID %d: reminder flags mismatch", src.ID)
		}
	}

	fmt.Fprintf(v.out, "  Pollinations: %d samples verified\n", len(source))
	return nil
}

// sampleNotifications checks the deduplication key survived the copy
func (v *Verifier) sampleNotifications(ctx context.Context, count int) error {
	var source []datastore.NotificationRecord
	if err := v.sourceDB.WithContext(ctx).Order("RANDOM()").Limit(count).Find(&source).Error; err != nil {
		return fmt.Errorf("failed to fetch source samples: %w", err)
	}
	if len(source) == 0 {
		fmt.Fprintln(v.out, "  Notifications: no records to sample")
		return nil
	}

	for i := range source {
		src := &source[i]
		var target datastore.NotificationRecord
		if err := v.targetDB.WithContext(ctx).First(&target, "id = ?", src.ID).Error; err != nil {
			return fmt.Errorf("notification %s not found in target: %w", src.ID, err)
		}
		if src.Recipient != target.Recipient || src.SubjectKind != target.SubjectKind ||
			src.SubjectID != target.SubjectID || src.Kind != target.Kind {
			return fmt.Errorf("notification %s: key mismatch (%s %s/%d %s vs %s %s/%d %s)", src.ID,
				src.Recipient, src.SubjectKind, src.SubjectID, src.Kind,
				target.Recipient, target.SubjectKind, target.SubjectID, target.Kind)
		}
	}

	fmt.Fprintf(v.out, "  Notifications: %d samples verified\n", len(source))
	return nil
}
