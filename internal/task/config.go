package task

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// QueueConfig holds the construction-time settings of a TaskQueue.
// It is copied into the queue and never changes afterwards.
type QueueConfig struct {
	// MaxConcurrent is how many operations may run at once
	MaxConcurrent int `validate:"gte=1"`

	// Retry enables in-place retries of failed operations
	Retry bool

	// MaxRetries is how many extra attempts a failing operation gets
	MaxRetries int `validate:"gte=0"`

	// WaitBetweenRequests is slept before every admission attempt
	WaitBetweenRequests time.Duration `validate:"gte=0"`

	// RetryDelay is slept between attempts of the same operation
	RetryDelay time.Duration `validate:"gte=0"`

	// AutoStart makes Add wake the driver; otherwise Start or Process must be called
	AutoStart bool
}

// DefaultQueueConfig returns a QueueConfig with the standard defaults:
// one task at a time, no retries, a one second pause between admissions.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		MaxConcurrent:       1,
		Retry:               false,
		MaxRetries:          3,
		WaitBetweenRequests: time.Second,
		RetryDelay:          0,
		AutoStart:           true,
	}
}

// Validate checks the configuration bounds.
func (c QueueConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
