// Package queue carries "generate playlist for client X" jobs from the API
// to the processor with a claim, ack and fail protocol.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Job asks the processor to (re)generate one client's playlist.
type Job struct {
	ClientID int64  `json:"clientId"`
	Username string `json:"username"`
}

// ErrInvalidJob marks a job payload that can never be processed.
var ErrInvalidJob = errors.New("invalid job")

// Name is the queue file name of the job.
func (j Job) Name() string {
	return strconv.FormatInt(j.ClientID, 10) + ".json"
}

// Validate checks the fields every job must carry.
func (j Job) Validate() error {
	if j.ClientID <= 0 {
		return fmt.Errorf("%w: clientId must be positive", ErrInvalidJob)
	}
	if j.Username == "" {
		return fmt.Errorf("%w: username is required", ErrInvalidJob)
	}
	return nil
}

// DecodeJob parses and validates a job payload.
func DecodeJob(body []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(body, &j); err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	if err := j.Validate(); err != nil {
		return Job{}, err
	}
	return j, nil
}

// Delivery is one claimed job payload. Body is decoded by the consumer so
// a malformed payload still goes through Fail.
type Delivery struct {
	ID   string // file path or raw payload, depending on the backend
	Body []byte
}

// Producer enqueues jobs.
type Producer interface {
	Enqueue(ctx context.Context, job Job) error
}

// Consumer hands out jobs one at a time. Next blocks until a job is
// claimed or ctx is done. Ack commits a processed job; Fail keeps it
// for manual recovery.
type Consumer interface {
	Next(ctx context.Context) (*Delivery, error)
	Ack(ctx context.Context, d *Delivery) error
	Fail(ctx context.Context, d *Delivery, cause error) error
}
