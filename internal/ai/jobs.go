package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/flowme-cloud/flowme-backend/internal/logging"
)

const (
	jobKeyPrefix = "flowme:ai:job:" // Job JSON by ID
	jobTTL       = time.Hour
)

var ErrJobNotFound = errors.New("AI job not found")

type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobDone    JobStatus = "done"
	JobError   JobStatus = "error"
)

type Job struct {
	ID        string    `json:"id"`
	Status    JobStatus `json:"status"`
	XML       string    `json:"xml,omitempty"`
	Error     string    `json:"error,omitempty"`
	Mode      Mode      `json:"mode"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Jobs runs generations in the background and keeps their state in Redis.
type Jobs struct {
	gateway *Gateway
	client  *redis.Client
	now     func() time.Time
}

func NewJobs(gateway *Gateway, client *redis.Client) *Jobs {
	return &Jobs{gateway: gateway, client: client, now: time.Now}
}

// StartText validates synchronously and returns a pending job. Validation
// and configuration errors are returned directly, without creating a job.
func (j *Jobs) StartText(ctx context.Context, text, mode string) (*Job, error) {
	c, err := j.gateway.prepareText(ctx, text, mode)
	if err != nil {
		return nil, err
	}
	return j.start(ctx, c)
}

// StartImage is StartText for an image data URL.
func (j *Jobs) StartImage(ctx context.Context, dataURL, mode string) (*Job, error) {
	c, err := j.gateway.prepareImage(ctx, dataURL, mode)
	if err != nil {
		return nil, err
	}
	return j.start(ctx, c)
}

func (j *Jobs) start(ctx context.Context, c *call) (*Job, error) {
	now := j.now().UTC()
	job := &Job{ID: uuid.NewString(), Status: JobPending, Mode: c.mode, CreatedAt: now, UpdatedAt: now}
	if err := j.save(ctx, job); err != nil {
		return nil, err
	}

	bg := context.WithoutCancel(ctx)
	go j.run(bg, job, c)

	return job, nil
}

func (j *Jobs) run(ctx context.Context, job *Job, c *call) {
	logger := logging.NewLogger(ctx)
	done := *job

	xml, err := j.gateway.execute(ctx, c)
	if err != nil {
		done.Status = JobError
		done.Error = err.Error()
	} else {
		done.Status = JobDone
		done.XML = xml
	}
	done.UpdatedAt = j.now().UTC()

	if err := j.save(ctx, &done); err != nil {
		logger.LogErrorf("ai_job", "job_id=%s store result: %v", job.ID, err)
		return
	}
	logger.LogInfof("ai_job", "job_id=%s status=%s", job.ID, done.Status)
}

// Status returns the stored job.
func (j *Jobs) Status(ctx context.Context, id string) (*Job, error) {
	if id == "" {
		return nil, ErrJobNotFound
	}
	data, err := j.client.Get(ctx, jobKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get AI job: %w", err)
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode AI job: %w", err)
	}
	return &job, nil
}

func (j *Jobs) save(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode AI job: %w", err)
	}
	if err := j.client.Set(ctx, jobKeyPrefix+job.ID, data, jobTTL).Err(); err != nil {
		return fmt.Errorf("failed to store AI job: %w", err)
	}
	return nil
}
