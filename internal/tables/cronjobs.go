package tables

import (
	"time"

	"github.com/mesh-intelligence/simpledb/pkg/types"
)

// CronJob is a scheduled background task and its last run.
type CronJob struct {
	types.TableRow
	Name       string        `json:"name" jsonschema:"description=Unique job name"`
	Interval   time.Duration `json:"interval" jsonschema:"description=Time between runs in nanoseconds"`
	Enabled    bool          `json:"enabled"`
	LastRun    time.Time     `json:"last_run"`
	NextRun    time.Time     `json:"next_run"`
	LastResult string        `json:"last_result,omitempty"`
	RunCount   int64         `json:"run_count"`
}

func (c *CronJob) Clone() *CronJob {
	cp := *c
	return &cp
}

func cronJobsDefinition(now func() time.Time) types.Definition[*CronJob] {
	return types.Definition[*CronJob]{
		TableMetadata: types.TableMetadata{
			TableName:   CronJobsTable,
			Compression: types.CompressionZstd,
			Caching:     types.CachingSlidingMemory,
			Write:       types.WriteLazy,
		},
		Columns: []types.Column[*CronJob]{
			{Name: "name", Value: func(c *CronJob) any { return c.Name }},
			{Name: "interval", Value: func(c *CronJob) any { return c.Interval }},
		},
		UniqueIndexes: []types.UniqueIndex{{Name: "ux_cron_jobs_name", Columns: []string{"name"}}},
		Required:      []string{"name", "interval"},
		Triggers: []types.Trigger[*CronJob]{{
			Name:  "schedule_first_run",
			Event: types.BeforeInsert,
			Fn: func(rows []*CronJob) error {
				for _, c := range rows {
					if c.NextRun.IsZero() {
						c.NextRun = now().UTC().Add(c.Interval)
					}
				}
				return nil
			},
		}},
	}
}

// DueJobs returns the enabled jobs whose next run is not after now.
func (s *Store) DueJobs(now time.Time) ([]*CronJob, error) {
	return s.CronJobs.Select(func(c *CronJob) bool {
		return c.Enabled && !c.NextRun.After(now)
	})
}

// RecordRun stores the outcome of a job run and schedules the next one.
// The stored row is copied back into job. Cron jobs are written lazily;
// the run history reaches disk on the next flush.
func (s *Store) RecordRun(job *CronJob, at time.Time, result string) error {
	updated, err := s.CronJobs.Modify(job.ID, func(c *CronJob) error {
		c.LastRun = at.UTC()
		c.NextRun = c.LastRun.Add(c.Interval)
		c.LastResult = result
		c.RunCount++
		return nil
	})
	if err != nil {
		return err
	}
	*job = *updated
	return nil
}
