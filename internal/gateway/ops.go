package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser matches the gateway's five-field schedule expressions.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// CronJob is a scheduled job owned by the gateway. The dashboard renders
// these read-mostly; the next-run time is computed locally from the
// schedule expression rather than fetched.
type CronJob struct {
	Name     string     `json:"name"`
	Schedule string     `json:"schedule"`
	Command  string     `json:"command,omitempty"`
	Enabled  bool       `json:"enabled"`
	LastRun  *time.Time `json:"last_run,omitempty"`
	LastExit int        `json:"last_exit,omitempty"`
}

// NextRun computes the job's next fire time after now. Returns the zero
// time for disabled jobs or unparseable schedules.
func (j CronJob) NextRun(now time.Time) time.Time {
	if !j.Enabled {
		return time.Time{}
	}
	sched, err := cronParser.Parse(j.Schedule)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(now)
}

// ListCronJobs fetches the gateway's cron jobs.
func (c *Client) ListCronJobs(ctx context.Context) ([]CronJob, error) {
	var jobs []CronJob
	if err := c.list(ctx, "/cron/jobs", "jobs", &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// SetCronJobEnabled toggles a job on or off.
func (c *Client) SetCronJobEnabled(ctx context.Context, name string, enabled bool) error {
	return c.do(ctx, http.MethodPatch, "/cron/jobs/"+name, map[string]bool{"enabled": enabled}, nil)
}

// Container is a managed container on the gateway host.
type Container struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Image  string `json:"image"`
	State  string `json:"state"`
	Status string `json:"status,omitempty"`
}

// ListContainers fetches the gateway's managed containers.
func (c *Client) ListContainers(ctx context.Context) ([]Container, error) {
	var containers []Container
	if err := c.list(ctx, "/containers", "containers", &containers); err != nil {
		return nil, err
	}
	return containers, nil
}

// RestartContainer restarts a managed container.
func (c *Client) RestartContainer(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/containers/"+id+"/restart", nil, nil)
}
