// Package scheduler runs periodic housekeeping jobs on cron schedules.
package scheduler

import (
	"fmt"
	"time"

	cron "github.com/netresearch/go-cron"
)

// parser accepts standard 5-field expressions and descriptors such as
// "@hourly" or "@every 10m".
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// CronExpr wraps a parsed cron schedule.
type CronExpr struct {
	raw      string
	schedule cron.Schedule
}

// ParseCron parses a cron expression.
func ParseCron(expr string) (*CronExpr, error) {
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", expr, err)
	}
	return &CronExpr{raw: expr, schedule: schedule}, nil
}

// Next returns the next activation time after t.
func (c *CronExpr) Next(t time.Time) time.Time {
	return c.schedule.Next(t)
}

// String returns the raw expression.
func (c *CronExpr) String() string {
	return c.raw
}
