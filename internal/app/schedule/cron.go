// Package schedule holds the pure time arithmetic behind history backfill:
// cron evaluation and default window shapes.
package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Five-field expressions with an optional leading seconds field, plus
// descriptors such as @daily and @every.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Cron is a parsed schedule expression.
type Cron struct {
	expr  string
	sched cron.Schedule
}

// ParseCron validates expr.
func ParseCron(expr string) (*Cron, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("cron expression is empty")
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", expr, err)
	}
	return &Cron{expr: expr, sched: sched}, nil
}

func (c *Cron) String() string { return c.expr }

// Next returns the first fire time strictly after `after`, evaluated in loc.
// The zero time means the expression never fires again.
func (c *Cron) Next(after time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return c.sched.Next(after.In(loc))
}

// NextFireTime parses expr and evaluates it once.
func NextFireTime(expr string, after time.Time, loc *time.Location) (time.Time, error) {
	c, err := ParseCron(expr)
	if err != nil {
		return time.Time{}, err
	}
	next := c.Next(after, loc)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("cron %q has no future fire time after %s", expr, after)
	}
	return next, nil
}
