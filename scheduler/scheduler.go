package scheduler

import (
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/pkg/errors"

	"github.com/pgsleuth/pgsleuth/util"
)

// Group - A recurring job slot driven by a cron expression
type Group struct {
	interval *cronexpr.Expression
}

func NewGroup(schedule string) (Group, error) {
	interval, err := cronexpr.Parse(schedule)
	if err != nil {
		return Group{}, errors.Wrapf(err, "invalid schedule %q", schedule)
	}
	return Group{interval: interval}, nil
}

// Schedule - Runs the runner at each tick of the group's cron expression
// until the returned channel is closed or written to
func (group Group) Schedule(runner func(), logger *util.Logger, logName string) chan bool {
	stop := make(chan bool)
	go func() {
		for {
			delay := group.interval.Next(time.Now()).Sub(time.Now())

			logger.PrintVerbose("Scheduled next run for %s in %+v", logName, delay)

			select {
			case <-time.After(delay):
				runner()
			case <-stop:
				return
			}
		}
	}()
	return stop
}
