// Copyright 2016 Martin Hebnes Pedersen (LA5NTA). All rights reserved.
// Use of this source code is governed by the MIT-license that can be
// found in the LICENSE file.

package cli

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/la5nta/memorymap/app"
)

type Job struct {
	expr *cronexpr.Expression
	cmd  string
	next time.Time
}

// parseSchedule returns the jobs of schedule, skipping invalid expressions.
func parseSchedule(schedule map[string]string, now time.Time) []*Job {
	jobs := make([]*Job, 0, len(schedule))
	for exprStr, cmd := range schedule {
		expr, err := cronexpr.Parse(exprStr)
		if err != nil {
			log.Printf("Ignoring schedule %q: %v", exprStr, err)
			continue
		}
		jobs = append(jobs, &Job{expr, cmd, expr.Next(now)})
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].next.Before(jobs[j].next) })
	return jobs
}

// due returns the commands due at now and advances their jobs.
func due(jobs []*Job, now time.Time) []string {
	var cmds []string
	for _, j := range jobs {
		if now.Before(j.next) {
			continue
		}
		cmds = append(cmds, j.cmd)
		j.next = j.expr.Next(now)
	}
	return cmds
}

func scheduleLoop(ctx context.Context, a *app.App) {
	jobs := parseSchedule(a.Config().Schedule, time.Now())
	if len(jobs) == 0 {
		return
	}

	go func() {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-t.C:
				for _, cmd := range due(jobs, now) {
					log.Printf("Executing scheduled command '%s'...", cmd)
					execCmd(ctx, a, cmd)
				}
			}
		}
	}()
}
