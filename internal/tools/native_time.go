package tools

import (
	"context"
	"fmt"
	"time"
)

type currentTimeInput struct {
	Timezone string `json:"timezone"`
}

type currentTimeOutput struct {
	Time     string `json:"time"`
	Timezone string `json:"timezone"`
	Weekday  string `json:"weekday"`
	Unix     int64  `json:"unix"`
}

// NewCurrentTimeTool reports the current time in an IANA timezone.
func NewCurrentTimeTool(now func() time.Time) *Func {
	if now == nil {
		now = time.Now
	}
	spec := ToolSpec{
		Name:        "current_time",
		Description: "Get the current date and time.",
		Parameters: map[string]ParamSpec{
			"timezone": {Type: "string", Description: `IANA timezone such as "Europe/Paris" (default: local)`},
		},
	}
	return NewFunc(spec, func(_ context.Context, in currentTimeInput) (any, error) {
		loc := time.Local
		if in.Timezone != "" {
			l, err := time.LoadLocation(in.Timezone)
			if err != nil {
				return nil, fmt.Errorf("current_time: unknown timezone %q", in.Timezone)
			}
			loc = l
		}
		t := now().In(loc)
		return currentTimeOutput{
			Time:     t.Format(time.RFC3339),
			Timezone: loc.String(),
			Weekday:  t.Weekday().String(),
			Unix:     t.Unix(),
		}, nil
	})
}
