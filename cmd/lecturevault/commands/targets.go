package commands

import (
	"context"
	"fmt"

	"lecturevault/internal/course"
	"lecturevault/lib/textutil"

	"github.com/spf13/cobra"
)

type runTargets struct {
	all  bool
	ids  []int64
	name string
}

func addTargetFlags(cmd *cobra.Command) (all *bool, ids *[]int64, name *string) {
	all = cmd.Flags().Bool("all", false, "Process every subscribed course.")
	ids = cmd.Flags().Int64Slice("course-ids", nil, "Process the courses with these ids (comma separated).")
	name = cmd.Flags().String("course", "", "Process the subscribed course whose title best matches this name.")
	cmd.MarkFlagsMutuallyExclusive("all", "course-ids", "course")
	return all, ids, name
}

// SubscriptionAPI lists subscribed courses.
type SubscriptionAPI interface {
	SubscribedCourses(ctx context.Context) ([]course.Course, error)
}

// resolveTargets turns the target flags into courses. Explicit ids are used as is and only
// listed when a name or --all needs the subscription list.
func resolveTargets(ctx context.Context, api SubscriptionAPI, t runTargets) ([]course.Course, error) {
	if len(t.ids) > 0 {
		out := make([]course.Course, len(t.ids))
		for i, id := range t.ids {
			if id <= 0 {
				return nil, fmt.Errorf("invalid course id %d, course ids are positive integers", id)
			}
			out[i] = course.Course{Id: id}
		}
		return out, nil
	}
	if !t.all && t.name == "" {
		return nil, fmt.Errorf("no courses selected, use --all, --course-ids or --course")
	}

	subscribed, err := api.SubscribedCourses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscribed courses: %w", err)
	}
	if t.all {
		return subscribed, nil
	}
	return matchCourse(subscribed, t.name)
}

func matchCourse(subscribed []course.Course, name string) ([]course.Course, error) {
	titles := make([]string, len(subscribed))
	for i, c := range subscribed {
		titles[i] = c.Title
	}
	idx, similarity := textutil.BestMatch(name, titles)
	if idx < 0 {
		return nil, fmt.Errorf("no subscribed course matches %q (best similarity %.2f)", name, similarity)
	}
	return []course.Course{subscribed[idx]}, nil
}
