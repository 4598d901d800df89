package service

import (
	"context"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/sakif/permission-journal/internal/model"
)

// UncategorizedLabel groups permissions without a category in statistics.
const UncategorizedLabel = "Uncategorized"

// PermissionsByCategory returns all permissions when name is nil and the
// permissions filed under exactly *name otherwise, newest first.
func (j *Journal) PermissionsByCategory(ctx context.Context, name *string) ([]model.Permission, error) {
	return j.FindPermissions(ctx, model.PermissionFilter{Category: name})
}

// PermissionsWithOutcome returns the permissions whose actual outcome has
// been recorded. Whitespace-only outcomes do not count.
func (j *Journal) PermissionsWithOutcome(ctx context.Context) ([]model.Permission, error) {
	return j.FindPermissions(ctx, model.PermissionFilter{WithOutcome: true})
}

// HighImpactPermissions returns the permissions rated at least
// model.HighImpactThreshold, newest first.
func (j *Journal) HighImpactPermissions(ctx context.Context) ([]model.Permission, error) {
	return j.FindPermissions(ctx, model.PermissionFilter{MinImpact: model.HighImpactThreshold})
}

// Gallery returns the high impact permissions, strongest first. Equal
// impacts keep date order.
func (j *Journal) Gallery(ctx context.Context) ([]model.Permission, error) {
	ps, err := j.HighImpactPermissions(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(ps, func(a, b int) bool {
		return ps[a].EmotionalImpact > ps[b].EmotionalImpact
	})
	return ps, nil
}

// Timeline returns the permissions dated within the calendar month that
// contains month, optionally narrowed to one tag.
func (j *Journal) Timeline(ctx context.Context, month time.Time, tag string) ([]model.Permission, error) {
	start, end := model.MonthRange(month, j.loc)
	return j.FindPermissions(ctx, model.PermissionFilter{From: start, To: end, Tag: tag})
}

// PermissionCount returns the number of permissions.
func (j *Journal) PermissionCount(ctx context.Context) (int, error) {
	ps, err := j.ListPermissions(ctx)
	if err != nil {
		return 0, err
	}
	return len(ps), nil
}

// RecentPermissions returns at most n of the newest permissions. n <= 0
// means DefaultRecentCount.
func (j *Journal) RecentPermissions(ctx context.Context, n int) ([]model.Permission, error) {
	if n <= 0 {
		n = DefaultRecentCount
	}
	ps, err := j.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	if len(ps) > n {
		ps = ps[:n]
	}
	return ps, nil
}

// LongestStreak counts consecutive calendar days ending at the most recent
// permission's day.
//
// Walking from newest to oldest, a one-day gap extends the streak, a
// same-day entry neither extends nor breaks it, and the first larger gap
// ends the walk. It is the current streak, not the best one ever.
func (j *Journal) LongestStreak(ctx context.Context) (int, error) {
	ps, err := j.ListPermissions(ctx)
	if err != nil {
		return 0, err
	}
	return streak(ps, j.loc), nil
}

func streak(sorted []model.Permission, loc *time.Location) int {
	if len(sorted) == 0 {
		return 0
	}
	count := 1
	prev := dayNumber(sorted[0].Date, loc)
	for _, p := range sorted[1:] {
		cur := dayNumber(p.Date, loc)
		gap := prev - cur
		if gap > 1 {
			break
		}
		if gap == 1 {
			count++
		}
		prev = cur
	}
	return count
}

// dayNumber maps t to a day index in loc, so that consecutive calendar days
// differ by exactly one regardless of DST.
func dayNumber(t time.Time, loc *time.Location) int {
	y, m, d := t.In(loc).Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// MostCommonTag returns the tag used most often across all permissions, or
// nil when no permission carries a tag. Ties go to the tag seen first when
// walking permissions newest first.
func (j *Journal) MostCommonTag(ctx context.Context) (*string, error) {
	ps, err := j.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	return mostCommonTag(ps), nil
}

func mostCommonTag(ps []model.Permission) *string {
	counts := make(map[string]int)
	var order []string
	for _, p := range ps {
		for _, tag := range p.EmotionalTags {
			if _, seen := counts[tag]; !seen {
				order = append(order, tag)
			}
			counts[tag]++
		}
	}

	var (
		best  string
		top   int
		found bool
	)
	for _, tag := range order {
		if counts[tag] > top {
			best, top, found = tag, counts[tag], true
		}
	}
	if !found {
		return nil
	}
	return &best
}

// CategoryAverage is the mean rated impact of one category's permissions.
// Unrated (zero) impacts are left out of the mean; a category with no
// rated entries averages 0.
type CategoryAverage struct {
	Category string  `json:"category"`
	Average  float64 `json:"average"`
	Count    int     `json:"count"`
	Rated    int     `json:"rated"`
}

// CategoryAverages returns one CategoryAverage per category name in use,
// sorted by name. Uncategorized permissions are grouped under
// UncategorizedLabel.
func (j *Journal) CategoryAverages(ctx context.Context) ([]CategoryAverage, error) {
	ps, err := j.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	return categoryAverages(ps), nil
}

func categoryAverages(ps []model.Permission) []CategoryAverage {
	type acc struct{ count, rated, sum int }
	groups := make(map[string]*acc)
	for _, p := range ps {
		name := categoryLabel(p)
		g, ok := groups[name]
		if !ok {
			g = &acc{}
			groups[name] = g
		}
		g.count++
		if p.EmotionalImpact > 0 {
			g.rated++
			g.sum += p.EmotionalImpact
		}
	}

	out := make([]CategoryAverage, 0, len(groups))
	for name, g := range groups {
		avg := 0.0
		if g.rated > 0 {
			avg = float64(g.sum) / float64(g.rated)
		}
		out = append(out, CategoryAverage{Category: name, Average: avg, Count: g.count, Rated: g.rated})
	}
	slices.SortFunc(out, func(a, b CategoryAverage) int {
		return strings.Compare(a.Category, b.Category)
	})
	return out
}

// MostLiberatingCategory returns the category with the highest average
// impact, or nil for an empty journal. Ties go to the name that sorts first.
func (j *Journal) MostLiberatingCategory(ctx context.Context) (*CategoryAverage, error) {
	averages, err := j.CategoryAverages(ctx)
	if err != nil {
		return nil, err
	}
	return mostLiberating(averages), nil
}

func mostLiberating(averages []CategoryAverage) *CategoryAverage {
	var best *CategoryAverage
	for i := range averages {
		if best == nil || averages[i].Average > best.Average {
			best = &averages[i]
		}
	}
	return best
}

// CategoryCount is the number of permissions filed under one category.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// BiggestBoundary returns the category with the most permissions dated in
// year, or nil if there are none. Ties go to the name that sorts first.
func (j *Journal) BiggestBoundary(ctx context.Context, year int) (*CategoryCount, error) {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, j.loc)
	ps, err := j.FindPermissions(ctx, model.PermissionFilter{From: start, To: start.AddDate(1, 0, 0)})
	if err != nil {
		return nil, err
	}
	return biggestBoundary(ps), nil
}

func biggestBoundary(ps []model.Permission) *CategoryCount {
	counts := make(map[string]int)
	for _, p := range ps {
		counts[categoryLabel(p)]++
	}
	var best *CategoryCount
	for name, n := range counts {
		if best == nil || n > best.Count || (n == best.Count && name < best.Category) {
			best = &CategoryCount{Category: name, Count: n}
		}
	}
	return best
}

func categoryLabel(p model.Permission) string {
	if p.Category == nil || *p.Category == "" {
		return UncategorizedLabel
	}
	return *p.Category
}

// Insights is the dashboard summary of the journal.
type Insights struct {
	Ready                  bool               `json:"ready"`
	TotalPermissions       int                `json:"totalPermissions"`
	WithOutcome            int                `json:"withOutcome"`
	HighImpact             int                `json:"highImpact"`
	Streak                 int                `json:"streak"`
	MostCommonTag          *string            `json:"mostCommonTag"`
	CategoryAverages       []CategoryAverage  `json:"categoryAverages"`
	MostLiberatingCategory *CategoryAverage   `json:"mostLiberatingCategory"`
	BiggestBoundary        *CategoryCount     `json:"biggestBoundary"`
	Recent                 []model.Permission `json:"recent"`
}

// Insights computes every statistic from one read of the journal. The
// biggest boundary is for the current calendar year.
func (j *Journal) Insights(ctx context.Context) (*Insights, error) {
	ps, err := j.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}

	year := j.now().In(j.loc).Year()
	var thisYear []model.Permission
	in := &Insights{
		Ready:            j.store.IsReady(),
		TotalPermissions: len(ps),
		Streak:           streak(ps, j.loc),
		MostCommonTag:    mostCommonTag(ps),
		CategoryAverages: categoryAverages(ps),
	}
	for _, p := range ps {
		if p.HasOutcome() {
			in.WithOutcome++
		}
		if p.EmotionalImpact >= model.HighImpactThreshold {
			in.HighImpact++
		}
		if p.Date.In(j.loc).Year() == year {
			thisYear = append(thisYear, p)
		}
	}
	in.MostLiberatingCategory = mostLiberating(in.CategoryAverages)
	in.BiggestBoundary = biggestBoundary(thisYear)

	in.Recent = ps
	if len(in.Recent) > DefaultRecentCount {
		in.Recent = in.Recent[:DefaultRecentCount]
	}
	return in, nil
}
