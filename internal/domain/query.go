package domain

import (
	"fmt"
	"strings"
)

// Query word bounds accepted by a run.
const (
	MinQueryWords = 1
	MaxQueryWords = 50
)

// ValidateQuery trims the query and checks its word count.
func ValidateQuery(q string, maxWords int) (string, error) {
	if maxWords <= 0 {
		maxWords = MaxQueryWords
	}
	words := strings.Fields(q)
	if len(words) < MinQueryWords {
		return "", fmt.Errorf("query is empty: %w", ErrInvalidQuery)
	}
	if len(words) > maxWords {
		return "", fmt.Errorf("query has %d words, max %d: %w", len(words), maxWords, ErrInvalidQuery)
	}
	return strings.Join(words, " "), nil
}

// TimeFilter is the recency window understood by every adapter.
type TimeFilter string

const (
	TimeHour  TimeFilter = "hour"
	TimeDay   TimeFilter = "day"
	TimeWeek  TimeFilter = "week"
	TimeMonth TimeFilter = "month"
	TimeYear  TimeFilter = "year"
	TimeAll   TimeFilter = "all"
)

// ParseTimeFilter accepts an empty string as "unset".
func ParseTimeFilter(s string) (TimeFilter, error) {
	tf := TimeFilter(strings.ToLower(strings.TrimSpace(s)))
	switch tf {
	case "", TimeHour, TimeDay, TimeWeek, TimeMonth, TimeYear, TimeAll:
		return tf, nil
	}
	return "", fmt.Errorf("time filter %q: %w", s, ErrInvalidOptions)
}

// FetchConstraints are the per-provider knobs passed to an adapter.
type FetchConstraints struct {
	Limit         int        `json:"limit,omitempty"`
	PerScopeLimit int        `json:"per_scope_limit,omitempty"`
	TimeFilter    TimeFilter `json:"time_filter,omitempty"`
	Scopes        []string   `json:"scopes,omitempty"`
	Language      string     `json:"language,omitempty"`
}

// RunOptions is the inbound option set of a run.
// Empty EnabledSources means every registered source.
type RunOptions struct {
	EnabledSources  []Source       `json:"enabled_sources,omitempty"`
	PerSourceLimits map[Source]int `json:"per_source_limits,omitempty"`
	TimeFilter      TimeFilter     `json:"time_filter,omitempty"`
}

// ParseRunOptions builds RunOptions from loosely typed input (HTTP body, CLI flags).
func ParseRunOptions(sources []string, limits map[string]int, timeFilter string) (RunOptions, error) {
	var opts RunOptions

	seen := make(map[Source]struct{}, len(sources))
	for _, s := range sources {
		src, err := ParseSource(s)
		if err != nil {
			return RunOptions{}, err
		}
		if _, dup := seen[src]; dup {
			continue
		}
		seen[src] = struct{}{}
		opts.EnabledSources = append(opts.EnabledSources, src)
	}

	if len(limits) > 0 {
		opts.PerSourceLimits = make(map[Source]int, len(limits))
		for name, n := range limits {
			src, err := ParseSource(name)
			if err != nil {
				return RunOptions{}, err
			}
			if n < 1 {
				return RunOptions{}, fmt.Errorf("limit for %s must be >= 1, got %d: %w", src, n, ErrInvalidOptions)
			}
			opts.PerSourceLimits[src] = n
		}
	}

	tf, err := ParseTimeFilter(timeFilter)
	if err != nil {
		return RunOptions{}, err
	}
	opts.TimeFilter = tf
	return opts, nil
}
