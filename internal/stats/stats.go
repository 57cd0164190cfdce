// Package stats derives read-only reports from workout history: session
// volume, exercise frequency, personal records and period summaries.
// Volumes are always computed after normalizing each set to one unit.
package stats

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meltforce/gymlog/internal/models"
)

// SetVolume is reps x weight with the weight expressed in unit.
func SetVolume(s models.Set, unit models.WeightUnit) float64 {
	return float64(s.Reps) * models.Convert(s.Weight, s.WeightUnit, unit)
}

// ExerciseVolume sums SetVolume over an exercise.
func ExerciseVolume(e models.Exercise, unit models.WeightUnit) float64 {
	var v float64
	for _, s := range e.Sets {
		v += SetVolume(s, unit)
	}
	return v
}

// SessionVolume sums SetVolume over every set in the session.
func SessionVolume(s models.Session, unit models.WeightUnit) float64 {
	var v float64
	for _, e := range s.Exercises {
		v += ExerciseVolume(e, unit)
	}
	return v
}

// VolumePoint is one session's volume.
type VolumePoint struct {
	SessionID uuid.UUID `json:"session_id"`
	Date      time.Time `json:"date"`
	Exercises int       `json:"exercises"`
	Sets      int       `json:"sets"`
	Volume    float64   `json:"volume"`
}

// Volumes returns one point per session, in the order given.
func Volumes(sessions []models.Session, unit models.WeightUnit) []VolumePoint {
	points := make([]VolumePoint, 0, len(sessions))
	for _, s := range sessions {
		sets := 0
		for _, e := range s.Exercises {
			sets += len(e.Sets)
		}
		points = append(points, VolumePoint{
			SessionID: s.ID,
			Date:      s.Date,
			Exercises: len(s.Exercises),
			Sets:      sets,
			Volume:    round(SessionVolume(s, unit), 2),
		})
	}
	return points
}

// ExerciseFrequency counts sessions containing at least one exercise named
// name, compared case-insensitively.
func ExerciseFrequency(sessions []models.Session, name string) int {
	key := exerciseKey(name)
	n := 0
	for _, s := range sessions {
		for _, e := range s.Exercises {
			if exerciseKey(e.Name) == key {
				n++
				break
			}
		}
	}
	return n
}

// Frequency is how many sessions included an exercise.
type Frequency struct {
	Exercise string `json:"exercise"`
	Sessions int    `json:"sessions"`
}

// Frequencies lists every exercise, most frequent first, then by name.
// The displayed name is the most recent spelling seen.
func Frequencies(sessions []models.Session) []Frequency {
	counts := make(map[string]*Frequency)
	for _, s := range sessions {
		seen := make(map[string]bool)
		for _, e := range s.Exercises {
			key := exerciseKey(e.Name)
			if seen[key] {
				continue
			}
			seen[key] = true
			f, ok := counts[key]
			if !ok {
				f = &Frequency{Exercise: e.Name}
				counts[key] = f
			}
			f.Sessions++
		}
	}
	out := make([]Frequency, 0, len(counts))
	for _, f := range counts {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sessions != out[j].Sessions {
			return out[i].Sessions > out[j].Sessions
		}
		return strings.ToLower(out[i].Exercise) < strings.ToLower(out[j].Exercise)
	})
	return out
}

// Record is the heaviest set ever performed for an exercise.
type Record struct {
	Exercise     string            `json:"exercise"`
	Weight       float64           `json:"weight"`
	Unit         models.WeightUnit `json:"unit"`
	Reps         int               `json:"reps"`
	Date         time.Time         `json:"date"`
	MaxSetVolume float64           `json:"max_set_volume"`
}

// PersonalRecords finds, per exercise, the set with the highest weight after
// normalizing to unit. Ties go to more reps, then to the more recent session.
// Results are ordered heaviest first.
func PersonalRecords(sessions []models.Session, unit models.WeightUnit) []Record {
	best := make(map[string]*Record)
	for _, s := range sessions {
		for _, e := range s.Exercises {
			key := exerciseKey(e.Name)
			for _, set := range e.Sets {
				w := models.Convert(set.Weight, set.WeightUnit, unit)
				vol := float64(set.Reps) * w
				r, ok := best[key]
				if !ok {
					best[key] = &Record{Exercise: e.Name, Weight: w, Unit: unit, Reps: set.Reps, Date: s.Date, MaxSetVolume: vol}
					continue
				}
				if vol > r.MaxSetVolume {
					r.MaxSetVolume = vol
				}
				if better(w, set.Reps, s.Date, r) {
					r.Exercise, r.Weight, r.Reps, r.Date = e.Name, w, set.Reps, s.Date
				}
			}
		}
	}
	out := make([]Record, 0, len(best))
	for _, r := range best {
		r.Weight = round(r.Weight, 2)
		r.MaxSetVolume = round(r.MaxSetVolume, 2)
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Exercise < out[j].Exercise
	})
	return out
}

func better(w float64, reps int, date time.Time, cur *Record) bool {
	switch {
	case w != cur.Weight:
		return w > cur.Weight
	case reps != cur.Reps:
		return reps > cur.Reps
	}
	return date.After(cur.Date)
}

// PeriodVolume is the volume trained in one week or month.
type PeriodVolume struct {
	Period    string  `json:"period"`
	Sessions  int     `json:"sessions"`
	Volume    float64 `json:"volume"`
	AvgVolume float64 `json:"avg_volume_per_session"`
	Exercises int     `json:"exercises"`
}

// Summary is the dashboard view of a user's history.
type Summary struct {
	TotalSessions     int               `json:"total_sessions"`
	SessionsLast7Days int               `json:"sessions_last_7_days"`
	TotalVolume       float64           `json:"total_volume"`
	Unit              models.WeightUnit `json:"unit"`
	Weekly            []PeriodVolume    `json:"weekly"`
	Monthly           []PeriodVolume    `json:"monthly"`
}

// Summarize aggregates sessions relative to now. Weeks are ISO weeks
// ("2026-W09"); months are calendar months ("2026-03"). Periods are ordered
// oldest first.
func Summarize(sessions []models.Session, unit models.WeightUnit, now time.Time) Summary {
	sum := Summary{TotalSessions: len(sessions), Unit: unit, Weekly: []PeriodVolume{}, Monthly: []PeriodVolume{}}
	weekAgo := now.Add(-7 * 24 * time.Hour)
	weeks := make(map[string]*PeriodVolume)
	months := make(map[string]*PeriodVolume)

	for _, s := range sessions {
		v := SessionVolume(s, unit)
		sum.TotalVolume += v
		if s.Date.After(weekAgo) && !s.Date.After(now) {
			sum.SessionsLast7Days++
		}
		y, w := s.Date.ISOWeek()
		addPeriod(weeks, fmt.Sprintf("%04d-W%02d", y, w), v, len(s.Exercises))
		addPeriod(months, s.Date.Format("2006-01"), v, len(s.Exercises))
	}

	sum.TotalVolume = round(sum.TotalVolume, 2)
	sum.Weekly = flatten(weeks)
	sum.Monthly = flatten(months)
	return sum
}

func addPeriod(m map[string]*PeriodVolume, key string, volume float64, exercises int) {
	p, ok := m[key]
	if !ok {
		p = &PeriodVolume{Period: key}
		m[key] = p
	}
	p.Sessions++
	p.Volume += volume
	p.Exercises += exercises
}

func flatten(m map[string]*PeriodVolume) []PeriodVolume {
	out := make([]PeriodVolume, 0, len(m))
	for _, p := range m {
		p.AvgVolume = round(p.Volume/float64(p.Sessions), 2)
		p.Volume = round(p.Volume, 2)
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}

func exerciseKey(name string) string {
	return strings.ToLower(models.NormalizeExerciseName(name))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
