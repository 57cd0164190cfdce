// Package alpha imports Alpha Progression CSV exports.
//
// An export is a sequence of blank-line separated sessions:
//
//	"Push · Day 1 · Week 4";"2026-02-17 5:04 h";"1:12 hr"
//	"1. Bench Press · Barbell · 6 reps";"WU1 · 22,5 kg · 10 reps<br>WU2 · 47,5 kg · 8 reps"
//	#;KG;REPS;RIR
//	1;102,5;6;0
//
// Weights are kilograms with comma decimals; "+N" marks bodyweight plus N kg.
package alpha

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Session is one parsed workout.
type Session struct {
	Name      string
	Date      time.Time
	Duration  string
	Exercises []Exercise
}

// Exercise is one numbered movement within a session.
type Exercise struct {
	Number     int
	Name       string
	Equipment  string
	TargetReps int
	Warmups    []Set
	Sets       []Set
}

// Set is one warmup or working set.
type Set struct {
	Number           int
	WeightKg         float64
	IsBodyweightPlus bool
	Reps             int
	RIR              *float64
}

var (
	// "Session Name";"2026-02-19 4:54 h";"1:02 hr"
	sessionLine = regexp.MustCompile(`^"(.+)";"(\d{4}-\d{2}-\d{2}\s+\d+:\d+)\s+h";"(.+)"$`)

	// "1. Exercise Name · Equipment · 8 reps[· modifiers]"[;"warmup info"]
	exerciseLine = regexp.MustCompile(`^"(\d+)\.\s+(.+?)(?:\s+·\s+(\S.*?))?\s+·\s+(\d+)\s+reps(.*?)"(?:;"(.+)")?$`)

	// 1;115;8;1
	setLine = regexp.MustCompile(`^(\d+);([^;]+);(\d+);([^;]*)$`)

	// WU1 · 37,5 kg · 9 reps
	warmupEntry = regexp.MustCompile(`WU(\d+)\s+·\s+(.+?)\s+kg\s+·\s+(\d+)\s+reps`)

	columnLine = regexp.MustCompile(`^#;KG;REPS;RIR$`)
)

// Parse reads an export. Lines that match no known shape are ignored;
// malformed numbers and sets outside an exercise are errors naming the line.
func Parse(r io.Reader) ([]Session, error) {
	p := &parser{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		p.line++
		if err := p.feed(strings.TrimSpace(scanner.Text())); err != nil {
			return nil, fmt.Errorf("line %d: %w", p.line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	p.closeSession()
	return p.sessions, nil
}

type parser struct {
	line     int
	sessions []Session
	session  *Session
	exercise *Exercise
}

func (p *parser) feed(line string) error {
	switch {
	case line == "":
		p.closeSession()
		return nil
	case columnLine.MatchString(line):
		return nil
	}

	if m := sessionLine.FindStringSubmatch(line); m != nil {
		p.closeSession()
		date, err := parseSessionDate(m[2])
		if err != nil {
			return err
		}
		p.session = &Session{Name: m[1], Date: date, Duration: m[3]}
		return nil
	}

	if m := exerciseLine.FindStringSubmatch(line); m != nil {
		if p.session == nil {
			return fmt.Errorf("exercise without session: %q", line)
		}
		p.closeExercise()
		num, _ := strconv.Atoi(m[1])
		target, _ := strconv.Atoi(m[4])
		ex := &Exercise{
			Number:     num,
			Name:       strings.TrimSpace(m[2]),
			Equipment:  strings.TrimSpace(m[3]),
			TargetReps: target,
		}
		if m[6] != "" {
			warmups, err := parseWarmups(m[6])
			if err != nil {
				return err
			}
			ex.Warmups = warmups
		}
		p.exercise = ex
		return nil
	}

	if m := setLine.FindStringSubmatch(line); m != nil {
		if p.exercise == nil {
			return fmt.Errorf("set data without exercise: %q", line)
		}
		set, err := parseSet(m[1], m[2], m[3], m[4])
		if err != nil {
			return err
		}
		p.exercise.Sets = append(p.exercise.Sets, set)
		return nil
	}

	// Notes and other metadata.
	return nil
}

func (p *parser) closeExercise() {
	if p.exercise != nil && p.session != nil {
		p.session.Exercises = append(p.session.Exercises, *p.exercise)
	}
	p.exercise = nil
}

func (p *parser) closeSession() {
	p.closeExercise()
	if p.session != nil {
		p.sessions = append(p.sessions, *p.session)
	}
	p.session = nil
}

// parseSessionDate accepts both "2026-02-19 4:54" and "2026-02-19 16:54".
func parseSessionDate(s string) (time.Time, error) {
	s = strings.Join(strings.Fields(s), " ")
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02 3:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse session date %q", s)
}

func parseSet(num, weight, reps, rir string) (Set, error) {
	set := Set{}
	set.Number, _ = strconv.Atoi(num)
	set.Reps, _ = strconv.Atoi(reps)
	w, bw, err := parseWeight(weight)
	if err != nil {
		return Set{}, fmt.Errorf("set %s: %w", num, err)
	}
	set.WeightKg, set.IsBodyweightPlus = w, bw
	if rir = strings.TrimSpace(rir); rir != "" && rir != "-" {
		v, err := parseDecimal(rir)
		if err != nil {
			return Set{}, fmt.Errorf("set %s: RIR: %w", num, err)
		}
		set.RIR = &v
	}
	return set, nil
}

// parseWarmups splits the exercise header's warmup column on <br>.
func parseWarmups(s string) ([]Set, error) {
	var sets []Set
	for _, part := range strings.Split(s, "<br>") {
		m := warmupEntry.FindStringSubmatch(part)
		if m == nil {
			continue
		}
		num, _ := strconv.Atoi(m[1])
		reps, _ := strconv.Atoi(m[3])
		w, bw, err := parseWeight(m[2])
		if err != nil {
			return nil, fmt.Errorf("warmup %d: %w", num, err)
		}
		sets = append(sets, Set{Number: num, WeightKg: w, IsBodyweightPlus: bw, Reps: reps})
	}
	return sets, nil
}

// parseWeight reads "102,5" as 102.5 kg and "+35" as bodyweight plus 35 kg.
func parseWeight(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	bw := strings.HasPrefix(s, "+")
	w, err := parseDecimal(strings.TrimPrefix(s, "+"))
	if err != nil {
		return 0, false, fmt.Errorf("weight: %w", err)
	}
	return w, bw, nil
}

// parseDecimal accepts comma or dot decimal separators.
func parseDecimal(s string) (float64, error) {
	return strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", "."), 64)
}
