package stats

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/meltforce/gymlog/internal/models"
)

var csvHeader = []string{"Date", "Exercise", "Set", "Reps", "Weight", "Unit", "Notes"}

// WriteCSV writes one row per set. Sessions keep their given order; weights
// are written in the unit they were recorded in.
func WriteCSV(w io.Writer, sessions []models.Session) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, s := range sessions {
		date := s.Date.Format("2006-01-02")
		for _, e := range s.Exercises {
			for _, set := range e.Sets {
				notes := ""
				if set.Notes != nil {
					notes = *set.Notes
				}
				if err := cw.Write([]string{
					date,
					e.Name,
					strconv.Itoa(set.SetNumber),
					strconv.Itoa(set.Reps),
					strconv.FormatFloat(set.Weight, 'f', -1, 64),
					string(set.WeightUnit),
					notes,
				}); err != nil {
					return err
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
