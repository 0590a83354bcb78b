// Package export renders room assignments as an XLSX rooming list.
package export

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"tourrooms/solver"
)

var header = []any{"Room", "Capacity", "Traveler", "Preferences Met", "Cohesion"}

type Occupant struct {
	Name      string
	Satisfied int
	Stated    int
}

type Room struct {
	Number    int
	Capacity  int
	Cohesion  int
	Occupants []Occupant
}

type Section struct {
	Gender     string
	Rooms      []Room
	Unassigned []string
	Satisfied  int
	Mutual     int
}

// FromAssignment builds the sheet contents for one gender, with travelers
// listed by display name.
func FromAssignment(a *solver.Assignment[string, string]) Section {
	m := a.Metrics()
	name := func(id string) string {
		if t, ok := a.Traveler(id); ok && t.Name != "" {
			return t.Name
		}
		return "ID " + id
	}
	s := Section{
		Gender:    a.Gender(),
		Satisfied: m.PreferencesSatisfied,
		Mutual:    m.MutualPreferencesSatisfied,
	}
	for _, r := range m.Rooms {
		room := Room{Number: r.ID, Capacity: r.Capacity, Cohesion: r.Cohesion}
		for _, id := range r.Occupants {
			room.Occupants = append(room.Occupants, Occupant{
				Name:      name(id),
				Satisfied: m.Satisfied[id],
				Stated:    m.Attainable[id],
			})
		}
		s.Rooms = append(s.Rooms, room)
	}
	for _, id := range m.UnassignedIDs {
		s.Unassigned = append(s.Unassigned, name(id))
	}
	return s
}

// maxSheetName is the Excel limit on sheet name length, in characters.
const maxSheetName = 31

func sheetName(gender string) string {
	n := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, strings.TrimSpace(gender))
	if n == "" {
		return "Rooms"
	}
	first, size := utf8.DecodeRuneInString(n)
	runes := []rune(string(unicode.ToUpper(first)) + n[size:])
	if len(runes) > maxSheetName {
		runes = runes[:maxSheetName]
	}
	return string(runes)
}

// RoomingList writes one sheet per section. The first row of each sheet
// carries the tour name.
func RoomingList(tourName string, sections []Section) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	if len(sections) == 0 {
		sections = []Section{{}}
	}
	for i, sec := range sections {
		sheet := sheetName(sec.Gender)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return nil, fmt.Errorf("failed to name sheet: %w", err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}
		if err := writeSection(f, sheet, tourName, sec, bold); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeSection(f *excelize.File, sheet, tourName string, sec Section, headerStyle int) error {
	row := 1
	put := func(values ...any) error {
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		row++
		return f.SetSheetRow(sheet, cell, &values)
	}

	if err := put(tourName); err != nil {
		return fmt.Errorf("failed to write title: %w", err)
	}
	if err := put(header...); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A2", "E2", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}
	for _, r := range sec.Rooms {
		for _, o := range r.Occupants {
			met := fmt.Sprintf("%d/%d", o.Satisfied, o.Stated)
			if err := put(r.Number, r.Capacity, o.Name, met, r.Cohesion); err != nil {
				return fmt.Errorf("failed to write room %d: %w", r.Number, err)
			}
		}
	}
	for _, name := range sec.Unassigned {
		if err := put("Unassigned", "", name, "", ""); err != nil {
			return fmt.Errorf("failed to write unassigned row: %w", err)
		}
	}
	row++
	if err := put("Preferences satisfied", sec.Satisfied); err != nil {
		return err
	}
	if err := put("Mutual preferences", sec.Mutual); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "C", "C", 28)
}
