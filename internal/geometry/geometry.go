// Package geometry computes seat positions and camera look angles from
// section definitions. The computation is pure: no I/O, no network calls.
package geometry

import (
	"math"
	"sort"
)

// Section describes one arena section's seating geometry.
type Section struct {
	SectionID  string
	Tier       string
	Angle      float64 // degrees, section center angle
	InnerRadius float64
	Rows       int
	RowDepth   float64
	RowRise    float64
	BaseHeight float64
}

// Seat is one computed seat position plus the camera angle that looks
// toward the arena center.
type Seat struct {
	ID         string  `json:"id"`
	Section    string  `json:"section"`
	Row        string  `json:"row"`
	Seat       int     `json:"seat"`
	Tier       string  `json:"tier"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	LookAngle  float64 `json:"look_angle"`
}

const sectionArcDegrees = 15.0

// Position computes the (x, y, z, look_angle) for a single seat within a
// section. row is 0-indexed from the front; seatIdx/seatsPerRow place the
// seat within the row's lateral spread across the section arc.
//
// x = radius*sin(theta), y = radius*cos(theta), z = height;
// look_angle = atan2(-x, -y) in degrees, pointing at (0, 0, 0), reported
// in the range (-180, 180].
func Position(sectionAngle, tierRadius float64, row, seatIdx, seatsPerRow int, rowDepth, rowRise, baseHeight float64) (x, y, z, lookAngle float64) {
	radius := tierRadius + float64(row)*rowDepth
	height := baseHeight + float64(row)*rowRise

	var seatOffset float64
	if seatsPerRow > 1 {
		seatOffset = (float64(seatIdx)/float64(seatsPerRow-1) - 0.5) * sectionArcDegrees
	}

	totalAngle := sectionAngle + seatOffset
	rad := totalAngle * math.Pi / 180

	x = round(radius*math.Sin(rad), 3)
	y = round(radius*math.Cos(rad), 3)
	z = round(height, 3)
	lookAngle = round(math.Atan2(-x, -y)*180/math.Pi, 2)
	if lookAngle <= -180 {
		lookAngle += 360
	}
	return
}

func round(v float64, places int) float64 {
	mult := math.Pow(10, float64(places))
	return math.Round(v*mult) / mult
}

// rowLabels names the three representative rows generated per section.
var rowLabels = []struct {
	label string
	index func(rows int) int
}{
	{"Front", func(rows int) int { return 0 }},
	{"Middle", func(rows int) int { return rows / 2 }},
	{"Back", func(rows int) int { return rows - 1 }},
}

// GenerateSection produces the Front/Middle/Back representative seats for
// one section: a single centered seat per row.
func GenerateSection(s Section) []Seat {
	seats := make([]Seat, 0, len(rowLabels))
	for _, rl := range rowLabels {
		row := rl.index(s.Rows)
		x, y, z, look := Position(s.Angle, s.InnerRadius, row, 0, 1, s.RowDepth, s.RowRise, s.BaseHeight)
		seats = append(seats, Seat{
			ID:        s.SectionID + "_" + rl.label + "_1",
			Section:   s.SectionID,
			Row:       rl.label,
			Seat:      1,
			Tier:      s.Tier,
			X:         x,
			Y:         y,
			Z:         z,
			LookAngle: look,
		})
	}
	return seats
}

// GenerateAll runs GenerateSection over every section, preserving input order.
func GenerateAll(sections []Section) []Seat {
	var all []Seat
	for _, s := range sections {
		all = append(all, GenerateSection(s)...)
	}
	return all
}

// anchorTiers lists the tiers eligible for anchor sampling. Floor and club
// tiers are excluded, matching the original seat-sampling script.
var anchorTiers = []string{"lower", "mid", "upper"}

// AnchorSeats picks a minimal representative subset for quick previews:
// up to 3 sections per eligible tier (start, middle, end when a tier has
// 3+ sections), and within each chosen section, the front-row-center seat
// plus the back-row-center seat when the section has more than one row.
func AnchorSeats(all []Seat) []Seat {
	byTier := make(map[string][]Seat)
	for _, seat := range all {
		byTier[seat.Tier] = append(byTier[seat.Tier], seat)
	}

	var anchors []Seat
	for _, tier := range anchorTiers {
		tierSeats, ok := byTier[tier]
		if !ok {
			continue
		}

		sectionSet := make(map[string]struct{})
		for _, s := range tierSeats {
			sectionSet[s.Section] = struct{}{}
		}
		sections := make([]string, 0, len(sectionSet))
		for s := range sectionSet {
			sections = append(sections, s)
		}
		sort.Strings(sections)

		var sampleSections []string
		if len(sections) >= 3 {
			sampleSections = []string{sections[0], sections[len(sections)/2], sections[len(sections)-1]}
		} else {
			sampleSections = sections
		}

		for _, section := range sampleSections {
			var sectionSeats []Seat
			for _, s := range tierSeats {
				if s.Section == section {
					sectionSeats = append(sectionSeats, s)
				}
			}

			rowSet := make(map[string]struct{})
			for _, s := range sectionSeats {
				rowSet[s.Row] = struct{}{}
			}
			rows := make([]string, 0, len(rowSet))
			for r := range rowSet {
				rows = append(rows, r)
			}
			sort.Strings(rows)
			if len(rows) == 0 {
				continue
			}

			front := rowSeatsFor(sectionSeats, "Front")
			if len(front) > 0 {
				anchors = append(anchors, front[len(front)/2])
			}
			if len(rows) > 1 {
				back := rowSeatsFor(sectionSeats, "Back")
				if len(back) > 0 {
					anchors = append(anchors, back[len(back)/2])
				}
			}
		}
	}
	return anchors
}

func rowSeatsFor(seats []Seat, row string) []Seat {
	var out []Seat
	for _, s := range seats {
		if s.Row == row {
			out = append(out, s)
		}
	}
	return out
}
