// Package ingest loads the initial aircraft population from the CSV
// file named on the command line.
//
// Grounded on the teacher's internal/atc/atcparsers.go, whose
// bufio.Scanner-driven line parsers skip malformed records with a
// logged reason rather than aborting the whole file; the same
// skip-and-log discipline applies here to spec.md §6's CSV ingest
// contract.
package ingest

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/curbz/atc-kernel/internal/atcerr"
	"github.com/curbz/atc-kernel/internal/config"
)

// Row is one accepted aircraft record: the initial simulation time,
// identity, position, and velocity.
type Row struct {
	Time float64
	ID   string
	X, Y, Z    float64
	VX, VY, VZ float64
}

const expectedHeader = "Time,ID,X,Y,Z,SpeedX,SpeedY,SpeedZ"
const expectedFieldCount = 8
const minIDLength = 3
const maxIDLength = 10

// Load reads path as the CSV format spec.md §6 defines: a literal
// header line, then comma-separated rows of exactly 8 fields. A row
// failing validation (field count, numeric parse, position inside the
// airspace volume, speed within [MinSpeed, MaxSpeed]) is skipped with a
// logged reason rather than aborting the load. Load returns
// atcerr.InvalidInput if zero rows were accepted, even if the file
// parsed without I/O errors (spec.md §6: "Load succeeds iff at least
// one aircraft was accepted").
func Load(path string, cfg *config.Config, log *logrus.Entry) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening aircraft data file %s: %w", path, atcerr.Fatal)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return nil, fmt.Errorf("aircraft data file %s is empty: %w", path, atcerr.InvalidInput)
	}
	header := strings.TrimSpace(scanner.Text())
	if header != expectedHeader {
		log.WithField("header", header).Warn("unexpected CSV header, continuing anyway")
	}

	var rows []Row
	lineNum := 1
	skipped := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		row, err := parseRow(line, cfg)
		if err != nil {
			log.WithFields(logrus.Fields{"line": lineNum, "error": err}).Warn("skipping invalid aircraft row")
			skipped++
			continue
		}
		rows = append(rows, row)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading aircraft data file %s: %w", path, atcerr.TransientIO)
	}

	log.WithFields(logrus.Fields{"accepted": len(rows), "skipped": skipped}).Info("aircraft ingest complete")

	if len(rows) == 0 {
		return nil, fmt.Errorf("no aircraft rows accepted from %s: %w", path, atcerr.InvalidInput)
	}
	return rows, nil
}

func parseRow(line string, cfg *config.Config) (Row, error) {
	fields := strings.Split(line, ",")
	if len(fields) != expectedFieldCount {
		return Row{}, fmt.Errorf("expected %d fields, got %d: %w", expectedFieldCount, len(fields), atcerr.InvalidInput)
	}

	id := strings.TrimSpace(fields[1])
	if err := validateID(id); err != nil {
		return Row{}, err
	}

	vals := make([]float64, 0, 7)
	for _, idx := range []int{0, 2, 3, 4, 5, 6, 7} {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[idx]), 64)
		if err != nil {
			return Row{}, fmt.Errorf("field %d (%q) is not numeric: %w", idx, fields[idx], atcerr.InvalidInput)
		}
		vals = append(vals, v)
	}

	row := Row{
		Time: vals[0], ID: id,
		X: vals[1], Y: vals[2], Z: vals[3],
		VX: vals[4], VY: vals[5], VZ: vals[6],
	}

	if row.X < cfg.Airspace.XMin || row.X > cfg.Airspace.XMax ||
		row.Y < cfg.Airspace.YMin || row.Y > cfg.Airspace.YMax ||
		row.Z < cfg.Airspace.ZMin || row.Z > cfg.Airspace.ZMax {
		return Row{}, fmt.Errorf("position (%v, %v, %v) outside airspace volume: %w", row.X, row.Y, row.Z, atcerr.InvalidInput)
	}

	speed := math.Sqrt(row.VX*row.VX + row.VY*row.VY + row.VZ*row.VZ)
	if speed < cfg.Performance.MinSpeed || speed > cfg.Performance.MaxSpeed {
		return Row{}, fmt.Errorf("speed %.2f outside [%.2f, %.2f]: %w", speed, cfg.Performance.MinSpeed, cfg.Performance.MaxSpeed, atcerr.InvalidInput)
	}

	return row, nil
}

func validateID(id string) error {
	if len(id) < minIDLength || len(id) > maxIDLength {
		return fmt.Errorf("aircraft id %q must be %d-%d characters: %w", id, minIDLength, maxIDLength, atcerr.InvalidInput)
	}
	for _, r := range id {
		if !((r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return fmt.Errorf("aircraft id %q must be alphanumeric: %w", id, atcerr.InvalidInput)
		}
	}
	return nil
}
