package replay

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/nvandessel/episim/internal/models"
)

// ReadAttributes parses a population CSV with a header row. The "id"
// column is required; "district", "age" and "home" are optional.
func ReadAttributes(r io.Reader) (map[string]models.Attributes, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read population header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	idCol, ok := cols["id"]
	if !ok {
		return nil, fmt.Errorf("population header lacks an id column")
	}
	field := func(rec []string, name string) string {
		if i, ok := cols[name]; ok && i < len(rec) {
			return rec[i]
		}
		return ""
	}

	out := make(map[string]models.Attributes)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read population: %w", err)
		}
		id := rec[idCol]
		if id == "" {
			line, _ := cr.FieldPos(idCol)
			return nil, fmt.Errorf("population line %d: empty id", line)
		}
		a := models.Attributes{District: field(rec, "district"), HomeID: field(rec, "home")}
		if s := field(rec, "age"); s != "" {
			a.Age, err = strconv.Atoi(s)
			if err != nil {
				return nil, fmt.Errorf("population entry %s: invalid age %q", id, s)
			}
		}
		out[id] = a
	}
	return out, nil
}

// LoadAttributes reads a population CSV from disk.
func LoadAttributes(path string) (map[string]models.Attributes, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open population: %w", err)
	}
	defer f.Close()
	return ReadAttributes(f)
}
