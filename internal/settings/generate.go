package settings

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"econstats-engine/internal/domain"
)

var ErrNoAvailability = errors.New("no available years discovered")

type Named struct {
	Name       string
	Descriptor domain.JobDescriptor
}

func YearFileName(year string) string { return "output_" + year + Ext }

// IsAggregate reports whether a descriptor (or export) file is the national one.
func IsAggregate(name string) bool { return strings.HasPrefix(filepath.Base(name), "USA") }

// YearFromFile extracts the 4-digit year from output_<year>.qwi.
func YearFromFile(name string) (string, bool) {
	base := strings.TrimSuffix(filepath.Base(name), Ext)
	if len(base) < 4 {
		return "", false
	}
	y := base[len(base)-4:]
	if _, err := strconv.Atoi(y); err != nil {
		return "", false
	}
	return y, true
}

// Quarters lists "<y>.1".."<y>.4" for every year from..to inclusive.
func Quarters(from, to int) []string {
	if to < from {
		return nil
	}
	out := make([]string, 0, 4*(to-from+1))
	for y := from; y <= to; y++ {
		for q := 1; q <= 4; q++ {
			out = append(out, fmt.Sprintf("%d.%d", y, q))
		}
	}
	return out
}

// Generate builds one descriptor per year plus the national aggregate spanning
// every discovered year. Year descriptors come first, ordered by year.
func Generate(avail domain.YearAvailability) ([]Named, error) {
	min, max, ok := avail.Span()
	if !ok {
		return nil, ErrNoAvailability
	}

	var out []Named
	for _, year := range avail.Years() {
		y, _ := strconv.Atoi(year)
		out = append(out, Named{
			Name:       YearFileName(year),
			Descriptor: domain.NewDescriptor(sortedUnique(avail[year]), Quarters(y, y)),
		})
	}
	out = append(out, Named{
		Name:       AggregateFile,
		Descriptor: domain.NewDescriptor([]string{domain.NationalGeoID}, Quarters(min, max)),
	})
	return out, nil
}

func sortedUnique(xs []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(xs))
	for _, x := range xs {
		x = strings.TrimSpace(x)
		if x == "" || seen[x] {
			continue
		}
		seen[x] = true
		out = append(out, x)
	}
	sort.Strings(out)
	return out
}

type WriteResult struct {
	// Target is the directory the year descriptors went to.
	Target string
	// Direct is true when committed was empty and no reconciliation is needed.
	Direct           bool
	AggregateChanged bool
	Written          []string
}

// Write stores generated descriptors. Year descriptors go straight to committed
// on a first run and to pending otherwise; the aggregate always replaces the
// committed one.
func Write(s *Store, descs []Named) (WriteResult, error) {
	var res WriteResult

	empty, err := s.CommittedEmpty()
	if err != nil {
		return res, err
	}
	res.Direct = empty
	res.Target = s.Pending
	if empty {
		res.Target = s.Committed
	} else if n, err := s.clearPending(); err != nil {
		return res, fmt.Errorf("clear pending: %w", err)
	} else if n > 0 {
		log.Printf("[settings] removed %d stale pending descriptor(s)", n)
	}

	for _, d := range descs {
		b, err := Encode(d.Descriptor)
		if err != nil {
			return res, fmt.Errorf("encode %s: %w", d.Name, err)
		}

		dir := res.Target
		if IsAggregate(d.Name) {
			dir = s.Committed
			prev, err := os.ReadFile(filepath.Join(dir, d.Name))
			switch {
			case errors.Is(err, os.ErrNotExist):
				res.AggregateChanged = true
			case err != nil:
				return res, err
			default:
				same, err := Equal(prev, b)
				if err != nil {
					log.Printf("[settings] previous aggregate unreadable, replacing: %v", err)
				}
				res.AggregateChanged = !same
			}
		}

		p := filepath.Join(dir, d.Name)
		if err := writeFileAtomic(p, b); err != nil {
			return res, fmt.Errorf("write %s: %w", p, err)
		}
		res.Written = append(res.Written, p)
	}

	log.Printf("[settings] wrote %d descriptor(s) target=%s aggregate_changed=%v",
		len(res.Written), res.Target, res.AggregateChanged)
	return res, nil
}
