package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/camuig/llm-arena/internal/models"
)

var exitPlanHeader = []string{"symbol", "profit_target", "stop_loss", "invalidation_condition"}

// ExitPlanStore persists symbol -> exit plan in a flat CSV file. It holds no
// lock: one store per agent, one writer per store.
type ExitPlanStore struct {
	path string
}

func NewExitPlanStore(path string) (*ExitPlanStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create exit plan dir: %w", err)
		}
	}
	return &ExitPlanStore{path: path}, nil
}

func (s *ExitPlanStore) Path() string {
	return s.path
}

// Load reads every well-formed row. A missing file yields an empty map.
// Rows with an empty symbol or non-numeric bounds are skipped.
func (s *ExitPlanStore) Load() (map[string]models.ExitPlan, error) {
	plans := make(map[string]models.ExitPlan)

	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return plans, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open exit plans: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return plans, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read exit plan header: %w", err)
	}
	cols := columnIndex(header)

	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				continue
			}
			return nil, fmt.Errorf("read exit plans: %w", err)
		}

		symbol := strings.TrimSpace(field(row, cols, "symbol"))
		if symbol == "" {
			continue
		}
		target, err := strconv.ParseFloat(strings.TrimSpace(field(row, cols, "profit_target")), 64)
		if err != nil {
			continue
		}
		stop, err := strconv.ParseFloat(strings.TrimSpace(field(row, cols, "stop_loss")), 64)
		if err != nil {
			continue
		}
		plans[symbol] = models.ExitPlan{
			ProfitTarget:          target,
			StopLoss:              stop,
			InvalidationCondition: field(row, cols, "invalidation_condition"),
		}
	}

	return plans, nil
}

// Save replaces the file with one row per plan, sorted by symbol. Rows go to
// a temporary file in the same directory that is renamed over the old one,
// so a failed write leaves the previous plans in place.
func (s *ExitPlanStore) Save(plans map[string]models.ExitPlan) (err error) {
	symbols := make([]string, 0, len(plans))
	for symbol := range plans {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	f, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create exit plans: %w", err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(f.Name())
		}
	}()

	if err := f.Chmod(0o644); err != nil {
		return fmt.Errorf("chmod exit plans: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(exitPlanHeader); err != nil {
		return fmt.Errorf("write exit plan header: %w", err)
	}
	for _, symbol := range symbols {
		p := plans[symbol]
		if err := w.Write([]string{
			symbol,
			strconv.FormatFloat(p.ProfitTarget, 'f', -1, 64),
			strconv.FormatFloat(p.StopLoss, 'f', -1, 64),
			p.InvalidationCondition,
		}); err != nil {
			return fmt.Errorf("write exit plan %s: %w", symbol, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush exit plans: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close exit plans: %w", err)
	}
	if err := os.Rename(f.Name(), s.path); err != nil {
		return fmt.Errorf("replace exit plans: %w", err)
	}
	return nil
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	return cols
}

func field(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}
