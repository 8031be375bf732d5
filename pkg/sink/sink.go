package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cosmonauts/whalewatching/pkg/types"
)

// Sink persists a computed report.
type Sink interface {
	Write(ctx context.Context, rep *types.Report) error
}

// JSONSink writes the leaderboard rows as an indented JSON array, or the
// whole report when Envelope is set.
type JSONSink struct {
	Path     string
	Envelope bool
}

func (s JSONSink) Write(_ context.Context, rep *types.Report) error {
	var v any = rep.Rows
	if s.Envelope {
		v = rep
	}
	return writeFile(s.Path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// CSVSink writes one line per row under an Address,Weight,WeightPerc,Rank header.
type CSVSink struct {
	Path string
}

func (s CSVSink) Write(_ context.Context, rep *types.Report) error {
	return writeFile(s.Path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write([]string{"Address", "Weight", "WeightPerc", "Rank"}); err != nil {
			return err
		}
		for _, r := range rep.Rows {
			rec := []string{
				r.Address,
				strconv.FormatFloat(r.Weight, 'f', -1, 64),
				strconv.FormatFloat(r.WeightPerc, 'f', -1, 64),
				strconv.Itoa(r.Rank),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// writeFile fills a temp file next to path and renames it into place.
// Readers see either the previous file or the complete new one.
func writeFile(path string, fill func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("sink %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if err := fill(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("sink %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("sink %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("sink %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("sink %s: %w", path, err)
	}
	return nil
}

// Multi writes to every sink in order and stops at the first failure.
type Multi []Sink

func (m Multi) Write(ctx context.Context, rep *types.Report) error {
	for _, s := range m {
		if err := s.Write(ctx, rep); err != nil {
			return err
		}
	}
	return nil
}
