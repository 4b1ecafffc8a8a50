package csvbackend

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/FranksOps/serpcmp/internal/storage"
)

// ensure csvBackend implements storage.Backend
var _ storage.Backend = (*csvBackend)(nil)

type csvBackend struct {
	mu   sync.Mutex
	file *os.File
}

// headers defines the CSV column order
var headers = []string{
	"id",
	"created_at",
	"provider",
	"result_count",
	"reference_keyword",
	"similarity_percentage",
	"queries_json",
	"common_links_json",
	"rows_json",
}

// New creates a new CSV-backed storage.Backend.
func New(filePath string) (storage.Backend, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open csv file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat csv file: %w", err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
	}

	return &csvBackend{file: f}, nil
}

func (b *csvBackend) Save(ctx context.Context, snap *storage.Snapshot) error {
	queriesJSON, err := json.Marshal(snap.Queries)
	if err != nil {
		return fmt.Errorf("encode queries: %w", err)
	}
	linksJSON, err := json.Marshal(snap.CommonLinks)
	if err != nil {
		return fmt.Errorf("encode common links: %w", err)
	}
	rowsJSON, err := json.Marshal(snap.Rows)
	if err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}

	record := []string{
		snap.ID,
		snap.CreatedAt.Format(time.RFC3339Nano),
		snap.Provider,
		strconv.Itoa(snap.ResultCount),
		snap.ReferenceKeyword(),
		strconv.FormatFloat(snap.Percentage, 'f', -1, 64),
		string(queriesJSON),
		string(linksJSON),
		string(rowsJSON),
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek csv file: %w", err)
	}

	w := csv.NewWriter(b.file)
	if err := w.Write(record); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (b *csvBackend) Query(ctx context.Context, filter storage.Filter) ([]*storage.Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind csv file: %w", err)
	}
	defer func() {
		// Restore pointer to end for writing
		_, _ = b.file.Seek(0, io.SeekEnd)
	}()

	r := csv.NewReader(b.file)

	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return []*storage.Snapshot{}, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var matched []*storage.Snapshot
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv record: %w", err)
		}
		if len(record) != len(headers) {
			continue // skip malformed rows
		}

		s, ok := parseRecord(record)
		if !ok {
			continue
		}
		if filter.Match(s) {
			matched = append(matched, s)
		}
	}

	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	return filter.Page(matched), nil
}

// parseRecord rebuilds a snapshot, rejecting rows whose JSON columns are corrupt.
func parseRecord(record []string) (*storage.Snapshot, bool) {
	createdAt, _ := time.Parse(time.RFC3339Nano, record[1])
	resultCount, _ := strconv.Atoi(record[3])
	percentage, _ := strconv.ParseFloat(record[5], 64)

	s := &storage.Snapshot{
		ID:          record[0],
		CreatedAt:   createdAt,
		Provider:    record[2],
		ResultCount: resultCount,
		Percentage:  percentage,
	}
	if err := json.Unmarshal([]byte(record[6]), &s.Queries); err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(record[7]), &s.CommonLinks); err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(record[8]), &s.Rows); err != nil {
		return nil, false
	}
	return s, true
}

func (b *csvBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}
