package memory

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// ExportJSON writes every record as the same document shape the store
// file uses, so an export is directly loadable.
func (s *Store) ExportJSON(w io.Writer) error {
	s.mu.Lock()
	doc := storeDoc{Memories: append([]Record{}, s.records...)}
	s.mu.Unlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

// ExportCSV writes a flat spreadsheet-friendly view. Structured values
// are kept as their JSON text.
func (s *Store) ExportCSV(w io.Writer) error {
	s.mu.Lock()
	records := append([]Record{}, s.records...)
	s.mu.Unlock()

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "user_id", "type", "key", "value", "created_at", "active", "priority"}); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		active := "false"
		if rec.Active {
			active = "true"
		}
		row := []string{
			rec.ID,
			rec.UserID,
			string(rec.Type),
			rec.Key,
			string(rec.Value),
			rec.CreatedAt.Format(time.RFC3339),
			active,
			string(rec.Priority),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ImportJSON merges records from an exported document. Records whose
// id already exists are skipped; the rest are appended as-is, then
// optionally re-indexed for semantic search. Returns the number of
// records imported.
func (s *Store) ImportJSON(ctx context.Context, r io.Reader, reindex bool) (int, error) {
	var doc storeDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return 0, fmt.Errorf("decode import: %w", err)
	}

	var added []Record
	s.mu.Lock()
	for _, rec := range doc.Memories {
		if rec.ID == "" || s.index(rec.ID) >= 0 {
			continue
		}
		s.records = append(s.records, rec)
		added = append(added, rec)
	}
	err := s.persist()
	s.mu.Unlock()
	if err != nil {
		return 0, err
	}

	if reindex && s.semantic != nil {
		for _, rec := range added {
			_, ierr := s.semantic.AddDocument(ctx, semanticDocument(rec))
			if ierr != nil {
				s.log.Warn("vector indexing failed, record kept", "id", rec.ID, "error", ierr)
			}
		}
	}
	return len(added), nil
}
