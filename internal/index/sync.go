package index

import (
	"log/slog"
	"strings"

	"github.com/starford/bibkit/internal/bibcache"
	"github.com/starford/bibkit/internal/checksum"
	"github.com/starford/bibkit/internal/format"
	"github.com/starford/bibkit/internal/models"
)

// SyncStats counts the changes made by Sync.
type SyncStats struct {
	Upserted int
	Deleted  int
}

// Sync brings the index up to date with view:
//   - new/changed records are upserted
//   - records no longer in the view are deleted
func Sync(db RecordIndex, view *bibcache.View, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats
	checksums, err := db.AllChecksums()
	if err != nil {
		return stats, err
	}

	for _, key := range view.Keys() {
		rec, _ := view.Get(key)
		row := rowFor(rec, view.Source(key))
		if checksums[key] == row.Checksum {
			continue
		}
		if err := db.UpsertRecord(row); err != nil {
			logger.Warn("sync: index failed", slog.String("key", key), slog.String("error", err.Error()))
			continue
		}
		stats.Upserted++
	}

	// Remove stale entries.
	for key := range checksums {
		if view.Has(key) {
			continue
		}
		if err := db.DeleteRecord(key); err != nil {
			logger.Warn("sync: delete failed", slog.String("key", key), slog.String("error", err.Error()))
			continue
		}
		stats.Deleted++
	}

	logger.Debug("sync: done",
		slog.Int("records", view.Len()),
		slog.Int("upserted", stats.Upserted),
		slog.Int("deleted", stats.Deleted))
	return stats, nil
}

func rowFor(rec models.Record, source string) RecordRow {
	author := rec.Get("author")
	if author == "" {
		author = rec.Get("editor")
	}
	year := rec.Get("year")
	if year == "" {
		year = rec.Get("date")
	}
	var body []string
	for _, name := range rec.FieldNames() {
		if v := rec.Get(name); v != "" {
			body = append(body, format.CleanString(v))
		}
	}
	return RecordRow{
		Key:    rec.Key,
		Source: source,
		Type:   rec.Type,
		Title:  format.CleanString(rec.Get("title")),
		Author: format.CleanString(author),
		Year:   format.Year(year),
		Fields: rec.Fields,
		Body:   strings.Join(body, " "),
		// The source is part of the digest so a record moving between files is rewritten.
		Checksum: checksum.Sum([]byte(source + "\x00" + checksum.Record(rec))),
	}
}
