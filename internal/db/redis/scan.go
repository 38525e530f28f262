package redis

import (
	"context"

	"github.com/kailas-cloud/docsync/internal/db"
)

// ScanPage returns one SCAN page of keys matching pattern and the cursor to continue from.
func (s *Store) ScanPage(ctx context.Context, pattern string, cursor uint64, count int64) ([]string, uint64, error) {
	cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(count).Build()
	res, err := s.do(ctx, cmd).AsScanEntry()
	if err != nil {
		return nil, 0, &db.Error{Op: db.OpScan, Err: err}
	}
	return res.Elements, res.Cursor, nil
}
