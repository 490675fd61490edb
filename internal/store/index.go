package store

import "context"

// Index keeps FailureRecords. Insert is an atomic insert-if-absent: exactly
// one caller per fingerprint sees created == true, and every other caller
// increments Duplicates and moves LastSeen.
type Index interface {
	Insert(ctx context.Context, rec FailureRecord) (stored FailureRecord, created bool, err error)
	Get(ctx context.Context, fingerprint string) (FailureRecord, error)
	// List returns records newest first along with the total count.
	List(ctx context.Context, offset, limit int) ([]FailureRecord, int64, error)
	Close() error
}

func pageBounds(total, offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return offset, end
}
