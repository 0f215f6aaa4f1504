package redis

import (
	"context"
	"sort"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/planguard/internal/db"
)

// XAdd appends fields to stream with an auto-generated id, trimming the stream
// to roughly maxLen entries (MAXLEN ~). maxLen <= 0 disables trimming.
func (s *Store) XAdd(ctx context.Context, stream string, maxLen int64, fields map[string]string) (string, error) {
	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)

	key := s.b().Xadd().Key(stream)
	var cmd rueidis.Completed
	if maxLen > 0 {
		fv := key.Maxlen().Almost().Threshold(strconv.FormatInt(maxLen, 10)).Id("*").FieldValue()
		for _, f := range names {
			fv = fv.FieldValue(f, fields[f])
		}
		cmd = fv.Build()
	} else {
		fv := key.Id("*").FieldValue()
		for _, f := range names {
			fv = fv.FieldValue(f, fields[f])
		}
		cmd = fv.Build()
	}

	id, err := s.do(ctx, cmd).ToString()
	if err != nil {
		return "", &db.Error{Op: db.OpXAdd, Err: err}
	}
	return id, nil
}
