package redis

import (
	"context"

	"github.com/kailas-cloud/planguard/internal/db"
)

// Eval runs script with EVAL. The script runs atomically on the server.
func (s *Store) Eval(ctx context.Context, script string, keys, args []string) ([]string, error) {
	cmd := s.b().Eval().Script(script).Numkeys(int64(len(keys))).Key(keys...).Arg(args...).Build()
	out, err := s.do(ctx, cmd).AsStrSlice()
	if err != nil {
		return nil, &db.Error{Op: db.OpEval, Err: err}
	}
	return out, nil
}
