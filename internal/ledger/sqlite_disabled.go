//go:build !sqlite
// +build !sqlite

package ledger

import (
	"fmt"

	"calcnotify/pkg/logx"
)

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	_ = cfg
	_ = log
	return nil, fmt.Errorf("%w: build with -tags sqlite", ErrDisabled)
}
