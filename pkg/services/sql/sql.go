// Package sql implements the Sybase/ODBC back-end service kind on top of
// database/sql using the pgx driver, the closest real SQL client library
// available in the retrieved example pack.
package sql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/pdsmart/mdc/pkg/protocol"
)

// Handler executes a request (a single SQL statement) and streams each
// result row as a DATA chunk. The connection DSN is built per-request from
// the credentials carried in the wire's service-selection payload
// (protocol.Credentials); FallbackDSN is used only when the channel
// selected a service without providing a server/user.
type Handler struct {
	FallbackDSN string

	mu   sync.Mutex
	pool map[string]*sql.DB
}

// NewHandler builds a handler that falls back to fallbackDSN when a
// channel's selected credentials don't carry enough to build a DSN.
func NewHandler(fallbackDSN string) *Handler {
	return &Handler{FallbackDSN: fallbackDSN, pool: make(map[string]*sql.DB)}
}

func dsnFromCredentials(creds protocol.Credentials) string {
	if creds.Server == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   creds.Server,
		Path:   "/" + creds.Database,
	}
	if creds.User != "" {
		u.User = url.UserPassword(creds.User, creds.Password)
	}
	return u.String()
}

func (h *Handler) open(dsn string) (*sql.DB, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if db, ok := h.pool[dsn]; ok {
		return db, nil
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	h.pool[dsn] = db
	return db, nil
}

// Handle runs the request as a query and streams each row.
func (h *Handler) Handle(request []byte, creds protocol.Credentials, sink func([]byte)) (bool, string) {
	dsn := dsnFromCredentials(creds)
	if dsn == "" {
		dsn = h.FallbackDSN
	}
	if dsn == "" {
		return false, "sql: no DSN available from credentials or fallback config"
	}
	db, err := h.open(dsn)
	if err != nil {
		return false, err.Error()
	}
	rows, err := db.QueryContext(context.Background(), string(request))
	if err != nil {
		return false, err.Error()
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return false, err.Error()
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return false, err.Error()
		}
		sink([]byte(fmt.Sprintln(vals...)))
	}
	if err := rows.Err(); err != nil {
		return false, err.Error()
	}
	return true, ""
}
