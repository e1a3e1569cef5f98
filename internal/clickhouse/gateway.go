// Package clickhouse is the database side of a transfer. It opens one
// database/sql handle per request over the ClickHouse HTTP interface and
// implements core.Warehouse.
package clickhouse

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/JonMunkholm/chflat/internal/core"
)

// DefaultDialTimeout bounds the connection check when none is configured.
const DefaultDialTimeout = 10 * time.Second

// Config holds the settings shared by every connection.
type Config struct {
	DialTimeout        time.Duration
	InsecureSkipVerify bool
}

// Gateway opens sessions. It is safe for concurrent use.
type Gateway struct {
	cfg  Config
	open func(*clickhouse.Options) *sql.DB
	now  func() time.Time
}

// NewGateway returns a Gateway using the clickhouse-go database/sql driver.
func NewGateway(cfg Config) *Gateway {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	return &Gateway{cfg: cfg, open: clickhouse.OpenDB, now: time.Now}
}

// tlsPorts are the ClickHouse ports that speak TLS.
var tlsPorts = map[string]bool{"8443": true, "9440": true}

func (g *Gateway) options(p core.ConnectionParams) *clickhouse.Options {
	opts := &clickhouse.Options{
		Addr:     []string{p.Addr()},
		Protocol: clickhouse.HTTP,
		Auth: clickhouse.Auth{
			Database: p.Database,
			Username: p.User,
			Password: p.Password,
		},
		DialTimeout: g.cfg.DialTimeout,
	}
	// A forwarded token is sent as a bearer header and replaces the user
	// credentials. ClickHouse refuses requests that mix the two.
	if p.Token != "" {
		opts.Auth.Username = ""
		opts.Auth.Password = ""
		opts.HttpHeaders = map[string]string{"Authorization": "Bearer " + p.Token}
	}
	if tlsPorts[p.Port] {
		opts.TLS = &tls.Config{InsecureSkipVerify: g.cfg.InsecureSkipVerify}
	}
	return opts
}

// Connect opens and verifies a session. Expired tokens fail with an auth
// error before any network I/O.
func (g *Gateway) Connect(ctx context.Context, p core.ConnectionParams) (*Session, error) {
	const op = "connect"

	if p.Token != "" {
		if err := inspectToken(p.Token, g.now()); err != nil {
			return nil, core.E(core.KindAuth, op, err)
		}
	}

	db := g.open(g.options(p))
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, g.cfg.DialTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, classify(op, fmt.Errorf("ping %s: %w", p.Addr(), err))
	}

	slog.Debug("clickhouse connected", "conn", p)
	return &Session{db: db}, nil
}

// Dial implements core.Warehouse.
func (g *Gateway) Dial(ctx context.Context, p core.ConnectionParams) (core.WarehouseSession, error) {
	sess, err := g.Connect(ctx, p)
	if err != nil {
		return nil, err
	}
	return sess, nil
}
