package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/api/option"

	"github.com/pagepulse/comment-sync/internal/config"
)

// NewSinkFromConfig creates the sink selected by cfg.Sink.Type.
// The pool is required for the database sink and is not closed by Sink.Close.
func NewSinkFromConfig(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (Sink, error) {
	switch cfg.Sink.Type {
	case config.SinkTypeSheets:
		sc := cfg.Sink.Sheets
		if sc == nil {
			return nil, fmt.Errorf("sheets configuration is required when sink type is sheets")
		}
		var opts []option.ClientOption
		if sc.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(sc.CredentialsFile))
		}
		if sc.Endpoint != "" {
			opts = append(opts, option.WithEndpoint(sc.Endpoint))
			if sc.CredentialsFile == "" {
				opts = append(opts, option.WithoutAuthentication())
			}
		}
		return NewSheetsSink(ctx, sc.SpreadsheetID, sc.GetRange(), opts...)
	case config.SinkTypeDatabase:
		if pool == nil {
			return nil, fmt.Errorf("database pool is required when sink type is database")
		}
		return NewDBSink(pool), nil
	default:
		return nil, fmt.Errorf("unsupported sink type: %s", cfg.Sink.Type)
	}
}
