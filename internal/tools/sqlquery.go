package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/toolbridge/toolbridge/internal/security"
)

const maxQueryRows = 100

// QueryClient runs read-only SQL against a Postgres database. Queries are
// validated before execution and sensitive columns are masked in results.
type QueryClient struct {
	pool      *pgxpool.Pool
	validator *security.SQLValidator
	masker    *security.DataMasker
}

// NewQueryClient connects a pool to connStr.
func NewQueryClient(ctx context.Context, connStr string, sensitiveColumns []string) (*QueryClient, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &QueryClient{
		pool:      pool,
		validator: security.NewSQLValidator(),
		masker:    security.NewDataMasker(sensitiveColumns),
	}, nil
}

// Close releases the connection pool.
func (c *QueryClient) Close() {
	c.pool.Close()
}

// Query validates, executes and masks a SELECT query.
func (c *QueryClient) Query(ctx context.Context, sql string) ([]map[string]interface{}, error) {
	if reason := c.validator.Validate(sql); reason != "" {
		return nil, fmt.Errorf("query rejected: %s", reason)
	}

	rows, err := c.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = string(f.Name)
	}

	var out []map[string]interface{}
	for rows.Next() {
		if len(out) >= maxQueryRows {
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	return c.masker.MaskRows(out), nil
}

// QueryDatabaseTool executes a read-only SQL query
func QueryDatabaseTool(client *QueryClient) Tool {
	return Tool{
		Name:        "query_database",
		Title:       "Query Database",
		Description: "Execute a read-only SQL SELECT query against the configured database. Only SELECT queries are allowed.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"sql": map[string]interface{}{
					"type":        "string",
					"description": "The SQL SELECT query to execute",
				},
			},
			"required": []string{"sql"},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			sql, _ := input["sql"].(string)
			if sql == "" {
				return "", fmt.Errorf("sql is required")
			}
			rows, err := client.Query(ctx, sql)
			if err != nil {
				return "", err
			}
			out := map[string]interface{}{
				"row_count": len(rows),
				"rows":      rows,
			}
			b, _ := json.Marshal(out)
			return string(b), nil
		},
	}
}
