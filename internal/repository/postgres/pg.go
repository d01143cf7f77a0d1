package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lalith-99/echothread/internal/models"
)

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// memberTable picks the membership table and its conversation column.
func memberTable(conv models.Target) (table, column string, err error) {
	switch conv.Kind() {
	case models.KindChannel:
		return "channel_members", "channel_id", nil
	case models.KindGroup:
		return "group_members", "group_id", nil
	default:
		return "", "", fmt.Errorf("unsupported conversation %s", conv)
	}
}

// likePattern turns free text into an ILIKE substring pattern, escaping the
// wildcard characters the user typed.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
