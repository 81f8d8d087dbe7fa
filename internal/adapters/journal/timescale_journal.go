package journal

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/zhuoqizheng/rovio/internal/domain"
	"github.com/zhuoqizheng/rovio/internal/ports"
)

// TimescaleJournal persists guard decisions to a TimescaleDB/Postgres
// hypertable keyed by (source_node_id, ts, seq).
type TimescaleJournal struct {
	db        *sql.DB
	tableName string
}

func NewTimescaleJournal(db *sql.DB, table string) *TimescaleJournal {
	return &TimescaleJournal{db: db, tableName: table}
}

func (t *TimescaleJournal) Name() string { return "timescaledb" }

func (t *TimescaleJournal) WriteBatch(decisions []*domain.Decision) error {
	if len(decisions) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.tableName)
	b.WriteString(" (source_node_id, ts, seq, reset, quality_median, speed, unhealthy_streak) VALUES ")

	args := make([]any, 0, len(decisions)*7)
	for i, d := range decisions {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			len(args)+1, len(args)+2, len(args)+3, len(args)+4, len(args)+5, len(args)+6, len(args)+7))

		args = append(args,
			d.SourceNodeID,
			d.Timestamp,
			d.Seq,
			d.Reset,
			d.QualityMedian,
			d.Speed,
			d.UnhealthyStreak,
		)
	}

	// idempotent via the unique key, so WAL replays are safe
	b.WriteString(" ON CONFLICT (source_node_id, ts, seq) DO NOTHING")

	_, err := t.db.Exec(b.String(), args...)
	return err
}

var _ ports.DecisionJournal = (*TimescaleJournal)(nil)
