package journal

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordTrade(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades
		(trade_id, instrument, side, quantity, entry_price, exit_price,
		 entry_time, exit_time, commission, realized_pl, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TradeID, t.Instrument, t.Side, t.Quantity, t.EntryPrice, t.ExitPrice,
		t.EntryTime.UTC(), t.ExitTime.UTC(), t.Commission, t.RealizedPL, t.Reason,
	)
	return err
}

func (j *SQLiteJournal) RecordEquity(e EquitySnapshot) error {
	_, err := j.db.Exec(`
		INSERT INTO equity (time, cash, equity, exposure)
		VALUES (?, ?, ?, ?)`,
		e.Time.UTC(), e.Cash, e.Equity, e.Exposure,
	)
	return err
}

// TradesClosedBetween returns trades with exit_time in [start, end), ordered
// by exit time. Drivers use it for run summaries.
func (j *SQLiteJournal) TradesClosedBetween(start, end time.Time) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT trade_id, instrument, side, quantity, entry_price, exit_price,
		       entry_time, exit_time, commission, realized_pl, reason
		FROM trades
		WHERE exit_time >= ? AND exit_time < ?
		ORDER BY exit_time`,
		start.UTC(), end.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		if err := rows.Scan(&t.TradeID, &t.Instrument, &t.Side, &t.Quantity,
			&t.EntryPrice, &t.ExitPrice, &t.EntryTime, &t.ExitTime,
			&t.Commission, &t.RealizedPL, &t.Reason); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
