package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mikey/mail-triage/internal/core"
)

// inBatch bounds the number of bind variables in one IN clause
const inBatch = 500

var reputationTables = map[core.ReputationTable]bool{
	core.TableRequest: true,
	core.TableJunk:    true,
	core.TableVerdict: true,
}

var addressLists = map[core.AddressList]bool{
	core.ListOwner:     true,
	core.ListNotJunk:   true,
	core.ListVIP:       true,
	core.ListBlacklist: true,
}

// sqlTx implements core.StoreTx over one sqlx transaction
type sqlTx struct {
	tx      *sqlx.Tx
	dialect dialect
}

// messageRow mirrors the messages table
type messageRow struct {
	ID        int64          `db:"id"`
	MsgID     sql.NullString `db:"msgid"`
	ServerID  int            `db:"server_id"`
	ServerMsg sql.NullString `db:"server_msg"`
	ThreadID  sql.NullInt64  `db:"thread_id"`
	MyThread  sql.NullBool   `db:"my_thread"`
	Pending   bool           `db:"pending"`
	Mailbox   sql.NullString `db:"mailbox"`
	Date      sql.NullInt64  `db:"date"`
	Flags     sql.NullString `db:"flags"`
	Received  sql.NullString `db:"received"`
	Sender    sql.NullString `db:"sender"`
	FromMe    sql.NullBool   `db:"from_me"`
	Subject   sql.NullString `db:"subject"`
	Headers   sql.NullString `db:"headers"`
	Verdict   sql.NullInt64  `db:"verdict"`
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

func toRow(m *core.Message) (messageRow, error) {
	row := messageRow{
		MsgID:     nullString(m.MessageID),
		ServerID:  m.ServerID,
		ServerMsg: nullString(m.SourceRef),
		MyThread:  nullBool(m.OwnerThread),
		Pending:   m.Pending,
		Mailbox:   nullString(m.Mailbox),
		Flags:     nullString(string(m.Flags)),
		Received:  nullString(m.Received),
		Sender:    nullString(m.Sender),
		FromMe:    nullBool(m.FromMe),
		Subject:   nullString(m.Subject),
	}
	if m.ThreadID != nil {
		row.ThreadID = sql.NullInt64{Int64: *m.ThreadID, Valid: true}
	}
	if m.Date != nil {
		row.Date = sql.NullInt64{Int64: m.Date.Unix(), Valid: true}
	}
	if m.Verdict != nil {
		row.Verdict = sql.NullInt64{Int64: int64(*m.Verdict), Valid: true}
	}
	if len(m.Headers) > 0 {
		data, err := json.Marshal(m.Headers)
		if err != nil {
			return row, fmt.Errorf("failed to encode headers: %w", err)
		}
		row.Headers = sql.NullString{String: string(data), Valid: true}
	}
	return row, nil
}

func (r messageRow) toMessage() (core.Message, error) {
	m := core.Message{
		ID:        r.ID,
		MessageID: r.MsgID.String,
		ServerID:  r.ServerID,
		SourceRef: r.ServerMsg.String,
		Pending:   r.Pending,
		Mailbox:   r.Mailbox.String,
		Flags:     core.FlagSet(r.Flags.String),
		Received:  r.Received.String,
		Sender:    r.Sender.String,
		Subject:   r.Subject.String,
	}
	if r.ThreadID.Valid {
		v := r.ThreadID.Int64
		m.ThreadID = &v
	}
	if r.MyThread.Valid {
		v := r.MyThread.Bool
		m.OwnerThread = &v
	}
	if r.FromMe.Valid {
		v := r.FromMe.Bool
		m.FromMe = &v
	}
	if r.Date.Valid {
		v := time.Unix(r.Date.Int64, 0).UTC()
		m.Date = &v
	}
	if r.Verdict.Valid {
		v := core.Role(r.Verdict.Int64)
		m.Verdict = &v
	}
	if r.Headers.Valid && r.Headers.String != "" {
		if err := json.Unmarshal([]byte(r.Headers.String), &m.Headers); err != nil {
			return m, fmt.Errorf("failed to decode headers of message %d: %w", r.ID, err)
		}
	}
	return m, nil
}

const messageColumns = `msgid, server_id, server_msg, thread_id, my_thread, pending, mailbox,
	date, flags, received, sender, from_me, subject, headers, verdict`

// InsertMessage inserts m unless a row with its message identifier exists.
// A message without an identifier is matched by its server, mailbox and
// transport reference instead.
func (t *sqlTx) InsertMessage(ctx context.Context, m *core.Message) (int64, bool, error) {
	row, err := toRow(m)
	if err != nil {
		return 0, false, err
	}

	if m.MessageID == "" && m.SourceRef != "" {
		var id int64
		err := t.tx.GetContext(ctx, &id, `SELECT id FROM messages
			WHERE msgid IS NULL AND server_id = ? AND mailbox = ? AND server_msg = ?
			ORDER BY id LIMIT 1`, m.ServerID, m.Mailbox, m.SourceRef)
		if err == nil {
			return id, false, nil
		}
		if !errNoRows(err) {
			return 0, false, fmt.Errorf("failed to find existing message %s in %s: %w", m.SourceRef, m.Mailbox, err)
		}
	}

	query := t.dialect.insertIgnore + ` INTO messages (` + messageColumns + `) VALUES (
		:msgid, :server_id, :server_msg, :thread_id, :my_thread, :pending, :mailbox,
		:date, :flags, :received, :sender, :from_me, :subject, :headers, :verdict)`
	res, err := t.tx.NamedExecContext(ctx, query, row)
	if err != nil {
		return 0, false, fmt.Errorf("failed to insert message %s: %w", m.MessageID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read insert result: %w", err)
	}
	if n == 0 {
		var id int64
		err := t.tx.GetContext(ctx, &id, `SELECT id FROM messages WHERE msgid = ?`, m.MessageID)
		if errNoRows(err) {
			return 0, false, fmt.Errorf("insert of %s ignored without a conflicting row: %w", m.MessageID, core.ErrNotFound)
		}
		if err != nil {
			return 0, false, fmt.Errorf("failed to find existing message %s: %w", m.MessageID, err)
		}
		return id, false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read inserted id: %w", err)
	}
	return id, true, nil
}

// SaveVerdict records a triage decision for the message with messageID
func (t *sqlTx) SaveVerdict(ctx context.Context, messageID, sourceRef, mailbox string, verdict core.Role, overwrite bool) (bool, error) {
	query := `UPDATE messages SET server_msg = ?, mailbox = ?, verdict = ? WHERE msgid = ?`
	if !overwrite {
		query = `UPDATE messages SET server_msg = ?, mailbox = ?, verdict = COALESCE(verdict, ?) WHERE msgid = ?`
	}
	res, err := t.tx.ExecContext(ctx, query, nullString(sourceRef), mailbox, int(verdict), messageID)
	if err != nil {
		return false, fmt.Errorf("failed to save verdict for %s: %w", messageID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read update result: %w", err)
	}
	return n > 0, nil
}

// RecordMove sets the mailbox and clears the stale transport reference
func (t *sqlTx) RecordMove(ctx context.Context, id int64, mailbox string) error {
	_, err := t.tx.ExecContext(ctx, `UPDATE messages SET mailbox = ?, server_msg = NULL WHERE id = ?`, mailbox, id)
	if err != nil {
		return fmt.Errorf("failed to record move of message %d: %w", id, err)
	}
	return nil
}

// LookupIDs maps message identifiers to internal ids
func (t *sqlTx) LookupIDs(ctx context.Context, messageIDs []string) (map[string]int64, error) {
	out := make(map[string]int64, len(messageIDs))
	for start := 0; start < len(messageIDs); start += inBatch {
		end := start + inBatch
		if end > len(messageIDs) {
			end = len(messageIDs)
		}
		query, args, err := sqlx.In(`SELECT id, msgid FROM messages WHERE msgid IN (?)`, messageIDs[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to build lookup query: %w", err)
		}
		var rows []struct {
			ID    int64  `db:"id"`
			MsgID string `db:"msgid"`
		}
		if err := t.tx.SelectContext(ctx, &rows, t.tx.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("failed to look up message ids: %w", err)
		}
		for _, r := range rows {
			out[r.MsgID] = r.ID
		}
	}
	return out, nil
}

// Messages returns the records matching filter ordered by internal id
func (t *sqlTx) Messages(ctx context.Context, filter core.MessageFilter) ([]core.Message, error) {
	columns := strings.Replace(messageColumns, "headers", "NULL AS headers", 1)
	if filter.WithHeaders {
		columns = messageColumns
	}

	var where []string
	var args []interface{}
	if filter.PendingOnly {
		where = append(where, "pending = 1")
	}
	if filter.Mailbox != "" {
		where = append(where, "mailbox = ?")
		args = append(args, filter.Mailbox)
	}
	query := `SELECT id, ` + columns + ` FROM messages`

	var rows []messageRow
	if len(filter.IDs) == 0 {
		if len(where) > 0 {
			query += ` WHERE ` + strings.Join(where, " AND ")
		}
		if err := t.tx.SelectContext(ctx, &rows, query+` ORDER BY id`, args...); err != nil {
			return nil, fmt.Errorf("failed to query messages: %w", err)
		}
	} else {
		where = append(where, "id IN (?)")
		query += ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY id`
		for start := 0; start < len(filter.IDs); start += inBatch {
			end := start + inBatch
			if end > len(filter.IDs) {
				end = len(filter.IDs)
			}
			q, a, err := sqlx.In(query, append(append([]interface{}{}, args...), filter.IDs[start:end])...)
			if err != nil {
				return nil, fmt.Errorf("failed to build message query: %w", err)
			}
			var chunk []messageRow
			if err := t.tx.SelectContext(ctx, &chunk, t.tx.Rebind(q), a...); err != nil {
				return nil, fmt.Errorf("failed to query messages: %w", err)
			}
			rows = append(rows, chunk...)
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	}

	out := make([]core.Message, 0, len(rows))
	for _, r := range rows {
		m, err := r.toMessage()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// ReplaceThreads erases every assignment, writes the new ones and clears
// the pending mark of all messages
func (t *sqlTx) ReplaceThreads(ctx context.Context, assignments map[int64]core.ThreadAssignment) error {
	if _, err := t.tx.ExecContext(ctx, `UPDATE messages SET thread_id = NULL, my_thread = NULL, pending = 0`); err != nil {
		return fmt.Errorf("failed to erase thread assignments: %w", err)
	}

	stmt, err := t.tx.PreparexContext(ctx, `UPDATE messages SET thread_id = ?, my_thread = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare thread update: %w", err)
	}
	defer stmt.Close()

	for id, a := range assignments {
		if _, err := stmt.ExecContext(ctx, a.ThreadID, a.OwnerThread, id); err != nil {
			return fmt.Errorf("failed to assign thread of message %d: %w", id, err)
		}
	}
	return nil
}

// ReplaceReputation fully replaces one reputation table
func (t *sqlTx) ReplaceReputation(ctx context.Context, table core.ReputationTable, rows []core.AddressScore) error {
	if !reputationTables[table] {
		return fmt.Errorf("unknown reputation table: %s", table)
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM `+string(table)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}

	stmt, err := t.tx.PrepareNamedContext(ctx,
		`INSERT INTO `+string(table)+` (email, pval, nrelevant, ntotal) VALUES (:email, :pval, :nrelevant, :ntotal)`)
	if err != nil {
		return fmt.Errorf("failed to prepare %s insert: %w", table, err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r); err != nil {
			return fmt.Errorf("failed to save %s row for %s: %w", table, r.Address, err)
		}
	}
	return nil
}

// Reputation returns one table sorted by ascending score
func (t *sqlTx) Reputation(ctx context.Context, table core.ReputationTable) ([]core.AddressScore, error) {
	if !reputationTables[table] {
		return nil, fmt.Errorf("unknown reputation table: %s", table)
	}
	var rows []core.AddressScore
	err := t.tx.SelectContext(ctx, &rows,
		`SELECT email, pval, nrelevant, ntotal FROM `+string(table)+` ORDER BY pval, email`)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	return rows, nil
}

// AddressList returns the addresses in a flat list
func (t *sqlTx) AddressList(ctx context.Context, list core.AddressList) ([]string, error) {
	if !addressLists[list] {
		return nil, fmt.Errorf("unknown address list: %s", list)
	}
	var out []string
	if err := t.tx.SelectContext(ctx, &out, `SELECT email FROM `+string(list)+` ORDER BY email`); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", list, err)
	}
	return out, nil
}

// AddAddresses lower-cases and adds addresses, ignoring duplicates
func (t *sqlTx) AddAddresses(ctx context.Context, list core.AddressList, addrs []string) error {
	if !addressLists[list] {
		return fmt.Errorf("unknown address list: %s", list)
	}
	for _, a := range addrs {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		_, err := t.tx.ExecContext(ctx, t.dialect.insertIgnore+` INTO `+string(list)+` (email) VALUES (?)`, a)
		if err != nil {
			return fmt.Errorf("failed to add %s to %s: %w", a, list, err)
		}
	}
	return nil
}

// DuplicatePairs pairs each duplicate row with the lowest id sharing its
// message identifier
func (t *sqlTx) DuplicatePairs(ctx context.Context) ([][2]int64, error) {
	var rows []struct {
		Canonical int64 `db:"canonical"`
		Duplicate int64 `db:"duplicate"`
	}
	err := t.tx.SelectContext(ctx, &rows, `
		SELECT MIN(m1.id) AS canonical, m2.id AS duplicate
		FROM messages m1, messages m2
		WHERE m1.id < m2.id AND m1.msgid IS NOT NULL AND m1.msgid = m2.msgid
		GROUP BY m2.id
		ORDER BY m2.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to find duplicate messages: %w", err)
	}
	out := make([][2]int64, 0, len(rows))
	for _, r := range rows {
		out = append(out, [2]int64{r.Canonical, r.Duplicate})
	}
	return out, nil
}

// DeleteMessages removes rows by internal id
func (t *sqlTx) DeleteMessages(ctx context.Context, ids []int64) error {
	for start := 0; start < len(ids); start += inBatch {
		end := start + inBatch
		if end > len(ids) {
			end = len(ids)
		}
		query, args, err := sqlx.In(`DELETE FROM messages WHERE id IN (?)`, ids[start:end])
		if err != nil {
			return fmt.Errorf("failed to build delete query: %w", err)
		}
		if _, err := t.tx.ExecContext(ctx, t.tx.Rebind(query), args...); err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
	}
	return nil
}

// AnsweredMessages finds transport-backed messages outside the excluded
// mailboxes that precede an owner-authored message of the same thread
func (t *sqlTx) AnsweredMessages(ctx context.Context, excludeMailboxes []string) (map[string]int64, error) {
	query := `
		SELECT DISTINCT t1.id, t1.msgid
		FROM messages t1, messages t2
		WHERE t2.from_me = 1
			AND t1.thread_id = t2.thread_id
			AND t1.date < t2.date
			AND t1.server_id > 0
			AND t1.msgid IS NOT NULL`
	args := []interface{}{}
	if len(excludeMailboxes) > 0 {
		q, a, err := sqlx.In(` AND (t1.mailbox IS NULL OR t1.mailbox NOT IN (?))`, excludeMailboxes)
		if err != nil {
			return nil, fmt.Errorf("failed to build answered query: %w", err)
		}
		query += q
		args = a
	}

	var rows []struct {
		ID    int64  `db:"id"`
		MsgID string `db:"msgid"`
	}
	if err := t.tx.SelectContext(ctx, &rows, t.tx.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to find answered messages: %w", err)
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.MsgID] = r.ID
	}
	return out, nil
}

// errNoRows reports whether err means the row does not exist
func errNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
