package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgproto3"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tmdc-io/pgduck/pkg/engine"
)

// Compatibility answer for clients that probe the server version on connect.
const (
	versionQuery  = "select pg_catalog.version()"
	versionAnswer = "SELECT 'PostgreSQL 9.3' as version"
)

// SQLSTATE codes sent in error responses.
const (
	codeInvalidPassword   = "28P01"
	codeProtocolViolation = "08P01"
	codeFeatureNotSupport = "0A000"
	codeInternal          = "XX000"
)

const timestampLayout = "2006-01-02 15:04:05.999999"

// rowKeywords start statements whose result rows are sent to the client.
var rowKeywords = map[string]bool{
	"SELECT": true, "WITH": true, "SHOW": true, "DESCRIBE": true, "VALUES": true,
	"TABLE": true, "PRAGMA": true, "FROM": true, "EXPLAIN": true, "SUMMARIZE": true,
}

var startupParameters = []pgproto3.ParameterStatus{
	{Name: "server_version", Value: "9.3"},
	{Name: "server_encoding", Value: "UTF8"},
	{Name: "client_encoding", Value: "UTF8"},
	{Name: "DateStyle", Value: "ISO, MDY"},
	{Name: "integer_datetimes", Value: "on"},
	{Name: "standard_conforming_strings", Value: "on"},
	{Name: "application_name", Value: "pgduck"},
}

// handle runs one client session.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	log := slog.With("remote", conn.RemoteAddr().String())
	backend := pgproto3.NewBackend(conn, conn)

	user, err := s.startup(conn, backend)
	if err != nil {
		if !errors.Is(err, io.EOF) {
			log.Warn("client startup failed", "error", err)
		}
		return
	}
	log = log.With("user", user)
	log.Debug("client connected")

	for {
		msg, err := backend.Receive()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				log.Debug("client read failed", "error", err)
			}
			return
		}

		switch m := msg.(type) {
		case *pgproto3.Query:
			s.simpleQuery(ctx, backend, m.String)
		case *pgproto3.Terminate:
			log.Debug("client disconnected")
			return
		case *pgproto3.Sync:
			backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
		case *pgproto3.Parse, *pgproto3.Bind, *pgproto3.Describe, *pgproto3.Execute:
			// the error is sent once; the client follows up with Sync
			if _, ok := m.(*pgproto3.Parse); ok {
				sendError(backend, codeFeatureNotSupport, "extended query protocol is not supported")
			}
			continue
		case *pgproto3.Flush:
		default:
			sendError(backend, codeProtocolViolation, fmt.Sprintf("unexpected message %T", m))
			backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
		}
		if err := backend.Flush(); err != nil {
			log.Debug("client write failed", "error", err)
			return
		}
	}
}

// startup negotiates encryption, authenticates and sends the initial
// parameters. It returns the connecting user.
func (s *Server) startup(conn net.Conn, backend *pgproto3.Backend) (string, error) {
	for {
		msg, err := backend.ReceiveStartupMessage()
		if err != nil {
			return "", err
		}

		switch m := msg.(type) {
		case *pgproto3.SSLRequest, *pgproto3.GSSEncRequest:
			if _, err := conn.Write([]byte("N")); err != nil {
				return "", fmt.Errorf("declining encryption: %w", err)
			}
		case *pgproto3.CancelRequest:
			return "", io.EOF
		case *pgproto3.StartupMessage:
			user := m.Parameters["user"]
			if err := s.authorize(backend, user); err != nil {
				sendError(backend, codeInvalidPassword, fmt.Sprintf("%v for user %q", err, user))
				_ = backend.Flush()
				return "", err
			}
			backend.Send(&pgproto3.AuthenticationOk{})
			for i := range startupParameters {
				backend.Send(&startupParameters[i])
			}
			backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})
			return user, backend.Flush()
		default:
			return "", fmt.Errorf("unexpected startup message %T", m)
		}
	}
}

func (s *Server) authorize(backend *pgproto3.Backend, user string) error {
	if !s.authRequired() {
		return nil
	}

	backend.Send(&pgproto3.AuthenticationCleartextPassword{})
	if err := backend.Flush(); err != nil {
		return err
	}
	if err := backend.SetAuthType(pgproto3.AuthTypeCleartextPassword); err != nil {
		return err
	}

	msg, err := backend.Receive()
	if err != nil {
		return err
	}
	pw, ok := msg.(*pgproto3.PasswordMessage)
	if !ok {
		return fmt.Errorf("expected password message, got %T", msg)
	}
	return s.authenticate(user, pw.Password)
}

// simpleQuery executes one Query message and queues the full response.
func (s *Server) simpleQuery(ctx context.Context, backend *pgproto3.Backend, query string) {
	defer backend.Send(&pgproto3.ReadyForQuery{TxStatus: 'I'})

	query = rewrite(query)
	if query == "" {
		backend.Send(&pgproto3.EmptyQueryResponse{})
		return
	}

	start := time.Now()
	result, err := s.exec.Execute(ctx, query)
	if err != nil {
		slog.Debug("query failed", "error", err)
		sendError(backend, codeInternal, err.Error())
		return
	}
	slog.Debug("query executed", "rows", result.Count(), "duration", time.Since(start))

	keyword := firstKeyword(query)
	if !rowKeywords[keyword] {
		backend.Send(&pgproto3.CommandComplete{CommandTag: []byte(keyword)})
		return
	}

	backend.Send(rowDescription(result))
	for _, row := range result.Rows {
		backend.Send(dataRow(row))
	}
	backend.Send(&pgproto3.CommandComplete{CommandTag: []byte("SELECT " + strconv.Itoa(result.Count()))})
}

// rewrite trims the query and substitutes the version probe.
func rewrite(query string) string {
	query = strings.TrimSpace(query)
	normalized := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(query, ";")))
	if normalized == versionQuery {
		return versionAnswer
	}
	return query
}

func firstKeyword(query string) string {
	query = strings.TrimLeft(query, "( \t\r\n")
	end := strings.IndexFunc(query, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\r' || r == '\n' || r == '(' || r == ';'
	})
	if end < 0 {
		end = len(query)
	}
	return strings.ToUpper(query[:end])
}

func rowDescription(result *engine.Result) *pgproto3.RowDescription {
	fields := make([]pgproto3.FieldDescription, len(result.Columns))
	for i, name := range result.Columns {
		fields[i] = pgproto3.FieldDescription{
			Name:         []byte(name),
			DataTypeOID:  columnOID(result, i),
			DataTypeSize: -1,
			TypeModifier: -1,
			Format:       pgtype.TextFormatCode,
		}
	}
	return &pgproto3.RowDescription{Fields: fields}
}

// columnOID picks a type from the first non-null value in the column.
func columnOID(result *engine.Result, col int) uint32 {
	for _, row := range result.Rows {
		if col >= len(row) || row[col] == nil {
			continue
		}
		switch row[col].(type) {
		case bool:
			return pgtype.BoolOID
		case int8, int16:
			return pgtype.Int2OID
		case int32, uint8, uint16:
			return pgtype.Int4OID
		case int, int64, uint32:
			return pgtype.Int8OID
		case float32:
			return pgtype.Float4OID
		case float64:
			return pgtype.Float8OID
		case time.Time:
			return pgtype.TimestampOID
		case []byte:
			return pgtype.ByteaOID
		default:
			return pgtype.TextOID
		}
	}
	return pgtype.TextOID
}

func dataRow(row []any) *pgproto3.DataRow {
	values := make([][]byte, len(row))
	for i, v := range row {
		values[i] = encodeText(v)
	}
	return &pgproto3.DataRow{Values: values}
}

// encodeText renders a value in the PostgreSQL text format. nil is NULL.
func encodeText(v any) []byte {
	switch t := v.(type) {
	case nil:
		return nil
	case bool:
		if t {
			return []byte("t")
		}
		return []byte("f")
	case time.Time:
		return []byte(t.UTC().Format(timestampLayout))
	case []byte:
		return []byte(`\x` + fmt.Sprintf("%x", t))
	case string:
		return []byte(t)
	default:
		return []byte(fmt.Sprint(t))
	}
}

func sendError(backend *pgproto3.Backend, code, message string) {
	backend.Send(&pgproto3.ErrorResponse{Severity: "ERROR", Code: code, Message: message})
}
