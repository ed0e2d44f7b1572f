package lead

import (
	"context"
	_ "embed"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DonaGreenAds/Fluffy-Chats-sub001/internal/errors"
)

// schemaSQL is embedded so the pipeline can self-bootstrap its schema.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore is the production Store implementation.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "create lead store pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping lead store")
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Upsert(ctx context.Context, l *Lead) error {
	timeline, objections, questions, competitors, syncedTo, err := marshalListFields(l)
	if err != nil {
		return err
	}

	l.UpdatedAt = time.Now().UTC()

	_, err = s.pool.Exec(ctx, `
		INSERT INTO leads (
			id, name, phone, email, company, region,
			date, start_time, end_time, duration, message_count, user_messages,
			session_id, product, conversation,
			topic, use_case, summary, timeline, objections, questions, competitors, budget, scale,
			score, intent, urgency, stage, routing, sentiment, trust, motivation,
			is_hot_lead, needs_immediate_followup, is_enterprise, is_partner, completeness,
			status, synced_to, created_at, updated_at
		) VALUES (
			$1,$2,$3,$4,$5,$6,
			$7,$8,$9,$10,$11,$12,
			$13,$14,$15,
			$16,$17,$18,$19,$20,$21,$22,$23,$24,
			$25,$26,$27,$28,$29,$30,$31,$32,
			$33,$34,$35,$36,$37,
			$38,$39,$40,$41
		)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, phone = EXCLUDED.phone, email = EXCLUDED.email,
			company = EXCLUDED.company, region = EXCLUDED.region,
			conversation = EXCLUDED.conversation,
			topic = EXCLUDED.topic, use_case = EXCLUDED.use_case, summary = EXCLUDED.summary,
			timeline = EXCLUDED.timeline, objections = EXCLUDED.objections,
			questions = EXCLUDED.questions, competitors = EXCLUDED.competitors,
			budget = EXCLUDED.budget, scale = EXCLUDED.scale,
			score = EXCLUDED.score, intent = EXCLUDED.intent, urgency = EXCLUDED.urgency,
			stage = EXCLUDED.stage, routing = EXCLUDED.routing,
			sentiment = EXCLUDED.sentiment, trust = EXCLUDED.trust, motivation = EXCLUDED.motivation,
			is_hot_lead = EXCLUDED.is_hot_lead,
			needs_immediate_followup = EXCLUDED.needs_immediate_followup,
			is_enterprise = EXCLUDED.is_enterprise, is_partner = EXCLUDED.is_partner,
			completeness = EXCLUDED.completeness,
			status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
	`,
		l.ID, l.Name, l.Phone, l.Email, l.Company, l.Region,
		l.Date, l.StartTime, l.EndTime, l.Duration, l.MessageCount, l.UserMessages,
		l.SessionID, l.Product, l.Conversation,
		l.Topic, l.UseCase, l.Summary, timeline, objections, questions, competitors, l.Budget, l.Scale,
		l.Score, l.Intent, l.Urgency, l.Stage, l.Routing, l.Sentiment, l.Trust, l.Motivation,
		l.IsHotLead, l.NeedsImmediateFollowup, l.IsEnterprise, l.IsPartner, l.Completeness,
		l.Status, syncedTo, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "upsert lead "+l.ID)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Lead, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	l, err := scanLead(row)
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("lead " + id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "get lead "+id)
	}
	return l, nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]*Lead, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list leads")
	}
	defer rows.Close()

	var leads []*Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan lead")
		}
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func (s *PostgresStore) MarkSyncedTo(ctx context.Context, id, destination string) error {
	l, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	for _, d := range l.SyncedTo {
		if d == destination {
			return nil
		}
	}
	l.SyncedTo = append(l.SyncedTo, destination)

	syncedTo, err := json.Marshal(l.SyncedTo)
	if err != nil {
		return errors.Wrap(err, "encode synced_to")
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE leads SET synced_to = $1, updated_at = NOW() WHERE id = $2`,
		syncedTo, id)
	if err != nil {
		return errors.Wrap(err, "mark lead "+id+" synced to "+destination)
	}
	return nil
}

func (s *PostgresStore) ConversationExists(ctx context.Context, conversation string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM leads WHERE md5(conversation) = md5($1) AND conversation = $1)`,
		conversation).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "check conversation duplicate")
	}
	return exists, nil
}

const leadColumns = `
	id, name, phone, email, company, region,
	date, start_time, end_time, duration, message_count, user_messages,
	session_id, product, conversation,
	topic, use_case, summary, timeline, objections, questions, competitors, budget, scale,
	score, intent, urgency, stage, routing, sentiment, trust, motivation,
	is_hot_lead, needs_immediate_followup, is_enterprise, is_partner, completeness,
	status, synced_to, created_at, updated_at`

func scanLead(row pgx.Row) (*Lead, error) {
	var l Lead
	var timeline, objections, questions, competitors, syncedTo []byte

	err := row.Scan(
		&l.ID, &l.Name, &l.Phone, &l.Email, &l.Company, &l.Region,
		&l.Date, &l.StartTime, &l.EndTime, &l.Duration, &l.MessageCount, &l.UserMessages,
		&l.SessionID, &l.Product, &l.Conversation,
		&l.Topic, &l.UseCase, &l.Summary, &timeline, &objections, &questions, &competitors, &l.Budget, &l.Scale,
		&l.Score, &l.Intent, &l.Urgency, &l.Stage, &l.Routing, &l.Sentiment, &l.Trust, &l.Motivation,
		&l.IsHotLead, &l.NeedsImmediateFollowup, &l.IsEnterprise, &l.IsPartner, &l.Completeness,
		&l.Status, &syncedTo, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	for _, pair := range []struct {
		raw    []byte
		target *[]string
	}{
		{timeline, &l.Timeline}, {objections, &l.Objections},
		{questions, &l.Questions}, {competitors, &l.Competitors},
		{syncedTo, &l.SyncedTo},
	} {
		if len(pair.raw) > 0 {
			if err := json.Unmarshal(pair.raw, pair.target); err != nil {
				return nil, err
			}
		}
	}
	return &l, nil
}

func marshalListFields(l *Lead) (timeline, objections, questions, competitors, syncedTo []byte, err error) {
	for _, pair := range []struct {
		src []string
		dst *[]byte
	}{
		{l.Timeline, &timeline}, {l.Objections, &objections},
		{l.Questions, &questions}, {l.Competitors, &competitors},
		{l.SyncedTo, &syncedTo},
	} {
		v := pair.src
		if v == nil {
			v = []string{}
		}
		*pair.dst, err = json.Marshal(v)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
	}
	return timeline, objections, questions, competitors, syncedTo, nil
}
