package handoff

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/sorenh/handoff-bot/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

// PostgresStore persists hand-off records across restarts. The audit
// log is write-only here: activities land in their own table and are
// not hydrated back onto returned records.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStore(config DatabaseConfig, logger *zap.Logger) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	store := &PostgresStore{db: db, logger: logger}

	if err := store.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return store, nil
}

func (s *PostgresStore) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

const userColumns = "conversation_id, conversation_name, state, agent_id, agent_name, queue_time"

func (s *PostgresStore) FindOrCreate(ctx context.Context, userRef models.ConversationRef) (*models.User, error) {
	query := `
		INSERT INTO handoff_users (conversation_id, conversation_name)
		VALUES ($1, $2)
		ON CONFLICT (conversation_id)
			DO UPDATE SET conversation_name = EXCLUDED.conversation_name
		RETURNING ` + userColumns

	user, err := scanUser(s.db.QueryRowContext(ctx, query, userRef.ID, userRef.Name))
	if err != nil {
		return nil, fmt.Errorf("error upserting user: %v", err)
	}
	return user, nil
}

func (s *PostgresStore) FindByAgent(ctx context.Context, agentRef models.ConversationRef) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM handoff_users WHERE agent_id = $1`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, agentRef.ID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying bridge: %v", err)
	}
	return user, nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, userRef models.ConversationRef, activity models.Activity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %v", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO handoff_users (conversation_id, conversation_name)
		VALUES ($1, $2)
		ON CONFLICT (conversation_id) DO NOTHING`,
		userRef.ID, userRef.Name)
	if err != nil {
		return fmt.Errorf("error ensuring user row: %v", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO handoff_activities (id, conversation_id, sender, body, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		activity.ID, userRef.ID, activity.From, activity.Text, activity.CreatedAt)
	if err != nil {
		return fmt.Errorf("error logging activity: %v", err)
	}

	return tx.Commit()
}

func (s *PostgresStore) Queue(ctx context.Context, userRef models.ConversationRef) (*models.User, error) {
	query := `
		INSERT INTO handoff_users (conversation_id, conversation_name, state, queue_time, queue_seq)
		VALUES ($1, $2, 'queued', now(), nextval('handoff_admission_seq'))
		ON CONFLICT (conversation_id) DO UPDATE
			SET state      = 'queued',
			    queue_time = now(),
			    queue_seq  = nextval('handoff_admission_seq'),
			    agent_id   = NULL,
			    agent_name = NULL
		RETURNING ` + userColumns

	user, err := scanUser(s.db.QueryRowContext(ctx, query, userRef.ID, userRef.Name))
	if err != nil {
		return nil, fmt.Errorf("error queueing user: %v", err)
	}
	return user, nil
}

func (s *PostgresStore) Dequeue(ctx context.Context, userRef models.ConversationRef) (*models.User, error) {
	query := `
		INSERT INTO handoff_users (conversation_id, conversation_name)
		VALUES ($1, $2)
		ON CONFLICT (conversation_id) DO UPDATE
			SET state      = 'bot',
			    queue_time = NULL,
			    queue_seq  = NULL,
			    agent_id   = NULL,
			    agent_name = NULL
		RETURNING ` + userColumns

	user, err := scanUser(s.db.QueryRowContext(ctx, query, userRef.ID, userRef.Name))
	if err != nil {
		return nil, fmt.Errorf("error dequeueing user: %v", err)
	}
	return user, nil
}

func (s *PostgresStore) Connect(ctx context.Context, agentRef models.ConversationRef) (*models.User, error) {
	// FOR UPDATE SKIP LOCKED keeps two concurrent connects off the
	// same queue head.
	query := `
		UPDATE handoff_users
		SET state      = 'agent',
		    agent_id   = $1,
		    agent_name = $2,
		    queue_time = NULL,
		    queue_seq  = NULL
		WHERE conversation_id = (
			SELECT conversation_id FROM handoff_users
			WHERE state = 'queued'
			ORDER BY queue_time ASC, queue_seq ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED)
		RETURNING ` + userColumns

	user, err := scanUser(s.db.QueryRowContext(ctx, query, agentRef.ID, agentRef.Name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error connecting agent: %v", err)
	}
	return user, nil
}

func (s *PostgresStore) Disconnect(ctx context.Context, agentRef models.ConversationRef) (*models.User, error) {
	query := `
		UPDATE handoff_users
		SET state      = 'bot',
		    agent_id   = NULL,
		    agent_name = NULL,
		    queue_time = NULL,
		    queue_seq  = NULL
		WHERE agent_id = $1
		RETURNING ` + userColumns

	user, err := scanUser(s.db.QueryRowContext(ctx, query, agentRef.ID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error disconnecting agent: %v", err)
	}
	return user, nil
}

func (s *PostgresStore) QueueSnapshot(ctx context.Context) ([]*models.User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM handoff_users
		WHERE state = 'queued'
		ORDER BY queue_time ASC, queue_seq ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying queue: %v", err)
	}
	defer rows.Close()

	var queue []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning queued user: %v", err)
		}
		queue = append(queue, user)
	}
	return queue, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user      models.User
		state     string
		agentID   sql.NullString
		agentName sql.NullString
		queueTime sql.NullTime
	)

	err := row.Scan(&user.UserRef.ID, &user.UserRef.Name, &state, &agentID, &agentName, &queueTime)
	if err != nil {
		return nil, err
	}

	user.State = models.HandoffState(state)
	if agentID.Valid {
		user.AgentRef = models.ConversationRef{ID: agentID.String, Name: agentName.String}
	}
	if queueTime.Valid {
		user.QueueTime = queueTime.Time
	}
	return &user, nil
}
