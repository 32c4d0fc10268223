package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/glowline/pulsedesk/internal/models"
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

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	s.logger.Info("Database schema initialized")
	return nil
}

func (s *PostgresStorage) CreateThread(ctx context.Context, thread *models.Thread) error {
	if err := thread.Validate(); err != nil {
		return err
	}

	metadata, err := json.Marshal(thread.Metadata)
	if err != nil {
		return fmt.Errorf("error encoding thread metadata: %w", err)
	}

	query := `
		INSERT INTO threads (id, business_id, participants, integration_id, channel,
			purpose, provider, model, system_prompt, last_activity, metadata)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11)`

	_, err = s.db.ExecContext(ctx, query,
		thread.ID,
		thread.BusinessID,
		pq.Array(thread.Participants),
		thread.IntegrationID,
		thread.Channel,
		thread.Purpose,
		thread.Provider,
		thread.Model,
		thread.SystemPrompt,
		thread.LastActivity,
		metadata,
	)
	if err != nil {
		return fmt.Errorf("error creating thread: %w", err)
	}

	return nil
}

func (s *PostgresStorage) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	query := `
		SELECT id, business_id, participants, COALESCE(integration_id, ''), channel,
			purpose, provider, model, system_prompt, last_activity,
			prompt_tokens, completion_tokens, total_tokens, metadata
		FROM threads
		WHERE id = $1`

	thread := &models.Thread{}
	var metadata []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&thread.ID,
		&thread.BusinessID,
		pq.Array(&thread.Participants),
		&thread.IntegrationID,
		&thread.Channel,
		&thread.Purpose,
		&thread.Provider,
		&thread.Model,
		&thread.SystemPrompt,
		&thread.LastActivity,
		&thread.Usage.PromptTokens,
		&thread.Usage.CompletionTokens,
		&thread.Usage.TotalTokens,
		&metadata,
	)
	if err == sql.ErrNoRows {
		return nil, ErrThreadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying thread: %w", err)
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &thread.Metadata); err != nil {
			return nil, fmt.Errorf("error decoding thread metadata: %w", err)
		}
	}

	messages, err := s.loadMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	thread.Messages = messages

	return thread, nil
}

func (s *PostgresStorage) loadMessages(ctx context.Context, threadID string) ([]models.Message, error) {
	query := `
		SELECT id, role, content, attachments, COALESCE(creator_id, ''), ai_meta, error_info, created_at
		FROM messages
		WHERE thread_id = $1
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var attachments, aiMeta, errorInfo []byte
		err := rows.Scan(
			&msg.ID,
			&msg.Role,
			&msg.Content,
			&attachments,
			&msg.CreatorID,
			&aiMeta,
			&errorInfo,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}

		if len(attachments) > 0 {
			if err := json.Unmarshal(attachments, &msg.Attachments); err != nil {
				return nil, fmt.Errorf("error decoding attachments: %w", err)
			}
		}
		if len(aiMeta) > 0 {
			msg.AI = &models.AIMeta{}
			if err := json.Unmarshal(aiMeta, msg.AI); err != nil {
				return nil, fmt.Errorf("error decoding ai metadata: %w", err)
			}
		}
		if len(errorInfo) > 0 {
			msg.Error = &models.ErrorInfo{}
			if err := json.Unmarshal(errorInfo, msg.Error); err != nil {
				return nil, fmt.Errorf("error decoding error info: %w", err)
			}
		}

		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (s *PostgresStorage) ListThreadsByBusiness(ctx context.Context, businessID string, limit int) ([]*models.Thread, error) {
	query := `
		SELECT id
		FROM threads
		WHERE business_id = $1
		ORDER BY last_activity DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, businessID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying threads: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning thread id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	threads := make([]*models.Thread, 0, len(ids))
	for _, id := range ids {
		thread, err := s.GetThread(ctx, id)
		if err != nil {
			return nil, err
		}
		threads = append(threads, thread)
	}

	return threads, nil
}

func (s *PostgresStorage) AppendMessage(ctx context.Context, threadID string, msg *models.Message) (*models.Thread, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	attachments, err := nullableJSON(msg.Attachments)
	if err != nil {
		return nil, fmt.Errorf("error encoding attachments: %w", err)
	}
	aiMeta, err := nullableJSON(msg.AI)
	if err != nil {
		return nil, fmt.Errorf("error encoding ai metadata: %w", err)
	}
	errorInfo, err := nullableJSON(msg.Error)
	if err != nil {
		return nil, fmt.Errorf("error encoding error info: %w", err)
	}

	insert := `
		INSERT INTO messages (id, thread_id, role, content, attachments, creator_id, ai_meta, error_info, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)`

	_, err = tx.ExecContext(ctx, insert,
		msg.ID, threadID, msg.Role, msg.Content, attachments, msg.CreatorID, aiMeta, errorInfo, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("error inserting message: %w", err)
	}

	usage := msg.TokenUsage()
	update := `
		UPDATE threads
		SET last_activity = $1,
			prompt_tokens = prompt_tokens + $2,
			completion_tokens = completion_tokens + $3,
			total_tokens = total_tokens + $4
		WHERE id = $5`

	result, err := tx.ExecContext(ctx, update,
		msg.CreatedAt, usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens, threadID)
	if err != nil {
		return nil, fmt.Errorf("error updating thread totals: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("error getting rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrThreadNotFound
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing transaction: %w", err)
	}

	return s.GetThread(ctx, threadID)
}

func (s *PostgresStorage) LinkIntegration(ctx context.Context, threadID, integrationID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE threads SET integration_id = $1 WHERE id = $2`, integrationID, threadID)
	if err != nil {
		return fmt.Errorf("error linking integration: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if affected == 0 {
		return ErrThreadNotFound
	}

	return nil
}

func (s *PostgresStorage) GetIntegration(ctx context.Context, id string) (*models.Integration, error) {
	query := `
		SELECT id, business_id, platform, account_id, access_token, status, created_at
		FROM integrations
		WHERE id = $1`

	integration := &models.Integration{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&integration.ID,
		&integration.BusinessID,
		&integration.Platform,
		&integration.AccountID,
		&integration.AccessToken,
		&integration.Status,
		&integration.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrIntegrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying integration: %w", err)
	}

	return integration, nil
}

func (s *PostgresStorage) FindConnectedIntegration(ctx context.Context, businessID string, platform models.Platform) (*models.Integration, error) {
	query := `
		SELECT id, business_id, platform, account_id, access_token, status, created_at
		FROM integrations
		WHERE business_id = $1 AND platform = $2 AND status = 'connected'
		ORDER BY created_at DESC
		LIMIT 1`

	integration := &models.Integration{}
	err := s.db.QueryRowContext(ctx, query, businessID, platform).Scan(
		&integration.ID,
		&integration.BusinessID,
		&integration.Platform,
		&integration.AccountID,
		&integration.AccessToken,
		&integration.Status,
		&integration.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrIntegrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying integration: %w", err)
	}

	return integration, nil
}

func (s *PostgresStorage) ListConnectedIntegrations(ctx context.Context, businessID string) ([]*models.Integration, error) {
	query := `
		SELECT id, business_id, platform, account_id, access_token, status, created_at
		FROM integrations
		WHERE business_id = $1 AND status = 'connected'
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("error querying integrations: %w", err)
	}
	defer rows.Close()

	var integrations []*models.Integration
	for rows.Next() {
		integration := &models.Integration{}
		err := rows.Scan(
			&integration.ID,
			&integration.BusinessID,
			&integration.Platform,
			&integration.AccountID,
			&integration.AccessToken,
			&integration.Status,
			&integration.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning integration: %w", err)
		}
		integrations = append(integrations, integration)
	}

	return integrations, rows.Err()
}

func (s *PostgresStorage) SaveIntegration(ctx context.Context, integration *models.Integration) error {
	query := `
		INSERT INTO integrations (id, business_id, platform, account_id, access_token, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET account_id = EXCLUDED.account_id,
			access_token = EXCLUDED.access_token,
			status = EXCLUDED.status`

	_, err := s.db.ExecContext(ctx, query,
		integration.ID,
		integration.BusinessID,
		integration.Platform,
		integration.AccountID,
		integration.AccessToken,
		integration.Status,
		integration.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving integration: %w", err)
	}

	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// nullableJSON marshals v, returning nil for nil pointers and empty slices
// so the column stays NULL.
func nullableJSON(v any) ([]byte, error) {
	switch val := v.(type) {
	case *models.AIMeta:
		if val == nil {
			return nil, nil
		}
	case *models.ErrorInfo:
		if val == nil {
			return nil, nil
		}
	case []models.Attachment:
		if len(val) == 0 {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
