package repositories

import (
	"context"
	"encoding/json"

	"github.com/collab-platform/backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) InsertTx(ctx context.Context, q Querier, m *models.Message) error {
	var actionBytes []byte
	if m.ActionData != nil {
		actionBytes, _ = json.Marshal(m.ActionData)
	}
	attachBytes, _ := json.Marshal(m.AttachmentURLs)
	return q.QueryRow(ctx, `
		INSERT INTO messages (negotiation_id, sender_id, receiver_id, message_type, body,
		                      action_required, action_data, attachment_urls)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, m.NegotiationID, m.SenderID, m.ReceiverID, m.MessageType, m.Body,
		m.ActionRequired, actionBytes, attachBytes,
	).Scan(&m.ID, &m.CreatedAt)
}

func (r *MessageRepo) ListByNegotiation(ctx context.Context, negotiationID uuid.UUID, limit, offset int) ([]models.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, negotiation_id, sender_id, receiver_id, message_type, body,
		       action_required, action_data, attachment_urls, created_at
		FROM messages WHERE negotiation_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, negotiationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Message
	for rows.Next() {
		var m models.Message
		var actionBytes, attachBytes []byte
		if err := rows.Scan(&m.ID, &m.NegotiationID, &m.SenderID, &m.ReceiverID, &m.MessageType,
			&m.Body, &m.ActionRequired, &actionBytes, &attachBytes, &m.CreatedAt); err != nil {
			return nil, err
		}
		if len(actionBytes) > 0 {
			var ad models.ActionData
			if err := json.Unmarshal(actionBytes, &ad); err == nil {
				m.ActionData = &ad
			}
		}
		_ = json.Unmarshal(attachBytes, &m.AttachmentURLs)
		out = append(out, m)
	}
	return out, nil
}

// FindRecentAmountPaise scans recent protocol messages for an embedded
// amount. Last resort of the payment amount resolution chain.
func (r *MessageRepo) FindRecentAmountPaise(ctx context.Context, negotiationID uuid.UUID) (int64, bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT action_data->'payload'->>'amount_paise'
		FROM messages
		WHERE negotiation_id = $1 AND message_type = 'automated' AND action_data IS NOT NULL
		ORDER BY created_at DESC LIMIT 20
	`, negotiationID)
	if err != nil {
		return 0, false, err
	}
	defer rows.Close()

	for rows.Next() {
		var raw *string
		if err := rows.Scan(&raw); err != nil {
			return 0, false, err
		}
		if raw == nil {
			continue
		}
		var amount int64
		if err := json.Unmarshal([]byte(*raw), &amount); err == nil && amount > 0 {
			return amount, true, nil
		}
	}
	return 0, false, rows.Err()
}
