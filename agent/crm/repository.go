package crm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	contractx "github.com/redlitmus-in/real-estate-crm/agent/contract"
)

var (
	ErrCustomerNotFound = errors.New("customer not found")
)

const leadStatusQualified = "qualified"

// Message is one entry appended to a conversation's message log.
type Message struct {
	ID             string
	ConversationID string
	CustomerID     string
	Content        string
	SenderType     contractx.SenderType
	CreatedAt      time.Time
}

// Lead is a qualified lead raised from a conversation. One lead exists per
// customer; later qualifications update it in place.
type Lead struct {
	ID             string
	CompanyID      string
	CustomerID     string
	ConversationID string
	Stage          contractx.Stage
	Status         string
	Requirements   map[string]any
	UpdatedAt      time.Time
}

// Repository is the relational side of the CRM the inbound flow needs.
type Repository interface {
	Customer(ctx context.Context, id string) (contractx.Customer, error)
	Messages(ctx context.Context, conversationID string, limit int) ([]contractx.HistoryMessage, error)
	AppendMessage(ctx context.Context, msg Message) error
	UpsertLead(ctx context.Context, lead Lead) error
}

// LeadID is stable per company and customer so repeated qualifications hit
// the same row.
func LeadID(companyID, customerID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("lead\x1f"+companyID+"\x1f"+customerID)).String()
}

type customerRow struct {
	bun.BaseModel `bun:"table:customers,alias:c"`

	ID             string `bun:"id,pk"`
	CompanyID      string `bun:"company_id"`
	Name           string `bun:"name"`
	WhatsAppNumber string `bun:"whatsapp_number,nullzero"`
	TelegramChatID string `bun:"telegram_chat_id,nullzero"`
	Email          string `bun:"email,nullzero"`
}

type messageRow struct {
	bun.BaseModel `bun:"table:messages,alias:m"`

	ID             string    `bun:"id,pk"`
	ConversationID string    `bun:"conversation_id"`
	CustomerID     string    `bun:"customer_id"`
	Content        string    `bun:"content"`
	SenderType     string    `bun:"sender_type"`
	CreatedAt      time.Time `bun:"created_at"`
}

type leadRow struct {
	bun.BaseModel `bun:"table:leads,alias:l"`

	ID             string         `bun:"id,pk"`
	CompanyID      string         `bun:"company_id"`
	CustomerID     string         `bun:"customer_id"`
	ConversationID string         `bun:"conversation_id"`
	Stage          string         `bun:"stage"`
	Status         string         `bun:"status"`
	Requirements   map[string]any `bun:"requirements,type:jsonb"`
	CreatedAt      time.Time      `bun:"created_at"`
	UpdatedAt      time.Time      `bun:"updated_at"`
}

// BunRepository implements Repository on Postgres through bun.
type BunRepository struct {
	db bun.IDB
}

func NewBunRepository(db bun.IDB) *BunRepository {
	return &BunRepository{db: db}
}

func (r *BunRepository) Customer(ctx context.Context, id string) (contractx.Customer, error) {
	var row customerRow
	err := r.db.NewSelect().
		Model(&row).
		Where("c.id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return contractx.Customer{}, fmt.Errorf("%w: %s", ErrCustomerNotFound, id)
	}
	if err != nil {
		return contractx.Customer{}, fmt.Errorf("select customer: %w", err)
	}
	return contractx.Customer{
		ID:             row.ID,
		CompanyID:      row.CompanyID,
		Name:           row.Name,
		WhatsAppNumber: row.WhatsAppNumber,
		TelegramChatID: row.TelegramChatID,
		Email:          row.Email,
	}, nil
}

// Messages returns the latest limit messages of a conversation, oldest first.
func (r *BunRepository) Messages(ctx context.Context, conversationID string, limit int) ([]contractx.HistoryMessage, error) {
	var rows []messageRow
	q := r.db.NewSelect().
		Model(&rows).
		Where("m.conversation_id = ?", conversationID).
		OrderExpr("m.created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("select messages: %w", err)
	}

	slices.Reverse(rows)
	out := make([]contractx.HistoryMessage, 0, len(rows))
	for _, row := range rows {
		out = append(out, contractx.HistoryMessage{
			Content:    row.Content,
			SenderType: contractx.SenderType(row.SenderType),
			CreatedAt:  row.CreatedAt,
		})
	}
	return out, nil
}

func (r *BunRepository) AppendMessage(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.ID) == "" {
		msg.ID = uuid.NewString()
	}
	row := messageRow{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		CustomerID:     msg.CustomerID,
		Content:        msg.Content,
		SenderType:     string(msg.SenderType),
		CreatedAt:      msg.CreatedAt.UTC(),
	}
	if _, err := r.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *BunRepository) UpsertLead(ctx context.Context, lead Lead) error {
	if _, err := upsertLeadQuery(r.db, lead).Exec(ctx); err != nil {
		return fmt.Errorf("upsert lead: %w", err)
	}
	return nil
}

func upsertLeadQuery(db bun.IDB, lead Lead) *bun.InsertQuery {
	if lead.ID == "" {
		lead.ID = LeadID(lead.CompanyID, lead.CustomerID)
	}
	if lead.Status == "" {
		lead.Status = leadStatusQualified
	}
	reqs := lead.Requirements
	if reqs == nil {
		reqs = map[string]any{}
	}
	at := lead.UpdatedAt.UTC()
	row := &leadRow{
		ID:             lead.ID,
		CompanyID:      lead.CompanyID,
		CustomerID:     lead.CustomerID,
		ConversationID: lead.ConversationID,
		Stage:          string(lead.Stage),
		Status:         lead.Status,
		Requirements:   reqs,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	return db.NewInsert().
		Model(row).
		On("CONFLICT (customer_id) DO UPDATE").
		Set("conversation_id = EXCLUDED.conversation_id").
		Set("stage = EXCLUDED.stage").
		Set("status = EXCLUDED.status").
		Set("requirements = EXCLUDED.requirements").
		Set("updated_at = EXCLUDED.updated_at")
}
