package contract

import (
	"strings"
	"time"
)

type Stage string

const (
	StageGreeting           Stage = "greeting"
	StageNameCollection     Stage = "name_collection"
	StageQualification      Stage = "qualification"
	StageBudgetCollection   Stage = "budget_collection"
	StageLocationCollection Stage = "location_collection"
	StagePropertyMatching   Stage = "property_matching"
	StageScheduling         Stage = "scheduling"
	StageFollowUp           Stage = "follow_up"
)

type PropertyType string

const (
	PropertyVilla     PropertyType = "villa"
	PropertyApartment PropertyType = "apartment"
	PropertyPlot      PropertyType = "plot"
)

// ParsePropertyType maps free text onto a known property type.
func ParsePropertyType(v string) (PropertyType, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "villa", "villas", "independent house", "house":
		return PropertyVilla, true
	case "apartment", "apartments", "flat", "flats":
		return PropertyApartment, true
	case "plot", "plots", "land":
		return PropertyPlot, true
	default:
		return "", false
	}
}

type BudgetRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// LeadInfo is the typed preference set learned about a customer. Nil pointers
// and empty strings mean "not known yet".
type LeadInfo struct {
	Name         string       `json:"name,omitempty"`
	Location     string       `json:"location,omitempty"`
	PropertyType PropertyType `json:"propertyType,omitempty"`
	BHKType      string       `json:"bhkType,omitempty"`
	Budget       *float64     `json:"budget,omitempty"`
	BudgetRange  *BudgetRange `json:"budgetRange,omitempty"`
	AreaSqft     *float64     `json:"areaSqft,omitempty"`
	Timeline     string       `json:"timeline,omitempty"`
}

func (l LeadInfo) HasBudget() bool {
	return l.Budget != nil || l.BudgetRange != nil
}

// IsFullyQualified reports whether the four qualifying fields are present.
func (l LeadInfo) IsFullyQualified() bool {
	return l.Name != "" && l.PropertyType != "" && l.HasBudget() && l.Location != ""
}

func (l LeadInfo) IsEmpty() bool {
	return l == (LeadInfo{})
}

func (l LeadInfo) Clone() LeadInfo {
	out := l
	if l.Budget != nil {
		v := *l.Budget
		out.Budget = &v
	}
	if l.BudgetRange != nil {
		r := *l.BudgetRange
		out.BudgetRange = &r
	}
	if l.AreaSqft != nil {
		v := *l.AreaSqft
		out.AreaSqft = &v
	}
	return out
}

// ToMap flattens the known fields into the loosely typed shape callers and
// the graph store consume.
func (l LeadInfo) ToMap() map[string]any {
	out := make(map[string]any, 8)
	if l.Name != "" {
		out["name"] = l.Name
	}
	if l.Location != "" {
		out["location"] = l.Location
	}
	if l.PropertyType != "" {
		out["propertyType"] = string(l.PropertyType)
	}
	if l.BHKType != "" {
		out["bhkType"] = l.BHKType
	}
	if l.Budget != nil {
		out["budget"] = *l.Budget
	}
	if l.BudgetRange != nil {
		out["budgetRange"] = map[string]any{
			"min": l.BudgetRange.Min,
			"max": l.BudgetRange.Max,
		}
	}
	if l.AreaSqft != nil {
		out["areaSqft"] = *l.AreaSqft
	}
	if l.Timeline != "" {
		out["timeline"] = l.Timeline
	}
	return out
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

type SenderType string

const (
	SenderCustomer SenderType = "customer"
	SenderAgent    SenderType = "agent"
	SenderSystem   SenderType = "system"
)

// HistoryMessage is one entry of the caller-owned message log.
type HistoryMessage struct {
	Content    string     `json:"content"`
	SenderType SenderType `json:"sender_type"`
	CreatedAt  time.Time  `json:"created_at"`
}

type Customer struct {
	ID             string `json:"id"`
	CompanyID      string `json:"company_id"`
	Name           string `json:"name,omitempty"`
	WhatsAppNumber string `json:"whatsapp_number,omitempty"`
	TelegramChatID string `json:"telegram_chat_id,omitempty"`
	Email          string `json:"email,omitempty"`
}

type AIResponse struct {
	Message                string         `json:"message"`
	NextStage              Stage          `json:"nextStage"`
	Actions                []string       `json:"actions"`
	ShouldCreateLead       bool           `json:"shouldCreateLead"`
	ShouldScheduleFollowUp bool           `json:"shouldScheduleFollowUp"`
	Confidence             float64        `json:"confidence"`
	ExtractedInfo          map[string]any `json:"extractedInfo"`
}

type EngagementLevel string

const (
	EngagementHigh   EngagementLevel = "high"
	EngagementMedium EngagementLevel = "medium"
	EngagementLow    EngagementLevel = "low"
)

type InteractionHistory struct {
	TotalConversations int             `json:"total_conversations"`
	EngagementLevel    EngagementLevel `json:"engagement_level"`
	LastInteraction    time.Time       `json:"last_interaction"`
}

type LeadJourney struct {
	Stage        string         `json:"stage"`
	Score        int            `json:"score"`
	Requirements map[string]any `json:"requirements"`
}

type CustomerMemoryContext struct {
	Preferences        map[string]any     `json:"preferences"`
	InteractionHistory InteractionHistory `json:"interaction_history"`
	LeadJourney        LeadJourney        `json:"lead_journey"`
}

// FallbackMemoryContext is substituted whenever the graph store cannot answer.
func FallbackMemoryContext() CustomerMemoryContext {
	return CustomerMemoryContext{
		Preferences: map[string]any{},
		InteractionHistory: InteractionHistory{
			TotalConversations: 1,
			EngagementLevel:    EngagementLow,
		},
		LeadJourney: LeadJourney{
			Stage:        string(StageGreeting),
			Score:        0,
			Requirements: map[string]any{},
		},
	}
}

type Property struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description,omitempty"`
	PropertyType string  `json:"property_type"`
	BHKType      string  `json:"bhk_type,omitempty"`
	Address      string  `json:"address,omitempty"`
	Locality     string  `json:"locality,omitempty"`
	City         string  `json:"city,omitempty"`
	PriceMin     float64 `json:"price_min"`
	PriceMax     float64 `json:"price_max"`
	AreaSqft     float64 `json:"area_sqft,omitempty"`
	Status       string  `json:"status"`
	Sample       bool    `json:"sample,omitempty"`
}

type SearchCriteria struct {
	CompanyID    string   `json:"company_id,omitempty"`
	PropertyType string   `json:"property_type,omitempty"`
	BHKType      string   `json:"bhk_type,omitempty"`
	Budget       *float64 `json:"budget,omitempty"`
	Location     string   `json:"location,omitempty"`
}

// CriteriaFromLeadInfo builds a search from merged preferences; the budget
// anchor is the most generous known figure.
func CriteriaFromLeadInfo(companyID string, info LeadInfo) SearchCriteria {
	c := SearchCriteria{
		CompanyID:    companyID,
		PropertyType: string(info.PropertyType),
		BHKType:      info.BHKType,
		Location:     info.Location,
	}
	switch {
	case info.Budget != nil:
		v := *info.Budget
		c.Budget = &v
	case info.BudgetRange != nil:
		v := info.BudgetRange.Max
		c.Budget = &v
	}
	return c
}
