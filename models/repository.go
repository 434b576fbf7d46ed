package models

import (
	"context"
	"time"
)

// ===== Users =====

const (
	RoleUser      = "user"
	RoleOrganizer = "organizer"
	RoleAdmin     = "admin"
)

type User struct {
	ID             int64  `json:"id" db:"id"`
	Name           string `json:"name" db:"name"`
	Email          string `json:"email" db:"email"`
	Password       string `json:"-" db:"password"`
	Role           string `json:"role" db:"role"`
	OrganizationID *int64 `json:"organizationId,omitempty" db:"organization_id"`
}

// HasOrganization reports whether the user is attached to an organisation.
func (u User) HasOrganization() bool {
	return u.OrganizationID != nil && *u.OrganizationID != 0
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	ValidateCredentials(ctx context.Context, email, plain string) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
	Update(ctx context.Context, u *User) error
	// SetOrganization attaches the user to orgID. It returns ErrDuplicate
	// when the user already belongs to an organisation.
	SetOrganization(ctx context.Context, userID, orgID int64) error
}

// ===== Organizations =====

type Contact struct {
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Website string `json:"website"`
}

type Organization struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Contact     Contact   `json:"contact"`
	Followers   []int64   `json:"followers"`
	OwnerID     int64     `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
}

type OrganizationRepository interface {
	Create(ctx context.Context, o *Organization) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (Organization, error)
	Update(ctx context.Context, o *Organization) error
	Follow(ctx context.Context, orgID, userID int64) error
	Unfollow(ctx context.Context, orgID, userID int64) error
}

// ===== Events =====

type PricingTier struct {
	Type        string  `json:"type" bson:"type"`
	Price       float64 `json:"price" bson:"price"`
	TicketCount int     `json:"ticketCount" bson:"ticketCount"`
}

type Venue struct {
	Name    string `json:"name" bson:"name"`
	Address string `json:"address" bson:"address"`
	City    string `json:"city" bson:"city"`
}

type Event struct {
	ID             string        `json:"id" bson:"id"` // UUID，與 tickets.event_id 對齊
	Title          string        `json:"title" bson:"title"`
	Description    string        `json:"description" bson:"description"`
	Category       string        `json:"category" bson:"category"`
	Tags           []string      `json:"tags" bson:"tags"`
	StartDate      time.Time     `json:"startDate" bson:"startDate"`
	EndDate        time.Time     `json:"endDate" bson:"endDate"`
	Venue          Venue         `json:"venue" bson:"venue"`
	Pricing        []PricingTier `json:"pricing" bson:"pricing"`
	RefundPolicy   string        `json:"refundPolicy" bson:"refundPolicy"`
	OrganizationID int64         `json:"organizationId" bson:"organizationId"`
	CreatedAt      time.Time     `json:"createdAt" bson:"createdAt"`
}

// Tier returns the pricing tier with the given ticket type.
func (e Event) Tier(ticketType string) (PricingTier, bool) {
	for _, p := range e.Pricing {
		if p.Type == ticketType {
			return p, true
		}
	}
	return PricingTier{}, false
}

// Capacity is the total ticket count over every tier.
func (e Event) Capacity() int {
	n := 0
	for _, p := range e.Pricing {
		n += p.TicketCount
	}
	return n
}

// EventFilter narrows GetAll. Zero values match everything.
type EventFilter struct {
	Category       string
	OrganizationID int64
}

type EventRepository interface {
	GetAll(ctx context.Context, f EventFilter) ([]Event, error)
	GetByID(ctx context.Context, id string) (Event, error)
	Create(ctx context.Context, e *Event) error
	Update(ctx context.Context, e *Event) error
	Delete(ctx context.Context, id string) error
}

// ===== Tickets =====

const (
	TicketActive    = "active"
	TicketCancelled = "cancelled"
	TicketUsed      = "used"
)

type Seat struct {
	Section string `json:"section"`
	Row     string `json:"row"`
	Number  int    `json:"number"`
}

type Ticket struct {
	ID          int64     `json:"id"`
	EventID     string    `json:"eventId"`
	UserID      int64     `json:"userId"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	OrderNumber string    `json:"orderNumber"`
	Seat        Seat      `json:"seat"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ValidTicketStatus reports whether s is a known ticket status.
func ValidTicketStatus(s string) bool {
	switch s {
	case TicketActive, TicketCancelled, TicketUsed:
		return true
	}
	return false
}

type TicketRepository interface {
	// Create inserts t unless the event already has capacity active
	// tickets of t.Type, in which case ErrSoldOut is returned.
	Create(ctx context.Context, t *Ticket, capacity int) error
	GetByID(ctx context.Context, id int64) (Ticket, error)
	ListByEvents(ctx context.Context, eventIDs []string, since time.Time) ([]Ticket, error)
	ListByUser(ctx context.Context, userID int64) ([]Ticket, error)
	// UpdateStatus sets the ticket's status. Moving a cancelled ticket
	// back to active or used takes a seat again and fails with ErrSoldOut
	// when its tier already has capacity live tickets.
	UpdateStatus(ctx context.Context, id int64, status string, capacity int) error
}
