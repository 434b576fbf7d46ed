// Package memory holds map-backed repositories. They back `serve --memory`
// and the handler tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"ticketdesk/models"
	"ticketdesk/utils"
)

type UserRepo struct {
	mu    sync.Mutex
	Users map[int64]models.User
	next  int64
}

func NewUserRepo() *UserRepo { return &UserRepo{Users: map[int64]models.User{}} }

func (m *UserRepo) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.Users {
		if existing.Email == u.Email {
			return models.ErrDuplicate
		}
	}
	hashed, err := utils.HashPassword(u.Password)
	if err != nil {
		return err
	}
	u.Password = hashed
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	m.next++
	u.ID = m.next
	m.Users[u.ID] = *u
	return nil
}

func (m *UserRepo) ValidateCredentials(_ context.Context, email, plain string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.Email == email {
			if !utils.CheckPasswordHash(plain, u.Password) {
				return models.User{}, models.ErrInvalidCredentials
			}
			return u, nil
		}
	}
	return models.User{}, models.ErrInvalidCredentials
}

func (m *UserRepo) GetByID(_ context.Context, id int64) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[id]
	if !ok {
		return models.User{}, models.ErrNotFound
	}
	u.Password = ""
	return u, nil
}

func (m *UserRepo) Update(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.Users[u.ID]
	if !ok {
		return models.ErrNotFound
	}
	old.Name, old.Email = u.Name, u.Email
	m.Users[u.ID] = old
	return nil
}

func (m *UserRepo) SetOrganization(_ context.Context, userID, orgID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[userID]
	if !ok {
		return models.ErrNotFound
	}
	if u.HasOrganization() {
		return models.ErrDuplicate
	}
	u.OrganizationID = &orgID
	m.Users[userID] = u
	return nil
}

type OrganizationRepo struct {
	mu    sync.Mutex
	Items map[int64]models.Organization
	next  int64
}

func NewOrganizationRepo() *OrganizationRepo {
	return &OrganizationRepo{Items: map[int64]models.Organization{}}
}

func (m *OrganizationRepo) Create(_ context.Context, o *models.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	o.ID = m.next
	o.CreatedAt = time.Now().UTC()
	if o.Followers == nil {
		o.Followers = []int64{}
	}
	m.Items[o.ID] = *o
	return nil
}

func (m *OrganizationRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Items[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.Items, id)
	return nil
}

func (m *OrganizationRepo) GetByID(_ context.Context, id int64) (models.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.Items[id]
	if !ok {
		return models.Organization{}, models.ErrNotFound
	}
	o.Followers = append([]int64{}, o.Followers...)
	return o, nil
}

func (m *OrganizationRepo) Update(_ context.Context, o *models.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.Items[o.ID]
	if !ok {
		return models.ErrNotFound
	}
	old.Name, old.Description, old.Contact = o.Name, o.Description, o.Contact
	m.Items[o.ID] = old
	return nil
}

func (m *OrganizationRepo) Follow(_ context.Context, orgID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.Items[orgID]
	if !ok {
		return models.ErrNotFound
	}
	for _, f := range o.Followers {
		if f == userID {
			return models.ErrDuplicate
		}
	}
	o.Followers = append(o.Followers, userID)
	sort.Slice(o.Followers, func(i, j int) bool { return o.Followers[i] < o.Followers[j] })
	m.Items[orgID] = o
	return nil
}

func (m *OrganizationRepo) Unfollow(_ context.Context, orgID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.Items[orgID]
	if !ok {
		return models.ErrNotFound
	}
	for i, f := range o.Followers {
		if f == userID {
			o.Followers = append(o.Followers[:i:i], o.Followers[i+1:]...)
			m.Items[orgID] = o
			return nil
		}
	}
	return models.ErrNotFound
}

type EventRepo struct {
	mu    sync.Mutex
	Items map[string]models.Event
}

func NewEventRepo() *EventRepo { return &EventRepo{Items: map[string]models.Event{}} }

func (m *EventRepo) GetAll(_ context.Context, f models.EventFilter) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Event, 0, len(m.Items))
	for _, e := range m.Items {
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if f.OrganizationID != 0 && e.OrganizationID != f.OrganizationID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}

func (m *EventRepo) GetByID(_ context.Context, id string) (models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.Items[id]
	if !ok {
		return models.Event{}, models.ErrNotFound
	}
	return e, nil
}

func (m *EventRepo) Create(_ context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Items[e.ID]; ok {
		return models.ErrDuplicate
	}
	m.Items[e.ID] = *e
	return nil
}

func (m *EventRepo) Update(_ context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Items[e.ID]; !ok {
		return models.ErrNotFound
	}
	m.Items[e.ID] = *e
	return nil
}

func (m *EventRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Items[id]; !ok {
		return models.ErrNotFound
	}
	delete(m.Items, id)
	return nil
}

type TicketRepo struct {
	mu    sync.Mutex
	Items map[int64]models.Ticket
	next  int64
	// Now stamps created tickets; defaults to time.Now.
	Now func() time.Time
}

func NewTicketRepo() *TicketRepo { return &TicketRepo{Items: map[int64]models.Ticket{}} }

func (m *TicketRepo) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

func (m *TicketRepo) Create(_ context.Context, t *models.Ticket, capacity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sold := 0
	for _, existing := range m.Items {
		if existing.EventID == t.EventID && existing.Type == t.Type && existing.Status != models.TicketCancelled {
			sold++
		}
		if t.OrderNumber != "" && existing.OrderNumber == t.OrderNumber {
			return models.ErrDuplicate
		}
	}
	if sold >= capacity {
		return models.ErrSoldOut
	}
	if t.Status == "" {
		t.Status = models.TicketActive
	}
	m.next++
	t.ID = m.next
	if t.CreatedAt.IsZero() {
		t.CreatedAt = m.now()
	}
	t.UpdatedAt = t.CreatedAt
	m.Items[t.ID] = *t
	return nil
}

func (m *TicketRepo) GetByID(_ context.Context, id int64) (models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.Items[id]
	if !ok {
		return models.Ticket{}, models.ErrNotFound
	}
	return t, nil
}

func (m *TicketRepo) ListByEvents(_ context.Context, eventIDs []string, since time.Time) ([]models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]struct{}, len(eventIDs))
	for _, id := range eventIDs {
		want[id] = struct{}{}
	}
	out := []models.Ticket{}
	for _, t := range m.Items {
		if _, ok := want[t.EventID]; !ok || t.CreatedAt.Before(since) {
			continue
		}
		out = append(out, t)
	}
	sortTickets(out)
	return out, nil
}

func (m *TicketRepo) ListByUser(_ context.Context, userID int64) ([]models.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Ticket{}
	for _, t := range m.Items {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sortTickets(out)
	return out, nil
}

func (m *TicketRepo) UpdateStatus(_ context.Context, id int64, status string, capacity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.Items[id]
	if !ok {
		return models.ErrNotFound
	}
	if t.Status == models.TicketCancelled && status != models.TicketCancelled {
		live := 0
		for _, other := range m.Items {
			if other.EventID == t.EventID && other.Type == t.Type && other.Status != models.TicketCancelled {
				live++
			}
		}
		if live >= capacity {
			return models.ErrSoldOut
		}
	}
	t.Status = status
	t.UpdatedAt = m.now()
	m.Items[id] = t
	return nil
}

func sortTickets(ts []models.Ticket) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].CreatedAt.Equal(ts[j].CreatedAt) {
			return ts[i].ID < ts[j].ID
		}
		return ts[i].CreatedAt.Before(ts[j].CreatedAt)
	})
}
