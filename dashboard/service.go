package dashboard

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"ticketdesk/apiclient"
	"ticketdesk/models"
)

// API is the part of the remote API the dashboard reads and writes.
// *apiclient.Client implements it.
type API interface {
	ListOrganizationEvents(ctx context.Context, orgID int64) ([]models.Event, error)
	ListTickets(ctx context.Context, opts apiclient.TicketListOptions) ([]models.Ticket, error)
	GetUser(ctx context.Context, userID int64) (models.User, error)
	GetOrganization(ctx context.Context, orgID int64) (models.Organization, error)
	UpdateUser(ctx context.Context, userID int64, in apiclient.UserUpdate) (models.User, error)
	UpdateOrganization(ctx context.Context, orgID int64, in apiclient.OrganizationInput) (models.Organization, error)
}

// Result is what a dashboard endpoint renders: either an error message or
// data. Loading is the client's own state and never travels.
type Result[T any] struct {
	Error string `json:"error,omitempty"`
	Data  *T     `json:"data,omitempty"`
}

// Envelope wraps the outcome of a service call.
func Envelope[T any](v T, err error) Result[T] {
	if err != nil {
		return Result[T]{Error: apiclient.Message(err)}
	}
	return Result[T]{Data: &v}
}

// SalesView is the headline sales card.
type SalesView struct {
	Window           Window         `json:"window"`
	TicketsSold      int            `json:"ticketsSold"`
	Revenue          float64        `json:"revenue"`
	AveragePrice     float64        `json:"averagePrice"`
	RevenueText      string         `json:"revenueText"`
	AveragePriceText string         `json:"averagePriceText"`
	Events           []EventSummary `json:"events"`
}

// ChartView is the daily sales chart.
type ChartView struct {
	Window Window  `json:"window"`
	Points []Point `json:"points"`
}

// loadSales fetches the organisation's events, then the tickets sold since
// the window start. Tickets are requested only once the events are known.
func loadSales(ctx context.Context, api API, orgID int64, w Window, now time.Time) ([]models.Event, []models.Ticket, error) {
	events, err := api.ListOrganizationEvents(ctx, orgID)
	if err != nil {
		return nil, nil, err
	}
	if len(events) == 0 {
		return events, nil, nil
	}
	tickets, err := api.ListTickets(ctx, apiclient.TicketListOptions{
		OrganizationID: orgID,
		Since:          w.Start(now),
	})
	if err != nil {
		return nil, nil, err
	}
	return events, w.Filter(tickets, now), nil
}

func Sales(ctx context.Context, api API, orgID int64, w Window, now time.Time) (SalesView, error) {
	events, tickets, err := loadSales(ctx, api, orgID, w, now)
	if err != nil {
		return SalesView{}, err
	}
	rev := Revenue(tickets, events)
	avg := AveragePrice(tickets, events)
	return SalesView{
		Window:           w,
		TicketsSold:      Sold(tickets),
		Revenue:          rev,
		AveragePrice:     avg,
		RevenueText:      FormatMoney(rev),
		AveragePriceText: FormatMoney(avg),
		Events:           PerEvent(tickets, events),
	}, nil
}

func Chart(ctx context.Context, api API, orgID int64, w Window, now time.Time) (ChartView, error) {
	events, tickets, err := loadSales(ctx, api, orgID, w, now)
	if err != nil {
		return ChartView{}, err
	}
	return ChartView{Window: w, Points: DailySeries(tickets, events, w, now)}, nil
}

// ProfileView is the signed-in user with their organisation, if any.
type ProfileView struct {
	User         models.User          `json:"user"`
	Organization *models.Organization `json:"organization,omitempty"`
}

// Profile fetches the user and the organisation in parallel.
func Profile(ctx context.Context, api API, userID, orgID int64) (ProfileView, error) {
	var view ProfileView
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := api.GetUser(ctx, userID)
		view.User = u
		return err
	})
	if orgID != 0 {
		g.Go(func() error {
			o, err := api.GetOrganization(ctx, orgID)
			if err == nil {
				view.Organization = &o
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return ProfileView{}, err
	}
	return view, nil
}

func UpdateUserSettings(ctx context.Context, api API, userID int64, in apiclient.UserUpdate) (models.User, error) {
	return api.UpdateUser(ctx, userID, in)
}

func UpdateOrganizationSettings(ctx context.Context, api API, orgID int64, in apiclient.OrganizationInput) (models.Organization, error) {
	return api.UpdateOrganization(ctx, orgID, in)
}
