package routes

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ticketdesk/models"
)

type eventRequest struct {
	Title        string               `json:"title" binding:"required"`
	Description  string               `json:"description"`
	Category     string               `json:"category"`
	Tags         []string             `json:"tags"`
	StartDate    time.Time            `json:"startDate"`
	EndDate      time.Time            `json:"endDate"`
	Venue        models.Venue         `json:"venue"`
	Pricing      []models.PricingTier `json:"pricing"`
	RefundPolicy string               `json:"refundPolicy"`
}

var (
	errDateRange     = errors.New("endDate is before startDate")
	errTierType      = errors.New("pricing tier needs a type")
	errTierDuplicate = errors.New("duplicate pricing tier type")
	errTierNegative  = errors.New("pricing tier price and ticket count must not be negative")
)

func (r eventRequest) validate() error {
	if !r.StartDate.IsZero() && !r.EndDate.IsZero() && r.EndDate.Before(r.StartDate) {
		return errDateRange
	}
	seen := make(map[string]struct{}, len(r.Pricing))
	for _, p := range r.Pricing {
		if p.Type == "" {
			return errTierType
		}
		if _, dup := seen[p.Type]; dup {
			return errTierDuplicate
		}
		seen[p.Type] = struct{}{}
		if p.Price < 0 || p.TicketCount < 0 {
			return errTierNegative
		}
	}
	return nil
}

func (r eventRequest) apply(e *models.Event) {
	e.Title = r.Title
	e.Description = r.Description
	e.Category = r.Category
	e.Tags = r.Tags
	if e.Tags == nil {
		e.Tags = []string{}
	}
	e.StartDate = r.StartDate
	e.EndDate = r.EndDate
	e.Venue = r.Venue
	e.Pricing = r.Pricing
	if e.Pricing == nil {
		e.Pricing = []models.PricingTier{}
	}
	e.RefundPolicy = r.RefundPolicy
}

// loadEvent answers 404/500 itself and returns false on failure.
func (d *deps) loadEvent(c *gin.Context, id string) (models.Event, bool) {
	ev, err := d.events.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			fail(c, http.StatusNotFound, "Event not found.", nil)
			return models.Event{}, false
		}
		fail(c, http.StatusInternalServerError, "Could not fetch the event. Try again later.", err)
		return models.Event{}, false
	}
	return ev, true
}

func (d *deps) purgeEvent(c *gin.Context, id string) {
	if d.inv == nil {
		return
	}
	d.inv.PurgeEventsList(c.Request.Context())
	d.inv.PurgeEventItem(c.Request.Context(), id)
}

// GET /events
func (d *deps) getEvents(c *gin.Context) {
	f := models.EventFilter{Category: c.Query("category")}
	if raw := c.Query("organizationId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			fail(c, http.StatusBadRequest, "Could not parse organizationId.", nil)
			return
		}
		f.OrganizationID = id
	}

	events, err := d.events.GetAll(c.Request.Context(), f)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not fetch events. Try again later.", err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// GET /events/:id
func (d *deps) getEvent(c *gin.Context) {
	ev, ok := d.loadEvent(c, c.Param("id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, ev)
}

// POST /events
func (d *deps) createEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Could not parse request data.", nil)
		return
	}
	if err := req.validate(); err != nil {
		fail(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx := c.Request.Context()
	me, err := d.users.GetByID(ctx, callerID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not load the current user.", err)
		return
	}
	if !me.HasOrganization() {
		fail(c, http.StatusForbidden, "Create an organization first.", nil)
		return
	}

	event := models.Event{
		ID:             uuid.NewString(), // 與 tickets.event_id (UUID) 對齊
		OrganizationID: *me.OrganizationID,
		CreatedAt:      d.clock.Now(),
	}
	req.apply(&event)

	if err := d.events.Create(ctx, &event); err != nil {
		fail(c, http.StatusInternalServerError, "Could not create event. Try again later.", err)
		return
	}
	d.purgeEvent(c, event.ID)

	c.JSON(http.StatusCreated, gin.H{"message": "event created!", "event": event})
}

// PUT /events/:id
func (d *deps) updateEvent(c *gin.Context) {
	old, ok := d.loadEvent(c, c.Param("id"))
	if !ok {
		return
	}
	if !d.requireMember(c, old.OrganizationID, "update event") {
		return
	}

	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Could not parse request data.", nil)
		return
	}
	if err := req.validate(); err != nil {
		fail(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	updated := old
	req.apply(&updated)
	if err := d.events.Update(c.Request.Context(), &updated); err != nil {
		fail(c, http.StatusInternalServerError, "Could not update event. Try again later.", err)
		return
	}
	d.purgeEvent(c, updated.ID)

	c.JSON(http.StatusOK, gin.H{"message": "Event updated successfully!", "event": updated})
}

// DELETE /events/:id
func (d *deps) deleteEvent(c *gin.Context) {
	ev, ok := d.loadEvent(c, c.Param("id"))
	if !ok {
		return
	}
	if !d.requireMember(c, ev.OrganizationID, "delete event") {
		return
	}

	if err := d.events.Delete(c.Request.Context(), ev.ID); err != nil {
		fail(c, http.StatusInternalServerError, "Could not delete the event.", err)
		return
	}
	d.purgeEvent(c, ev.ID)

	c.JSON(http.StatusOK, gin.H{"message": "Event deleted successfully!"})
}
