package routes

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"ticketdesk/models"
)

func newOrderNumber() string {
	return "ORD-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

// GET /events/:id/tickets
func (d *deps) getEventTickets(c *gin.Context) {
	ev, ok := d.loadEvent(c, c.Param("id"))
	if !ok {
		return
	}
	if !d.requireMember(c, ev.OrganizationID, "view tickets") {
		return
	}

	tickets, err := d.tickets.ListByEvents(c.Request.Context(), []string{ev.ID}, time.Time{})
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not fetch tickets. Try again later.", err)
		return
	}
	c.JSON(http.StatusOK, tickets)
}

// POST /events/:id/tickets
func (d *deps) buyTicket(c *gin.Context) {
	ev, ok := d.loadEvent(c, c.Param("id"))
	if !ok {
		return
	}

	var req struct {
		Type string      `json:"type" binding:"required"`
		Seat models.Seat `json:"seat"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Could not parse request data.", nil)
		return
	}

	tier, found := ev.Tier(req.Type)
	if !found {
		fail(c, http.StatusBadRequest, models.ErrUnknownTier.Error(), nil)
		return
	}

	t := models.Ticket{
		EventID:     ev.ID,
		UserID:      callerID(c),
		Type:        tier.Type,
		Status:      models.TicketActive,
		OrderNumber: newOrderNumber(),
		Seat:        req.Seat,
	}
	if err := d.tickets.Create(c.Request.Context(), &t, tier.TicketCount); err != nil {
		if errors.Is(err, models.ErrSoldOut) {
			fail(c, http.StatusConflict, "Sold out.", nil)
			return
		}
		fail(c, http.StatusInternalServerError, "Could not create ticket. Try again later.", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Ticket purchased!", "ticket": t})
}

// GET /tickets?organizationId=&since=
func (d *deps) listTickets(c *gin.Context) {
	orgID, err := strconv.ParseInt(c.Query("organizationId"), 10, 64)
	if err != nil || orgID <= 0 {
		fail(c, http.StatusBadRequest, "Could not parse organizationId.", nil)
		return
	}
	var since time.Time
	if raw := c.Query("since"); raw != "" {
		since, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			fail(c, http.StatusBadRequest, "Could not parse since.", nil)
			return
		}
	}
	if !d.requireMember(c, orgID, "view tickets") {
		return
	}

	ctx := c.Request.Context()
	events, err := d.events.GetAll(ctx, models.EventFilter{OrganizationID: orgID})
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not fetch events. Try again later.", err)
		return
	}
	ids := make([]string, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}

	tickets, err := d.tickets.ListByEvents(ctx, ids, since)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not fetch tickets. Try again later.", err)
		return
	}
	c.JSON(http.StatusOK, tickets)
}

// loadTicket fetches a ticket and checks the caller is its holder or an
// organiser of the owning event. owner reports which one.
func (d *deps) loadTicket(c *gin.Context) (t models.Ticket, owner bool, ok bool) {
	id, ok := paramInt64(c, "id")
	if !ok {
		return models.Ticket{}, false, false
	}
	t, err := d.tickets.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			fail(c, http.StatusNotFound, "Ticket not found.", nil)
			return models.Ticket{}, false, false
		}
		fail(c, http.StatusInternalServerError, "Could not fetch ticket. Try again later.", err)
		return models.Ticket{}, false, false
	}
	if t.UserID == callerID(c) {
		return t, true, true
	}

	ev, ok := d.loadEvent(c, t.EventID)
	if !ok {
		return models.Ticket{}, false, false
	}
	if !d.requireMember(c, ev.OrganizationID, "view ticket") {
		return models.Ticket{}, false, false
	}
	return t, false, true
}

// GET /tickets/:id
func (d *deps) getTicket(c *gin.Context) {
	t, _, ok := d.loadTicket(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, t)
}

// PUT /tickets/:id/status
func (d *deps) updateTicketStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || !models.ValidTicketStatus(req.Status) {
		fail(c, http.StatusBadRequest, "Could not parse request data.", nil)
		return
	}

	t, owner, ok := d.loadTicket(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	// 票種已刪除時容量視為 0，取消後無法再啟用
	var capacity int
	ev, err := d.events.GetByID(ctx, t.EventID)
	switch {
	case err == nil:
		if tier, found := ev.Tier(t.Type); found {
			capacity = tier.TicketCount
		}
	case !errors.Is(err, models.ErrNotFound):
		fail(c, http.StatusInternalServerError, "Could not fetch the event. Try again later.", err)
		return
	}

	// 持票人（非主辦方）只能取消有效的票
	if owner {
		member := false
		if err == nil {
			member, _ = d.memberOf(c, ev.OrganizationID)
		}
		if !member {
			if req.Status != models.TicketCancelled {
				fail(c, http.StatusUnauthorized, "Ticket holders may only cancel.", nil)
				return
			}
			if t.Status != models.TicketActive {
				fail(c, http.StatusConflict, "Only active tickets can be cancelled.", nil)
				return
			}
		}
	}

	if err := d.tickets.UpdateStatus(ctx, t.ID, req.Status, capacity); err != nil {
		if errors.Is(err, models.ErrSoldOut) {
			fail(c, http.StatusConflict, "Sold out.", nil)
			return
		}
		fail(c, http.StatusInternalServerError, "Could not update ticket. Try again later.", err)
		return
	}
	t.Status = req.Status
	c.JSON(http.StatusOK, gin.H{"message": "Ticket updated successfully!", "ticket": t})
}
