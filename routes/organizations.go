package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ticketdesk/models"
)

type organizationRequest struct {
	Name        string         `json:"name" binding:"required"`
	Description string         `json:"description"`
	Contact     models.Contact `json:"contact"`
}

// POST /organizations (onboarding)
func (d *deps) createOrganization(c *gin.Context) {
	var req organizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Could not parse request data.", nil)
		return
	}

	ctx := c.Request.Context()
	me, err := d.users.GetByID(ctx, callerID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not load the current user.", err)
		return
	}
	if me.HasOrganization() {
		fail(c, http.StatusConflict, "User already belongs to an organization.", nil)
		return
	}

	org := models.Organization{
		Name:        req.Name,
		Description: req.Description,
		Contact:     req.Contact,
		OwnerID:     me.ID,
	}
	if err := d.orgs.Create(ctx, &org); err != nil {
		fail(c, http.StatusInternalServerError, "Could not create organization. Try again later.", err)
		return
	}
	if err := d.users.SetOrganization(ctx, me.ID, org.ID); err != nil {
		// 綁定失敗就撤銷剛建立的組織，避免孤兒
		if derr := d.orgs.Delete(ctx, org.ID); derr != nil {
			_ = c.Error(derr)
		}
		if errors.Is(err, models.ErrDuplicate) {
			fail(c, http.StatusConflict, "User already belongs to an organization.", nil)
			return
		}
		fail(c, http.StatusInternalServerError, "Could not attach organization to user.", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "organization created!", "organization": org})
}

// GET /organizations/:id
func (d *deps) getOrganization(c *gin.Context) {
	id, ok := paramInt64(c, "id")
	if !ok {
		return
	}
	org, err := d.orgs.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			fail(c, http.StatusNotFound, "Organization not found.", nil)
			return
		}
		fail(c, http.StatusInternalServerError, "Could not fetch organization. Try again later.", err)
		return
	}
	c.JSON(http.StatusOK, org)
}

// PUT /organizations/:id
func (d *deps) updateOrganization(c *gin.Context) {
	id, ok := paramInt64(c, "id")
	if !ok {
		return
	}
	if !d.requireMember(c, id, "update organization") {
		return
	}

	var req organizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Could not parse request data.", nil)
		return
	}

	ctx := c.Request.Context()
	org := models.Organization{ID: id, Name: req.Name, Description: req.Description, Contact: req.Contact}
	if err := d.orgs.Update(ctx, &org); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			fail(c, http.StatusNotFound, "Organization not found.", nil)
			return
		}
		fail(c, http.StatusInternalServerError, "Could not update organization. Try again later.", err)
		return
	}
	if d.inv != nil {
		d.inv.PurgeOrganization(ctx, strconv.FormatInt(id, 10))
	}

	updated, err := d.orgs.GetByID(ctx, id)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not fetch organization. Try again later.", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Organization updated successfully!", "organization": updated})
}

// POST /organizations/:id/follow
func (d *deps) followOrganization(c *gin.Context) {
	id, ok := paramInt64(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := d.orgs.Follow(ctx, id, callerID(c)); err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicate):
			fail(c, http.StatusConflict, "Already following.", nil)
		case errors.Is(err, models.ErrNotFound):
			fail(c, http.StatusNotFound, "Organization not found.", nil)
		default:
			fail(c, http.StatusInternalServerError, "Could not follow organization.", err)
		}
		return
	}
	if d.inv != nil {
		d.inv.PurgeOrganization(ctx, strconv.FormatInt(id, 10))
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Following!"})
}

// DELETE /organizations/:id/follow
func (d *deps) unfollowOrganization(c *gin.Context) {
	id, ok := paramInt64(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := d.orgs.Unfollow(ctx, id, callerID(c)); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			fail(c, http.StatusNotFound, "Not following.", nil)
			return
		}
		fail(c, http.StatusInternalServerError, "Could not unfollow organization.", err)
		return
	}
	if d.inv != nil {
		d.inv.PurgeOrganization(ctx, strconv.FormatInt(id, 10))
	}
	c.JSON(http.StatusOK, gin.H{"message": "Unfollowed!"})
}

// GET /organizations/:id/events
func (d *deps) getOrganizationEvents(c *gin.Context) {
	id, ok := paramInt64(c, "id")
	if !ok {
		return
	}
	events, err := d.events.GetAll(c.Request.Context(), models.EventFilter{OrganizationID: id})
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not fetch events. Try again later.", err)
		return
	}
	c.JSON(http.StatusOK, events)
}
