package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ticketdesk/models"
	"ticketdesk/utils"
)

/* --------------------- Auth --------------------- */

// POST /signup
func (d *deps) signup(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Could not parse request data.", nil)
		return
	}
	switch req.Role {
	case "":
		req.Role = models.RoleUser
	case models.RoleUser, models.RoleOrganizer:
	default:
		fail(c, http.StatusBadRequest, "Unknown role.", nil)
		return
	}

	u := models.User{Name: req.Name, Email: req.Email, Password: req.Password, Role: req.Role}
	if err := d.users.Create(c.Request.Context(), &u); err != nil {
		if errors.Is(err, models.ErrDuplicate) {
			fail(c, http.StatusConflict, "Email already registered.", nil)
			return
		}
		fail(c, http.StatusInternalServerError, "Could not save user.", err)
		return
	}
	u.Password = ""
	c.JSON(http.StatusCreated, gin.H{"message": "user created successfully", "user": u})
}

// POST /login
func (d *deps) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Could not parse request data.", nil)
		return
	}

	user, err := d.users.ValidateCredentials(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			fail(c, http.StatusUnauthorized, "Could not authenticate user.", nil)
			return
		}
		fail(c, http.StatusInternalServerError, "Could not authenticate user.", err)
		return
	}

	token, err := utils.GenerateToken(user.Email, user.ID, user.Role)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not authenticate user.", err)
		return
	}
	user.Password = ""
	c.JSON(http.StatusOK, gin.H{"message": "Login successful!", "token": token, "user": user})
}

/* --------------------- Users --------------------- */

// GET /users/:id
func (d *deps) getUser(c *gin.Context) {
	id, ok := paramInt64(c, "id")
	if !ok {
		return
	}
	if id != callerID(c) && !isAdmin(c) {
		fail(c, http.StatusUnauthorized, "Not authorized to view user.", nil)
		return
	}

	u, err := d.users.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			fail(c, http.StatusNotFound, "User not found.", nil)
			return
		}
		fail(c, http.StatusInternalServerError, "Could not fetch user. Try again later.", err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// PUT /users/:id
func (d *deps) updateUser(c *gin.Context) {
	id, ok := paramInt64(c, "id")
	if !ok {
		return
	}
	if id != callerID(c) {
		fail(c, http.StatusUnauthorized, "Not authorized to update user.", nil)
		return
	}

	var req struct {
		Name  string `json:"name" binding:"required"`
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Could not parse request data.", nil)
		return
	}

	ctx := c.Request.Context()
	u := models.User{ID: id, Name: req.Name, Email: req.Email}
	if err := d.users.Update(ctx, &u); err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			fail(c, http.StatusNotFound, "User not found.", nil)
		case errors.Is(err, models.ErrDuplicate):
			fail(c, http.StatusConflict, "Email already registered.", nil)
		default:
			fail(c, http.StatusInternalServerError, "Could not update user. Try again later.", err)
		}
		return
	}

	updated, err := d.users.GetByID(ctx, id)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not fetch user. Try again later.", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User updated successfully!", "user": updated})
}

// GET /users/:id/tickets
func (d *deps) getUserTickets(c *gin.Context) {
	id, ok := paramInt64(c, "id")
	if !ok {
		return
	}
	if id != callerID(c) && !isAdmin(c) {
		fail(c, http.StatusUnauthorized, "Not authorized to view tickets.", nil)
		return
	}

	tickets, err := d.tickets.ListByUser(c.Request.Context(), id)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Could not fetch tickets. Try again later.", err)
		return
	}
	c.JSON(http.StatusOK, tickets)
}
