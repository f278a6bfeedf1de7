package handler

import (
	"errors"
	"net/http"

	"studybuddy/backend/internal/models"
	"studybuddy/backend/internal/store"

	"github.com/gin-gonic/gin"
)

// region --- DTOs ---

// LobbyInput defines the fields for creating a lobby over REST.
type LobbyInput struct {
	Name      string `json:"name" binding:"required"`
	ClassName string `json:"className" binding:"required"`
	School    string `json:"school" binding:"required"`
	Host      string `json:"host" binding:"required"`
	MaxUsers  int    `json:"maxUsers" binding:"required,min=2,max=4"`
}

// JoinLobbyInput defines the fields for joining a lobby over REST.
type JoinLobbyInput struct {
	LobbyID  string `json:"lobbyId" binding:"required"`
	Username string `json:"username" binding:"required"`
}

// LobbyResponse is the public view of a lobby.
type LobbyResponse struct {
	LobbyID      string   `json:"lobbyId"`
	Name         string   `json:"name"`
	ClassName    string   `json:"className"`
	School       string   `json:"school"`
	Host         string   `json:"host"`
	MaxUsers     int      `json:"maxUsers"`
	CurrentUsers int      `json:"currentUsers"`
	Users        []string `json:"users"`
}

func newLobbyResponse(lobby *models.Lobby) LobbyResponse {
	return LobbyResponse{
		LobbyID:      lobby.LobbyID,
		Name:         lobby.Name,
		ClassName:    lobby.ClassName,
		School:       lobby.School,
		Host:         lobby.Host,
		MaxUsers:     lobby.MaxUsers,
		CurrentUsers: lobby.CurrentUsers,
		Users:        lobby.Usernames(),
	}
}

// endregion

// LobbyHandler serves the REST lobby routes. It shares the LobbyStore
// with the WebSocket coordinator, so lobbies created here are joinable
// over the socket and vice versa.
type LobbyHandler struct {
	Store store.LobbyStore
}

// NewLobbyHandler wires the store into the lobby routes.
func NewLobbyHandler(st store.LobbyStore) *LobbyHandler {
	return &LobbyHandler{Store: st}
}

// CreateLobby godoc
// @Summary      Create a lobby
// @Description  Creates a study-group lobby with the host as its first member.
// @Tags         lobbies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body LobbyInput true "Lobby Info"
// @Success      201  {object}  LobbyResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /lobbies/create [post]
func (h *LobbyHandler) CreateLobby(c *gin.Context) {
	var input LobbyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lobby, err := h.Store.Create(c.Request.Context(), store.LobbyInit{
		LobbyID:   store.NewLobbyID(),
		Name:      input.Name,
		ClassName: input.ClassName,
		School:    input.School,
		Host:      input.Host,
		MaxUsers:  input.MaxUsers,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error creating lobby"})
		return
	}

	c.JSON(http.StatusCreated, newLobbyResponse(lobby))
}

// ListLobbies godoc
// @Summary      List lobbies
// @Description  Lists lobbies for a class at a school.
// @Tags         lobbies
// @Produce      json
// @Security     BearerAuth
// @Param        className query string false "Class name"
// @Param        school    query string false "School name"
// @Success      200  {array}   LobbyResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /lobbies/list [get]
func (h *LobbyHandler) ListLobbies(c *gin.Context) {
	lobbies, err := h.Store.List(c.Request.Context(), c.Query("className"), c.Query("school"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching lobbies"})
		return
	}

	response := make([]LobbyResponse, 0, len(lobbies))
	for i := range lobbies {
		response = append(response, newLobbyResponse(&lobbies[i]))
	}
	c.JSON(http.StatusOK, response)
}

// JoinLobby godoc
// @Summary      Join a lobby
// @Description  Adds a user to a lobby's durable membership. The live
// session picks the change up on the user's next socket join.
// @Tags         lobbies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body JoinLobbyInput true "Lobby and username"
// @Success      200  {object}  LobbyResponse
// @Failure      400  {object}  ErrorResponse "Lobby is full"
// @Failure      404  {object}  ErrorResponse
// @Router       /lobbies/join [post]
func (h *LobbyHandler) JoinLobby(c *gin.Context) {
	var input JoinLobbyInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lobby, err := h.Store.AddUser(c.Request.Context(), input.LobbyID, input.Username)
	switch {
	case errors.Is(err, store.ErrLobbyFull):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Lobby is full"})
		return
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Lobby not found"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error joining lobby"})
		return
	}

	c.JSON(http.StatusOK, newLobbyResponse(lobby))
}
