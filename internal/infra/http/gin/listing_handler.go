package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"staypay/internal/app/commands"
	"staypay/internal/app/dto"
	listingapp "staypay/internal/app/handlers/listings"
	"staypay/internal/app/queries"
)

type ListingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createListingRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Location     string `json:"location"`
	NightlyPrice string `json:"nightly_price"`
	Currency     string `json:"currency"`
}

type updateListingRequest struct {
	NightlyPrice *string `json:"nightly_price"`
	Description  *string `json:"description"`
}

func (h ListingHandler) List(c *gin.Context) {
	if h.Queries == nil {
		respondUnavailable(c, "queries")
		return
	}
	query := listingapp.ListListingsQuery{
		Limit:  parsePositiveInt(c.Query("limit"), 0),
		Offset: parsePositiveInt(c.Query("offset"), 0),
	}
	result, err := queries.Ask[listingapp.ListListingsQuery, dto.ListingCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ListingHandler) Get(c *gin.Context) {
	if h.Queries == nil {
		respondUnavailable(c, "queries")
		return
	}
	result, err := queries.Ask[listingapp.GetListingQuery, dto.Listing](c.Request.Context(), h.Queries, listingapp.GetListingQuery{ListingID: c.Param("id")})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ListingHandler) Create(c *gin.Context) {
	user, ok := requireRole(c, roleHost)
	if !ok {
		return
	}
	if h.Commands == nil {
		respondUnavailable(c, "commands")
		return
	}
	var req createListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := listingapp.CreateHostListingCommand{
		HostID:       user.ID,
		Title:        req.Title,
		Description:  req.Description,
		Location:     req.Location,
		NightlyPrice: req.NightlyPrice,
		Currency:     req.Currency,
	}
	result, err := commands.Dispatch[listingapp.CreateHostListingCommand, *dto.Listing](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.Header("Location", "/listings/"+result.ID)
	c.JSON(http.StatusCreated, result)
}

func (h ListingHandler) Update(c *gin.Context) {
	user, ok := requireRole(c, roleHost)
	if !ok {
		return
	}
	if h.Commands == nil {
		respondUnavailable(c, "commands")
		return
	}
	var req updateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := listingapp.UpdateHostListingCommand{
		HostID:       user.ID,
		ListingID:    c.Param("id"),
		NightlyPrice: req.NightlyPrice,
		Description:  req.Description,
	}
	result, err := commands.Dispatch[listingapp.UpdateHostListingCommand, *dto.Listing](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func parsePositiveInt(raw string, fallback int) int {
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

var _ ListingHTTP = ListingHandler{}
