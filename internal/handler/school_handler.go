package handler

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"studybuddy/backend/internal/config"

	"github.com/gin-gonic/gin"
)

const scorecardBaseURL = "https://api.data.gov/ed/collegescorecard/v1/schools"

var scorecardClient = &http.Client{Timeout: 10 * time.Second}

// scorecardResult keeps the API's dotted field names
// (school.name, school.city, school.state) as-is for the frontend.
type scorecardResult struct {
	Results []map[string]interface{} `json:"results"`
}

// SearchSchools godoc
// @Summary      Search schools
// @Description  Looks up schools by name via the College Scorecard API.
// @Tags         schools
// @Produce      json
// @Param        name query string true "School name"
// @Success      200  {array}   map[string]interface{}
// @Failure      400  {object}  ErrorResponse
// @Failure      500  {object}  ErrorResponse
// @Router       /schools/search [get]
func SearchSchools(c *gin.Context) {
	name := c.Query("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "School name is required"})
		return
	}

	params := url.Values{}
	params.Set("school.name", name)
	params.Set("api_key", config.AppConfig.ScorecardAPIKey)
	params.Set("fields", "id,school.name,school.city,school.state")

	resp, err := scorecardClient.Get(scorecardBaseURL + "?" + params.Encode())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching schools"})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching schools"})
		return
	}

	var result scorecardResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error fetching schools"})
		return
	}

	c.JSON(http.StatusOK, result.Results)
}
