package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/spotmap/spotmap/geo"
	"github.com/spotmap/spotmap/models"
	"github.com/spotmap/spotmap/repository"
	"github.com/spotmap/spotmap/utils"
)

// GeoController answers proximity and place searches.
type GeoController struct {
	spots          *repository.SpotRepository
	geocoder       Geocoder
	nearbyMeters   float64
	searchRadiusKm float64
}

// NewGeoController creates a GeoController.
func NewGeoController(spots *repository.SpotRepository, geocoder Geocoder, nearbyMeters, searchRadiusKm float64) *GeoController {
	return &GeoController{spots: spots, geocoder: geocoder, nearbyMeters: nearbyMeters, searchRadiusKm: searchRadiusKm}
}

type nearbySpot struct {
	models.Spot
	DistanceMeters float64 `json:"distance_meters"`
}

// Nearby lists spots of a category around a position, closest first.
func (g *GeoController) Nearby(ctx *gin.Context) {
	lat, lon, ok := parseLatLon(ctx.Query("lat"), ctx.Query("lng"))
	if !ok {
		utils.Error(ctx, http.StatusBadRequest, 40050, "lat and lng must be valid numbers")
		return
	}
	category := strings.TrimSpace(ctx.Query("category"))
	if category == "" {
		utils.Error(ctx, http.StatusBadRequest, 40051, "category is required")
		return
	}

	all, err := g.spots.ListAll(ctx.Request.Context())
	if err != nil {
		utils.ServerError(ctx, http.StatusInternalServerError, 50050, "failed to fetch spots", err)
		return
	}
	matches := geo.Nearby(all, geo.Point{Lat: lat, Lon: lon}, g.nearbyMeters, category, repository.SpotLocator)
	out := make([]nearbySpot, 0, len(matches))
	for _, m := range matches {
		out = append(out, nearbySpot{Spot: m.Item, DistanceMeters: m.DistanceMeters})
	}
	utils.Success(ctx, gin.H{"spots": out, "total": len(out)})
}

type searchSpotsRequest struct {
	SearchQuery string `json:"search_query" binding:"required"`
}

// SearchSpots geocodes a place name and returns the spots around it.
func (g *GeoController) SearchSpots(ctx *gin.Context) {
	var req searchSpotsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.SearchQuery) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40052, "search_query is required")
		return
	}
	rctx := ctx.Request.Context()
	loc, err := g.geocoder.Forward(rctx, strings.TrimSpace(req.SearchQuery))
	if err != nil {
		status, code := upstreamStatus(err)
		utils.ServerError(ctx, status, code, "location lookup failed", err)
		return
	}
	spots, err := g.spots.WithinBox(rctx, loc.Box(g.searchRadiusKm))
	if err != nil {
		utils.ServerError(ctx, http.StatusInternalServerError, 50051, "failed to fetch spots", err)
		return
	}
	utils.Success(ctx, gin.H{
		"location":    loc,
		"total_spots": len(spots),
		"spots":       spots,
	})
}
