package handler

import (
	"net/http"
	"strconv"

	"github.com/vayuwatch/vayuwatch/internal/api/models"
)

// parseCoordinates reads lat and lon (or lng) from the query string.
func parseCoordinates(r *http.Request) (lat, lng float64, errs []models.FieldError) {
	q := r.URL.Query()

	lat, latErr := parseFloatParam("lat", q.Get("lat"), -90, 90)
	if latErr != nil {
		errs = append(errs, *latErr)
	}

	rawLng := q.Get("lon")
	if rawLng == "" {
		rawLng = q.Get("lng")
	}
	lng, lngErr := parseFloatParam("lon", rawLng, -180, 180)
	if lngErr != nil {
		errs = append(errs, *lngErr)
	}

	return lat, lng, errs
}

func parseFloatParam(field, raw string, minVal, maxVal float64) (float64, *models.FieldError) {
	if raw == "" {
		return 0, &models.FieldError{Field: field, Message: "is required", Code: models.CodeRequired}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &models.FieldError{Field: field, Message: "must be a number", Code: models.CodeInvalid}
	}
	// NaN fails both comparisons, so check it explicitly.
	if v != v || v < minVal || v > maxVal {
		return 0, &models.FieldError{
			Field:   field,
			Message: "must be between " + strconv.FormatFloat(minVal, 'f', -1, 64) + " and " + strconv.FormatFloat(maxVal, 'f', -1, 64),
			Code:    models.CodeOutOfRange,
		}
	}
	return v, nil
}
