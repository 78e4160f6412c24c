package gateway

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-planner/internal/app/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// listRequest is the body of the candidate list call. Date is null when the
// trip date is unknown.
type listRequest struct {
	Date             *string         `json:"date"`
	StartingLocation models.Location `json:"startingLocation"`
}

type searchRequest struct {
	UserInput     string         `json:"userInput"`
	ExamplePlaces []models.Place `json:"examplePlaces"`
}

// envelope is the shape shared by both backend responses.
type envelope struct {
	Results []wirePlace `json:"results"`
	Error   string      `json:"error"`
}

// wirePlace is the loosely typed record as the backend sends it.
type wirePlace struct {
	Name        string  `json:"name" validate:"required"`
	Type        string  `json:"type"`
	Category    string  `json:"category"`
	Region      string  `json:"region"`
	Description string  `json:"description"`
	Reason      string  `json:"reason"`
	ImageURL    *string `json:"imageUrl"`
}

// normalizePlaces trims records, drops the ones without a name and removes
// duplicate names so the result is safe to hand to the controller.
func normalizePlaces(raw []wirePlace, logger *zap.Logger) models.ResultSet {
	v := getValidator()
	out := make(models.ResultSet, 0, len(raw))
	dropped := 0
	for _, w := range raw {
		w.Name = strings.TrimSpace(w.Name)
		if err := v.Struct(w); err != nil {
			dropped++
			continue
		}
		p := models.Place{
			Name:        w.Name,
			Type:        strings.TrimSpace(w.Type),
			Category:    strings.TrimSpace(w.Category),
			Region:      strings.TrimSpace(w.Region),
			Description: strings.TrimSpace(w.Description),
			Reason:      strings.TrimSpace(w.Reason),
		}
		if w.ImageURL != nil {
			p.ImageURL = strings.TrimSpace(*w.ImageURL)
		}
		out = append(out, p)
	}
	deduped := out.DedupeByName()
	if dropped > 0 || len(deduped) != len(out) {
		logger.Warn("Normalized recommendation payload",
			zap.Int("received", len(raw)),
			zap.Int("invalid", dropped),
			zap.Int("duplicates", len(out)-len(deduped)))
	}
	return deduped
}
