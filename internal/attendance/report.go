package attendance

import (
	"math"

	"github.com/mamadbah2/campcheck/internal/domain/models"
)

// BuildReport derives the presence summary for a roster and its scan events.
// Repeated events for one camper collapse to a single presence. PresentIDs
// keep first-scan order and MissingCampers keep roster order.
func BuildReport(campers []models.Camper, events []models.ScanEvent) models.SessionReport {
	present := make(map[string]struct{}, len(events))
	presentIDs := make([]string, 0, len(events))
	for _, ev := range events {
		if _, seen := present[ev.CamperID]; seen {
			continue
		}
		present[ev.CamperID] = struct{}{}
		presentIDs = append(presentIDs, ev.CamperID)
	}

	missing := make([]models.Camper, 0)
	for _, c := range campers {
		if _, ok := present[c.ID]; !ok {
			missing = append(missing, c)
		}
	}

	return models.SessionReport{
		TotalCampers:      len(campers),
		TotalScanned:      len(presentIDs),
		PresentIDs:        presentIDs,
		MissingCampers:    missing,
		PresentPercentage: percentage(len(presentIDs), len(campers)),
	}
}

func percentage(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(total)))
}
