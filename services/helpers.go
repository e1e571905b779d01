package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/tournament-api/dto"
	"github.com/Dosada05/tournament-api/repositories"
	"github.com/Dosada05/tournament-api/storage"
	"github.com/Dosada05/tournament-api/validation"
)

// EventPublisher receives change notifications after a successful commit.
type EventPublisher interface {
	Publish(tournamentID int, eventType string, payload interface{})
}

type noopPublisher struct{}

func (noopPublisher) Publish(int, string, interface{}) {}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

// validateInput returns nil, or ErrValidationFailed wrapping validation.Errors.
func validateInput(v *validation.Validator, input interface{}) error {
	err := v.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		return validationFailed(verrs)
	}
	return err
}

func validationFailed(verrs validation.Errors) error {
	return fmt.Errorf("%w: %w", ErrValidationFailed, verrs)
}

func missingTournamentError(tournamentID int) error {
	return validationFailed(validation.Errors{
		"tournamentId": fmt.Sprintf("tournament %d does not exist", tournamentID),
	})
}

// parseGameSort maps the sortBy query value onto a known column. Anything
// unrecognized means insertion order.
func parseGameSort(sortBy string) repositories.GameSortField {
	switch strings.ToLower(strings.TrimSpace(sortBy)) {
	case "title":
		return repositories.GameSortTitle
	case "time":
		return repositories.GameSortTime
	default:
		return repositories.GameSortNone
	}
}

func parseTournamentSort(sortBy string) repositories.TournamentSortField {
	switch strings.ToLower(strings.TrimSpace(sortBy)) {
	case "title":
		return repositories.TournamentSortTitle
	case "startdate", "start_date":
		return repositories.TournamentSortStartDate
	default:
		return repositories.TournamentSortNone
	}
}

func logoResolver(uploader storage.FileUploader) dto.URLResolver {
	if uploader == nil {
		return nil
	}
	return uploader.GetPublicURL
}
