package dialogue

import (
	"strings"

	"github.com/m3rciful/pricewatch/core/telegram/state"
	"github.com/m3rciful/pricewatch/internal/models"
)

const cancelledText = "Действие отменено ❌"

// splitFullName splits an already validated "Name Surname" pair.
func splitFullName(full string) (string, string) {
	parts := strings.Fields(full)
	if len(parts) < 2 {
		return full, ""
	}
	return parts[0], parts[1]
}

// accountCreateFrom assembles the register payload from accumulated
// session fields.
func accountCreateFrom(s *state.Session, telegramID int64, password string) models.AccountCreate {
	return models.AccountCreate{
		TelegramID: telegramID,
		Name:       s.FieldOr(fieldName, ""),
		Surname:    s.FieldOr(fieldSurname, ""),
		Email:      s.FieldOr(fieldEmail, ""),
		Password:   password,
	}
}
