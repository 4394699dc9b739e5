package wizard

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"fmconsole/internal/model"
)

// DateLayout is the wire format of date answers.
const DateLayout = "2006-01-02"

func checkScalar(q model.ChecklistQuestion, value string) error {
	switch q.Kind {
	case model.InputSingleChoice:
		if !q.HasOption(value) {
			return fmt.Errorf("%w: %s", ErrInvalidOption, value)
		}
	case model.InputNumeric:
		if _, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err != nil {
			return &ValidationError{Field: q.ID, Message: "Please enter a valid number for: " + q.Prompt}
		}
	case model.InputDate:
		if _, err := time.Parse(DateLayout, strings.TrimSpace(value)); err != nil {
			return &ValidationError{Field: q.ID, Message: "Please enter a valid date for: " + q.Prompt}
		}
	}
	return nil
}
