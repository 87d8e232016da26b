package cases

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the aggregate's field constraints. The repository layer
// assumes it only ever receives aggregates that passed this.
func (c *Case) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return fmt.Errorf("case %s: title must not be blank", c.CaseID)
	}
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("case %s: user_id must not be blank", c.CaseID)
	}
	if strings.TrimSpace(c.OrganizationID) == "" {
		return fmt.Errorf("case %s: organization_id must not be blank", c.CaseID)
	}
	for id, h := range c.Hypotheses {
		if h.HypothesisID != id {
			return fmt.Errorf("case %s: hypothesis keyed %q carries id %q", c.CaseID, id, h.HypothesisID)
		}
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("case %s: %w", c.CaseID, err)
	}
	return nil
}
