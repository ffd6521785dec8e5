package warehouses

import (
	"errors"
	"strings"
)

func (s *Service) validate(w Warehouse) error {
	if w.OrgID <= 0 {
		return errors.New("organization is required")
	}
	if strings.TrimSpace(w.Code) == "" {
		return errors.New("warehouse code is required")
	}
	if strings.TrimSpace(w.Name) == "" {
		return errors.New("warehouse name is required")
	}
	return nil
}
