package employees

import (
	"errors"
	"strings"
)

func (s *Service) validate(e Employee) error {
	if e.OrgID <= 0 {
		return errors.New("organization is required")
	}
	if strings.TrimSpace(e.NIK) == "" {
		return errors.New("employee NIK is required")
	}
	if strings.TrimSpace(e.Name) == "" {
		return errors.New("employee name is required")
	}
	return nil
}
