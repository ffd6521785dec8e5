package items

import (
	"errors"
	"strings"
)

func (s *Service) validate(item Item) error {
	if item.OrgID <= 0 {
		return errors.New("organization is required")
	}
	if strings.TrimSpace(item.Code) == "" {
		return errors.New("item code is required")
	}
	if strings.TrimSpace(item.Name) == "" {
		return errors.New("item name is required")
	}
	if item.MinStock < 0 {
		return errors.New("minimum stock cannot be negative")
	}
	return nil
}
