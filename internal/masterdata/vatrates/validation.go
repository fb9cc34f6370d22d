package vatrates

import (
	"errors"
	"strings"
)

func (s *Service) validate(r VATRate) error {
	if strings.TrimSpace(r.Code) == "" {
		return errors.New("vat rate code is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("vat rate name is required")
	}
	if r.Rate < 0 || r.Rate > 100 {
		return errors.New("vat rate must be between 0 and 100")
	}
	return nil
}
