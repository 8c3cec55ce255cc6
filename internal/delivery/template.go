package delivery

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/ignite/crm-engine/internal/domain"
)

// fallbackName is substituted when a customer record has no usable name.
const fallbackName = "Customer"

// TemplateService renders campaign message templates per customer. Parsed
// templates are cached by source text, so dispatching a campaign parses its
// template once.
type TemplateService struct {
	engine *liquid.Engine

	mu    sync.RWMutex
	cache map[string]*liquid.Template
}

func NewTemplateService() *TemplateService {
	return &TemplateService{
		engine: liquid.NewEngine(),
		cache:  make(map[string]*liquid.Template),
	}
}

// Render personalizes the template for one customer. A blank customer name
// binds as "Customer" so greetings never render empty.
func (s *TemplateService) Render(source string, customer *domain.Customer) (string, error) {
	tpl, err := s.parse(source)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	name := strings.TrimSpace(customer.Name)
	if name == "" {
		name = fallbackName
	}
	bindings := map[string]interface{}{
		"name":  name,
		"email": customer.Email,
	}

	out, err := tpl.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}

func (s *TemplateService) parse(source string) (*liquid.Template, error) {
	s.mu.RLock()
	tpl, ok := s.cache[source]
	s.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	tpl, err := s.engine.ParseString(source)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[source] = tpl
	s.mu.Unlock()
	return tpl, nil
}
