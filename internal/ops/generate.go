package ops

import (
	"github.com/hpungsan/memclass/internal/generate"
	"github.com/hpungsan/memclass/internal/layout"
)

// GenerateInput contains parameters for Generate.
type GenerateInput struct {
	Classes  []string // ids or names; default: every class
	Language string   // "go" (default) or "c"
	Package  string   // Go package clause
}

// GenerateOutput contains the result of Generate.
type GenerateOutput struct {
	Language string `json:"language"`
	Source   string `json:"source"`
}

// Generate renders classes as struct declarations.
func (s *Session) Generate(input GenerateInput) (*GenerateOutput, error) {
	lang, err := generate.ParseLanguage(input.Language)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]layout.ClassID, 0, len(input.Classes))
	for _, ref := range input.Classes {
		c, err := s.classLocked(ref)
		if err != nil {
			return nil, err
		}
		ids = append(ids, c.ID)
	}
	src, err := generate.Generate(s.reg, ids, lang, generate.Options{
		Package:   input.Package,
		ByteOrder: s.cfg.ByteOrder,
	})
	if err != nil {
		return nil, err
	}
	return &GenerateOutput{Language: string(lang), Source: src}, nil
}
