package achievements

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"moodlog-insights/internal/models"
)

//go:embed catalog.json
var catalogRawJSON []byte

// Catalog 成就目录与因素词表（声明式配置，进程启动时加载一次）
type Catalog struct {
	Factors      []string                       `json:"factors"`
	Achievements []models.AchievementDefinition `json:"achievements"`
}

// LoadCatalog 加载内置的成就目录（8个因素、15条成就）
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(catalogRawJSON)
}

// ParseCatalog 从 JSON 解析成就目录（测试可传入精简目录）
func ParseCatalog(raw []byte) (*Catalog, error) {
	var catalog Catalog
	if err := json.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("failed to parse achievement catalog: %w", err)
	}

	factors := make(map[string]bool, len(catalog.Factors))
	for _, name := range catalog.Factors {
		factors[name] = true
	}

	seen := make(map[models.AchievementType]bool, len(catalog.Achievements))
	for _, def := range catalog.Achievements {
		if def.Type == "" {
			return nil, fmt.Errorf("achievement with empty type in catalog")
		}
		if seen[def.Type] {
			return nil, fmt.Errorf("duplicate achievement type in catalog: %s", def.Type)
		}
		seen[def.Type] = true

		switch def.Rule {
		case models.RuleEntryCount, models.RuleStreak, models.RuleMoodVariety, models.RuleNoteCount:
			if def.Threshold <= 0 {
				return nil, fmt.Errorf("achievement %s: rule %s requires positive threshold", def.Type, def.Rule)
			}
		case models.RuleFactorUse:
			if !factors[def.Factor] {
				return nil, fmt.Errorf("achievement %s: factor %q not in vocabulary", def.Type, def.Factor)
			}
		case models.RuleFactorSampler:
			// 无参数
		default:
			return nil, fmt.Errorf("achievement %s: unknown rule %q", def.Type, def.Rule)
		}
	}

	return &catalog, nil
}

// HasFactor 判断因素名是否在词表内
func (c *Catalog) HasFactor(name string) bool {
	for _, f := range c.Factors {
		if f == name {
			return true
		}
	}
	return false
}

// Definition 按类型查找成就定义
func (c *Catalog) Definition(t models.AchievementType) (models.AchievementDefinition, bool) {
	for _, def := range c.Achievements {
		if def.Type == t {
			return def, true
		}
	}
	return models.AchievementDefinition{}, false
}
