package taxonomy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/shoprec/core"
)

// ScenariosConfig 是场景模板的配置结构（YAML）。
//
// 示例：
//
//	scenarios:
//	  - id: walls
//	    name: 墙面找平
//	    groups:
//	      - name: 基料
//	        category_ids: [101, 102]
//	        is_required: true
//	        sort_order: 1
type ScenariosConfig struct {
	Scenarios []*core.Scenario `yaml:"scenarios"`
}

// LoadScenarios 从 YAML 文件加载场景模板。
// 场景在文件中的顺序即声明顺序，决定匹配并列时的优先级。
func LoadScenarios(path string) ([]*core.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ParseScenarios(data)
}

// ParseScenarios 解析 YAML 内容为场景列表，并做基础校验。
func ParseScenarios(data []byte) ([]*core.Scenario, error) {
	var cfg ScenariosConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	seen := make(map[string]bool, len(cfg.Scenarios))
	for _, s := range cfg.Scenarios {
		if s == nil {
			continue
		}
		if s.ID == "" {
			return nil, core.NewDomainError(core.ModuleTaxonomy, core.ErrorCodeInvalidInput, "scenario id is required")
		}
		if seen[s.ID] {
			return nil, core.NewDomainError(core.ModuleTaxonomy, core.ErrorCodeInvalidInput, "duplicate scenario id: "+s.ID)
		}
		seen[s.ID] = true
		if len(s.Groups) == 0 {
			return nil, core.NewDomainError(core.ModuleTaxonomy, core.ErrorCodeInvalidInput, "scenario has no groups: "+s.ID)
		}
	}
	return cfg.Scenarios, nil
}
