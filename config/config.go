// Package config 加载服务配置并按配置组装推荐服务。
//
// 配置示例（YAML）：
//
//	catalog:
//	  driver: sqlite
//	  path: data/shoprec.db
//	cache:
//	  driver: redis
//	  addr: localhost:6379
//	  db: 0
//	  ttl_seconds: 300
//	artifacts:
//	  dir: data/artifacts
//	feast:
//	  enabled: true
//	  host: localhost
//	  port: 6565
//	  project: shoprec
//	scenarios_file: config/scenarios.yaml
//	filter_rules:
//	  - 'candidate.price <= 0.0'
//	scoring:
//	  cross_root_penalty: 0.2
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/shoprec/core"
)

// 目录后端驱动。
const (
	CatalogSQLite = "sqlite"
	CatalogMemory = "memory"
)

// 计数缓存驱动。
const (
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Config 是服务的完整配置。零值字段取默认。
type Config struct {
	Catalog struct {
		Driver string `yaml:"driver"` // sqlite / memory
		Path   string `yaml:"path"`   // sqlite 数据库文件
	} `yaml:"catalog"`

	Cache struct {
		Driver     string `yaml:"driver"` // redis / none
		Addr       string `yaml:"addr"`
		DB         int    `yaml:"db"`
		TTLSeconds int    `yaml:"ttl_seconds"`
	} `yaml:"cache"`

	Artifacts struct {
		Dir string `yaml:"dir"`
	} `yaml:"artifacts"`

	Feast struct {
		Enabled     bool   `yaml:"enabled"`
		Host        string `yaml:"host"`
		Port        int    `yaml:"port"`
		Project     string `yaml:"project"`
		StaticToken string `yaml:"static_token"`
	} `yaml:"feast"`

	// Scenarios 内联场景模板；与 ScenariosFile 二选一，内联优先
	Scenarios     []*core.Scenario `yaml:"scenarios"`
	ScenariosFile string           `yaml:"scenarios_file"`

	// FilterRules CEL 规则，命中即丢弃候选
	FilterRules []string `yaml:"filter_rules"`

	// Exposure 已曝光过滤（需要 cache 后端）
	Exposure struct {
		Enabled       bool   `yaml:"enabled"`
		KeyPrefix     string `yaml:"key_prefix"`
		WindowSeconds int64  `yaml:"window_seconds"`
		BloomDays     int    `yaml:"bloom_days"`
	} `yaml:"exposure"`

	Scoring ScoringOverrides `yaml:"scoring"`

	Complement struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"complement"`
}

// ScoringOverrides 覆盖打分配置的子集，未给出的字段保持默认。
type ScoringOverrides struct {
	FormulaBase          *float64 `yaml:"formula_base"`
	FormulaSimilarityW   *float64 `yaml:"formula_similarity_w"`
	FormulaPairFeedbackW *float64 `yaml:"formula_pair_feedback_w"`
	FormulaScenarioW     *float64 `yaml:"formula_scenario_w"`
	FormulaDiscountW     *float64 `yaml:"formula_discount_w"`
	GroupSimilarityW     *float64 `yaml:"group_similarity_w"`
	GroupFeedbackW       *float64 `yaml:"group_feedback_w"`
	GroupDiscountW       *float64 `yaml:"group_discount_w"`
	CopurchaseBoostStep  *float64 `yaml:"copurchase_boost_step"`
	CopurchaseBoostCap   *float64 `yaml:"copurchase_boost_cap"`
	CrossRootPenalty     *float64 `yaml:"cross_root_penalty"`
	SemanticTopK         *int     `yaml:"semantic_top_k"`
	ScenarioGroupLimit   *int     `yaml:"scenario_group_limit"`
	GroupCandidates      *int     `yaml:"group_candidates"`
	RankTimeoutMS        *int     `yaml:"rank_timeout_ms"`
}

// Load 从 YAML 文件加载配置。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return Parse(data)
}

// Parse 解析 YAML 内容，应用默认值并做校验。
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Catalog.Driver == "" {
		c.Catalog.Driver = CatalogMemory
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = CacheNone
	}
	if c.Cache.TTLSeconds <= 0 {
		c.Cache.TTLSeconds = 300
	}
	if c.Artifacts.Dir == "" {
		c.Artifacts.Dir = "data/artifacts"
	}
	if c.Feast.Port == 0 {
		c.Feast.Port = 6565
	}
	if c.Exposure.KeyPrefix == "" {
		c.Exposure.KeyPrefix = "rec:exposed"
	}
	if c.Exposure.WindowSeconds <= 0 {
		c.Exposure.WindowSeconds = 7 * 24 * 3600
	}
	if c.Exposure.BloomDays <= 0 {
		c.Exposure.BloomDays = 30
	}
}

// Validate 校验配置的一致性。
func (c *Config) Validate() error {
	switch c.Catalog.Driver {
	case CatalogSQLite:
		if c.Catalog.Path == "" {
			return core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput, "catalog.path is required for sqlite")
		}
	case CatalogMemory:
	default:
		return core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput, "unknown catalog driver: "+c.Catalog.Driver)
	}

	switch c.Cache.Driver {
	case CacheRedis:
		if c.Cache.Addr == "" {
			return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "cache.addr is required for redis")
		}
	case CacheNone:
	default:
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "unknown cache driver: "+c.Cache.Driver)
	}

	if c.Exposure.Enabled && c.Cache.Driver == CacheNone {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "exposure filter requires a cache backend")
	}
	if c.Feast.Enabled && c.Feast.Host == "" {
		return core.NewDomainError(core.ModuleCatalog, core.ErrorCodeInvalidInput, "feast.host is required when enabled")
	}
	return nil
}

// ScoringConfig 在默认值之上应用覆盖项。
func (c *Config) ScoringConfig() core.ScoringConfig {
	sc := core.DefaultScoringConfig()
	o := c.Scoring
	applyFloat(&sc.FormulaBase, o.FormulaBase)
	applyFloat(&sc.FormulaSimilarityW, o.FormulaSimilarityW)
	applyFloat(&sc.FormulaPairFeedbackW, o.FormulaPairFeedbackW)
	applyFloat(&sc.FormulaScenarioW, o.FormulaScenarioW)
	applyFloat(&sc.FormulaDiscountW, o.FormulaDiscountW)
	applyFloat(&sc.GroupSimilarityW, o.GroupSimilarityW)
	applyFloat(&sc.GroupFeedbackW, o.GroupFeedbackW)
	applyFloat(&sc.GroupDiscountW, o.GroupDiscountW)
	applyFloat(&sc.CopurchaseBoostStep, o.CopurchaseBoostStep)
	applyFloat(&sc.CopurchaseBoostCap, o.CopurchaseBoostCap)
	applyFloat(&sc.CrossRootPenalty, o.CrossRootPenalty)
	applyInt(&sc.SemanticTopK, o.SemanticTopK)
	applyInt(&sc.ScenarioGroupLimit, o.ScenarioGroupLimit)
	applyInt(&sc.GroupCandidates, o.GroupCandidates)
	if o.RankTimeoutMS != nil && *o.RankTimeoutMS > 0 {
		sc.RankTimeout = time.Duration(*o.RankTimeoutMS) * time.Millisecond
	}
	return sc
}

func applyFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func applyInt(dst *int, src *int) {
	if src != nil && *src > 0 {
		*dst = *src
	}
}
