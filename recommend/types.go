package recommend

// ScenarioRef 场景的简要引用。
type ScenarioRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Item 是一条对外输出的推荐结果。
type Item struct {
	ID            int64             `json:"id"`
	Name          string            `json:"name"`
	Price         float64           `json:"price"`
	DiscountPrice *float64          `json:"discount_price,omitempty"`
	Picture       string            `json:"picture,omitempty"`
	CategoryName  string            `json:"category_name,omitempty"`
	Score         float64           `json:"score"`
	MLScore       float64           `json:"ml_score,omitempty"`
	Rank          int               `json:"rank"`
	GroupName     string            `json:"group_name,omitempty"`
	Reasons       map[string]string `json:"reasons,omitempty"`
}

// Recommendations 商品页推荐结果。
type Recommendations struct {
	ProductID        int64        `json:"product_id"`
	ProductName      string       `json:"product_name"`
	DetectedScenario *ScenarioRef `json:"detected_scenario,omitempty"`
	Items            []Item       `json:"recommendations"`
	TotalCount       int          `json:"total_count"`
	RankingMethod    string       `json:"ranking_method"` // formula / ranker
}

// Progress 场景完成进度，只统计必需分组。
type Progress struct {
	Completed  int `json:"completed"`
	Total      int `json:"total"`
	Percentage int `json:"percentage"`
}

// GroupItems 某个未闭合分组的推荐。
type GroupItems struct {
	GroupName  string `json:"group_name"`
	IsRequired bool   `json:"is_required"`
	Products   []Item `json:"products"`
}

// CartItemRef 闭合分组的购物车商品引用。
type CartItemRef struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// CompletedGroup 已被购物车闭合的分组。
type CompletedGroup struct {
	GroupName  string        `json:"group_name"`
	IsRequired bool          `json:"is_required"`
	Products   []CartItemRef `json:"cart_products"`
}

// ScenarioRecommendations 场景推荐结果。
type ScenarioRecommendations struct {
	Scenario        ScenarioRef      `json:"scenario"`
	Progress        Progress         `json:"progress"`
	Groups          []GroupItems     `json:"recommendations"`
	CompletedGroups []CompletedGroup `json:"completed_groups"`
	AllScenarios    []ScenarioRef    `json:"all_scenarios"`
}

// FeedbackRequest 一条用户反馈。
// ScenarioID+GroupName 非空时记为场景反馈，否则记为商品对反馈。
type FeedbackRequest struct {
	AnchorID    int64  `json:"anchor_id,omitempty"`
	ScenarioID  string `json:"scenario_id,omitempty"`
	GroupName   string `json:"group_name,omitempty"`
	CandidateID int64  `json:"candidate_id"`
	Polarity    string `json:"polarity"` // positive / negative
	UserID      int64  `json:"user_id,omitempty"`
	Context     string `json:"context,omitempty"`
}

// ServiceStats 服务状态快照。
type ServiceStats struct {
	Embeddings       int   `json:"embeddings"`
	IndexSize        int   `json:"index_size"`
	Categories       int   `json:"categories"`
	Scenarios        int   `json:"scenarios"`
	PositiveFeedback int64 `json:"positive_feedback"`
	NegativeFeedback int64 `json:"negative_feedback"`
	TotalFeedback    int64 `json:"total_feedback"`
}
