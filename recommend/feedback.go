package recommend

import (
	"context"

	"go.uber.org/zap"

	"github.com/rushteam/shoprec/complement"
	"github.com/rushteam/shoprec/core"
	"github.com/rushteam/shoprec/embedding"
	"github.com/rushteam/shoprec/train"
)

// RecordFeedback 录入一条用户反馈。
// 带场景与分组信息的走场景维度计数，否则走商品对维度。
func (s *Service) RecordFeedback(ctx context.Context, req FeedbackRequest) error {
	polarity := core.Polarity(req.Polarity)
	if !core.ValidatePolarity(polarity) {
		return core.NewDomainError(core.ModuleFeedback, core.ErrorCodeInvalidInput,
			"polarity must be positive or negative")
	}
	if req.CandidateID <= 0 {
		return core.NewDomainError(core.ModuleFeedback, core.ErrorCodeInvalidInput,
			"candidate_id is required")
	}

	if req.ScenarioID != "" && req.GroupName != "" {
		return s.feedback.RecordScenario(ctx, req.ScenarioID, req.GroupName, req.CandidateID, polarity, req.UserID)
	}
	if req.AnchorID <= 0 {
		return core.NewDomainError(core.ModuleFeedback, core.ErrorCodeInvalidInput,
			"anchor_id is required for pair feedback")
	}
	return s.feedback.RecordPair(ctx, req.AnchorID, req.CandidateID, polarity, req.UserID, req.Context)
}

// TrainRanker 训练学习排序模型并热切换到新版本。
func (s *Service) TrainRanker(ctx context.Context, params train.TrainParams) (*train.Result, error) {
	if s.trainer == nil {
		return nil, core.NewDomainError(core.ModuleTrain, core.ErrorCodeNotSupported,
			"trainer not configured")
	}
	res, err := s.trainer.Train(ctx, params)
	if err != nil {
		return nil, err
	}
	s.ranker.Set(res.Model, res.Version, res.Metadata)
	s.logger.Info("ranker updated", zap.String("version", res.Version))
	return res, nil
}

// GetSimilarCategories 返回与指定类目语义最接近的类目。
func (s *Service) GetSimilarCategories(categoryID int64, topK int, minSimilarity float64) ([]embedding.CategorySimilarity, error) {
	if s.categories == nil {
		return nil, core.NewDomainError(core.ModuleVector, core.ErrorCodeNotSupported,
			"category embeddings not configured")
	}
	return s.categories.MostSimilar(categoryID, topK, minSimilarity), nil
}

// GetComplementaryCategories 返回与指定类目互补的类目列表。
func (s *Service) GetComplementaryCategories(categoryID int64, topK int, minScore float64) ([]complement.Related, error) {
	if s.complement == nil {
		return nil, core.NewDomainError(core.ModuleComplement, core.ErrorCodeNotSupported,
			"complementarity model not configured")
	}
	return s.complement.GetComplementary(categoryID, topK, minScore), nil
}
