package train

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// AUC 计算 ROC 曲线下面积。y 取值 0/1。
// 无法定义时（全正或全负）返回 0.5。
func AUC(y, scores []float64) float64 {
	pos := 0
	for _, v := range y {
		if v > 0 {
			pos++
		}
	}
	if pos == 0 || pos == len(y) || len(y) == 0 {
		return 0.5
	}

	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	classes := make([]bool, len(y))
	for i, v := range y {
		classes[i] = v > 0
	}
	stat.SortWeightedLabeled(sorted, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, sorted, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}

// AveragePrecision 计算平均精度：按分数降序遍历，
// 在每个正样本位置累加 precision@k，再除以正样本总数。
func AveragePrecision(y, scores []float64) float64 {
	idx := make([]int, len(y))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })

	positives := 0.0
	hits := 0.0
	sum := 0.0
	for rank, i := range idx {
		if y[i] > 0 {
			hits++
			sum += hits / float64(rank+1)
		}
	}
	for _, v := range y {
		if v > 0 {
			positives++
		}
	}
	if positives == 0 {
		return 0
	}
	return sum / positives
}

// NDCGAtK 计算分组平均 NDCG@k（二值相关性）。
// groups 无需连续；没有正样本的组不参与平均。没有可评估的组返回 0。
func NDCGAtK(y, scores []float64, groups []int64, k int) float64 {
	byGroup := make(map[int64][]int)
	for i, g := range groups {
		byGroup[g] = append(byGroup[g], i)
	}

	total, counted := 0.0, 0
	for _, idx := range byGroup {
		ideal := idcg(y, idx, k)
		if ideal == 0 {
			continue
		}
		ranked := make([]int, len(idx))
		copy(ranked, idx)
		sort.SliceStable(ranked, func(a, b int) bool { return scores[ranked[a]] > scores[ranked[b]] })

		dcg := 0.0
		for pos, i := range ranked {
			if pos >= k {
				break
			}
			dcg += y[i] / math.Log2(float64(pos)+2)
		}
		total += dcg / ideal
		counted++
	}
	if counted == 0 {
		return 0
	}
	return total / float64(counted)
}

func idcg(y []float64, idx []int, k int) float64 {
	rels := make([]float64, len(idx))
	for i, id := range idx {
		rels[i] = y[id]
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(rels)))
	ideal := 0.0
	for pos, rel := range rels {
		if pos >= k {
			break
		}
		ideal += rel / math.Log2(float64(pos)+2)
	}
	return ideal
}
