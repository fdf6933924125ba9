// Package embedding 提供商品/类目嵌入向量的内存存储与向量运算。
//
// 嵌入向量由离线任务（文本模型编码商品名/类目等）产出，写入目录存储；
// 本包在进程内维护快照，供向量索引、特征抽取、类目互补模型使用。
package embedding

import "math"

// Cosine 计算余弦相似度。长度不一致或任一向量为零向量时返回 0。
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Dot 计算内积。长度不一致时返回 0。
func Dot(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// L2Distance 计算欧氏距离。长度不一致时返回 math.MaxFloat64。
func L2Distance(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.MaxFloat64
	}
	var sum float64
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return math.Sqrt(sum)
}

// ManhattanDistance 计算曼哈顿距离。长度不一致时返回 math.MaxFloat64。
func ManhattanDistance(a, b []float64) float64 {
	if len(a) != len(b) {
		return math.MaxFloat64
	}
	var sum float64
	for i := range a {
		sum += math.Abs(a[i] - b[i])
	}
	return sum
}

// Norm 计算向量的 L2 范数。
func Norm(a []float64) float64 {
	var sum float64
	for _, v := range a {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Normalize 返回 L2 归一化后的新向量。零向量返回原值的拷贝。
func Normalize(a []float64) []float64 {
	out := make([]float64, len(a))
	n := Norm(a)
	if n == 0 {
		copy(out, a)
		return out
	}
	for i, v := range a {
		out[i] = v / n
	}
	return out
}

// Mean 计算一组等长向量的均值向量。输入为空时返回 nil。
func Mean(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	out := make([]float64, dim)
	count := 0
	for _, v := range vectors {
		if len(v) != dim {
			continue
		}
		for i := range v {
			out[i] += v[i]
		}
		count++
	}
	if count == 0 {
		return nil
	}
	for i := range out {
		out[i] /= float64(count)
	}
	return out
}
